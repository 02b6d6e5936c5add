package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused filter.
const subackFailure = 0x80

// Subscribe subscribes to each filter in order, waiting for each SUBACK.
//
// Inbound messages for all filters are delivered as EventMessage.
//
// Parameters:
//   - filters: topic filters, subscribed in slice order
//   - qos: requested maximum QoS (0 or 1)
//
// Returns:
//   - error: ErrSubscribeFailed (wrapping the first failure), ErrTimeout or ErrNotConnected
func (t *Transport) Subscribe(filters []string, qos byte) error {
	if qos > maxQoS {
		return ErrInvalidQoS
	}

	client, _, err := t.current()
	if err != nil {
		return err
	}

	for _, filter := range filters {
		if filter == "" {
			return ErrInvalidTopic
		}
		if err := subscribeOne(client, filter, qos, defaultOperationTimeout); err != nil {
			return err
		}
		if l := t.logger; l != nil {
			l.Debug("mqtt subscribed", "filter", filter, "qos", qos)
		}
	}
	return nil
}

func subscribeOne(client pahomqtt.Client, filter string, qos byte, timeout time.Duration) error {
	token := client.Subscribe(filter, qos, nil)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: subscribe %q after %v", ErrTimeout, filter, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrSubscribeFailed, filter, err)
	}
	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[filter]; found && code == subackFailure {
			return fmt.Errorf("%w: %q refused by broker", ErrSubscribeFailed, filter)
		}
	}
	return nil
}
