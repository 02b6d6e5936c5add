package mqtt

import (
	"fmt"
)

// Maximum payload size for hub messages (256KB).
const maxPayloadSize = 256 << 10

// Publish queues a message and returns the transport message id.
//
// Completion is reported asynchronously as an EventPublishAck with the same
// id. At QoS 0 the ack means the packet was written; at QoS 1 it means the
// hub sent PUBACK.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (max 256KB)
//   - qos: 0 or 1
//
// Returns:
//   - uint32: message id, never 0
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrPublishFailed or ErrNotConnected
func (t *Transport) Publish(topic string, payload []byte, qos byte) (uint32, error) {
	if topic == "" {
		return 0, ErrInvalidTopic
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return 0, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client, done, err := t.current()
	if err != nil {
		return 0, err
	}

	id := t.nextMessageID()
	token := client.Publish(topic, qos, false, payload)

	go func() {
		select {
		case <-token.Done():
		case <-done:
			return
		}
		ev := Event{Type: EventPublishAck, MessageID: id}
		if err := token.Error(); err != nil {
			ev.Err = fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		t.emit(done, ev)
	}()

	return id, nil
}
