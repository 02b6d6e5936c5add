package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// eventBufferSize is the capacity of the event queue.
const eventBufferSize = 256

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ClientFactory builds the underlying paho client. Tests replace it.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Transport wraps paho.mqtt.golang and turns its callbacks into Events.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Events are delivered in arrival order on one channel that is never closed,
//     so a Transport can be connected again after Disconnect.
type Transport struct {
	newClient ClientFactory
	logger    Logger

	events chan Event
	nextID atomic.Uint32

	mu     sync.Mutex
	client pahomqtt.Client
	// done is closed by Disconnect to release goroutines waiting on tokens
	// or on a full event queue.
	done chan struct{}
}

// NewTransport creates a Transport backed by pahomqtt.NewClient.
// logger may be nil.
func NewTransport(logger Logger) *Transport {
	return NewTransportWithFactory(pahomqtt.NewClient, logger)
}

// NewTransportWithFactory creates a Transport using factory to build the paho client.
func NewTransportWithFactory(factory ClientFactory, logger Logger) *Transport {
	return &Transport{
		newClient: factory,
		logger:    logger,
		events:    make(chan Event, eventBufferSize),
	}
}

// Events returns the event queue.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// Connect starts a connection attempt and returns immediately. The outcome
// arrives as an EventConnAck.
//
// Returns:
//   - ErrInvalidOptions if opts are incomplete
//   - ErrAlreadyConnected if a connection is open or in progress
func (t *Transport) Connect(opts ConnectOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return ErrAlreadyConnected
	}

	done := make(chan struct{})
	pahoOpts := buildClientOptions(opts)

	pahoOpts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.emit(done, Event{Type: EventMessage, Topic: msg.Topic(), Payload: msg.Payload()})
	})
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.release(done)
		t.emit(done, Event{Type: EventConnectionLost, Err: err})
	})

	client := t.newClient(pahoOpts)
	t.client = client
	t.done = done

	token := client.Connect()
	go func() {
		select {
		case <-token.Done():
		case <-done:
			return
		}
		code := connackCode(token)
		if code != packets.Accepted {
			if l := t.logger; l != nil {
				l.Warn("mqtt connect refused", "host", opts.Host, "code", code, "error", token.Error())
			}
			t.release(done)
		}
		t.emit(done, Event{Type: EventConnAck, Code: int(code), Err: token.Error()})
	}()

	return nil
}

// connackCode extracts the CONNACK return code from a completed connect token.
func connackCode(token pahomqtt.Token) byte {
	if ct, ok := token.(*pahomqtt.ConnectToken); ok && ct.ReturnCode() != packets.Accepted {
		return ct.ReturnCode()
	}
	err := token.Error()
	if err == nil {
		return packets.Accepted
	}
	for code, connErr := range packets.ConnErrors {
		if connErr != nil && errors.Is(err, connErr) {
			return code
		}
	}
	return packets.ErrNetworkError
}

// release forgets the client whose attempt ended, so Connect can be called again.
// The done channel stays open so the final event can still be queued.
func (t *Transport) release(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == done {
		t.client = nil
		t.done = nil
	}
}

// Disconnect closes the connection and releases pending waiters. No event is
// emitted; the caller already knows.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	client, done := t.client, t.done
	t.client, t.done = nil, nil
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if client != nil {
		client.Disconnect(defaultDisconnectQuiesce)
	}
}

// IsConnected reports whether the paho client has an open connection.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	return client != nil && client.IsConnectionOpen()
}

// Drain discards queued events. Used before a new connection attempt so
// nothing from a previous session leaks into it.
func (t *Transport) Drain() int {
	n := 0
	for {
		select {
		case <-t.events:
			n++
		default:
			return n
		}
	}
}

// current returns the live client and its done channel.
func (t *Transport) current() (pahomqtt.Client, chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, nil, ErrNotConnected
	}
	return t.client, t.done, nil
}

// emit queues ev, blocking while the queue is full. It gives up once done is
// closed.
func (t *Transport) emit(done chan struct{}, ev Event) {
	select {
	case t.events <- ev:
		return
	default:
	}

	if l := t.logger; l != nil {
		l.Warn("mqtt event queue full, waiting for consumer", "event", ev.Type.String())
	}
	select {
	case t.events <- ev:
	case <-done:
		if l := t.logger; l != nil {
			l.Debug("mqtt event dropped after disconnect", "event", ev.Type.String())
		}
	}
}

func (t *Transport) nextMessageID() uint32 {
	id := t.nextID.Add(1)
	if id == 0 {
		id = t.nextID.Add(1)
	}
	return id
}

// String is used in logs.
func (t *Transport) String() string {
	return fmt.Sprintf("mqtt.Transport(connected=%t)", t.IsConnected())
}
