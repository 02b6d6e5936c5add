package mqtt

// EventType identifies what happened on the transport.
type EventType int

const (
	// EventConnAck is the result of Connect. Code 0 means accepted.
	EventConnAck EventType = iota + 1

	// EventMessage is an inbound publish.
	EventMessage

	// EventPublishAck is the completion of a Publish. Err is set on failure.
	EventPublishAck

	// EventConnectionLost reports an unexpected disconnect.
	EventConnectionLost
)

func (t EventType) String() string {
	switch t {
	case EventConnAck:
		return "connack"
	case EventMessage:
		return "message"
	case EventPublishAck:
		return "publish_ack"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Event is one item on the transport event queue.
type Event struct {
	Type EventType

	// Code is the CONNACK return code for EventConnAck.
	Code int

	// Topic and Payload are set for EventMessage.
	Topic   string
	Payload []byte

	// MessageID is set for EventPublishAck.
	MessageID uint32

	// Err describes a failed publish or a lost connection.
	Err error
}
