package routing

// Kind is the classification of an inbound message.
type Kind int

const (
	// Unrecognized covers anything no rule matches. It is logged and dropped.
	Unrecognized Kind = iota

	// TwinDesiredUpdate is a desired-properties patch pushed by the service.
	TwinDesiredUpdate

	// TwinGetResponse is the full twin document answering a GET.
	TwinGetResponse

	// TwinResponse is any other twin acknowledgement (e.g. for a reported patch).
	TwinResponse

	// DirectMethodInvocation is a synchronous command awaiting a response.
	DirectMethodInvocation

	// DeviceBoundMessage is a queued cloud-to-device command.
	DeviceBoundMessage
)

// String returns a stable lower-case name, used as a metrics label.
func (k Kind) String() string {
	switch k {
	case TwinDesiredUpdate:
		return "twin_desired_update"
	case TwinGetResponse:
		return "twin_get_response"
	case TwinResponse:
		return "twin_response"
	case DirectMethodInvocation:
		return "direct_method"
	case DeviceBoundMessage:
		return "device_bound"
	default:
		return "unrecognized"
	}
}

// DefaultRequestID is used when a method topic carries no $rid.
const DefaultRequestID = "1"

// Message is the result of classifying one inbound publish.
type Message struct {
	Kind    Kind
	Topic   string
	Payload []byte

	// MethodName and RequestID are set for DirectMethodInvocation.
	MethodName string
	RequestID  string

	// MissingRequestID is true when RequestID fell back to DefaultRequestID.
	MissingRequestID bool

	// CommandName is the methodName field of a DeviceBoundMessage.
	CommandName string

	// Reason explains why a message is Unrecognized.
	Reason string
}
