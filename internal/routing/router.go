package routing

import (
	"strings"

	"github.com/goccy/go-json"
)

// Topic prefixes recognised by Classify.
const (
	prefixDesired    = "$iothub/twin/PATCH/properties/desired/"
	prefixTwinGetOK  = "$iothub/twin/res/200/?$rid="
	prefixTwinRes    = "$iothub/twin/res/"
	prefixMethods    = "$iothub/methods"
	prefixMethodPost = "$iothub/methods/POST/"
	ridMarker        = "$rid="
)

// Classify maps an inbound publish to exactly one Kind.
//
// It never fails: anything that cannot be classified comes back as
// Unrecognized with Reason set.
func Classify(deviceID, topic string, payload []byte) Message {
	msg := Message{Topic: topic, Payload: payload}

	switch {
	case strings.HasPrefix(topic, prefixDesired):
		msg.Kind = TwinDesiredUpdate

	case strings.HasPrefix(topic, prefixTwinGetOK):
		msg.Kind = TwinGetResponse

	case strings.HasPrefix(topic, prefixMethods):
		msg.Kind = DirectMethodInvocation
		msg.MethodName = methodName(topic)
		if rid, ok := requestID(topic); ok {
			msg.RequestID = rid
		} else {
			msg.RequestID = DefaultRequestID
			msg.MissingRequestID = true
		}

	case strings.HasPrefix(topic, prefixTwinRes):
		msg.Kind = TwinResponse

	case deviceID != "" && strings.HasPrefix(topic, deviceBoundPrefix(deviceID)):
		name, reason := commandName(payload)
		if reason != "" {
			msg.Kind = Unrecognized
			msg.Reason = reason
			return msg
		}
		msg.Kind = DeviceBoundMessage
		msg.CommandName = name

	default:
		msg.Kind = Unrecognized
		msg.Reason = "unknown topic"
	}

	return msg
}

// methodName returns the segment after $iothub/methods/POST/, or "".
func methodName(topic string) string {
	rest, ok := strings.CutPrefix(topic, prefixMethodPost)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// requestID extracts the $rid value from a topic's query fragment.
func requestID(topic string) (string, bool) {
	_, query, ok := strings.Cut(topic, "?")
	if !ok {
		return "", false
	}
	for _, pair := range strings.Split(query, "&") {
		if v, found := strings.CutPrefix(pair, ridMarker); found && v != "" {
			return v, true
		}
	}
	return "", false
}

func deviceBoundPrefix(deviceID string) string {
	return "devices/" + deviceID + "/messages/devicebound"
}

// commandName reads methodName from a device-bound payload. A non-empty
// reason means the payload is not a command.
func commandName(payload []byte) (name, reason string) {
	var body struct {
		MethodName *string `json:"methodName"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", "device-bound payload is not a JSON object"
	}
	if body.MethodName == nil {
		return "", "device-bound payload has no methodName"
	}
	return *body.MethodName, ""
}
