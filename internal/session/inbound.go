package session

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/routing"
)

const versionKey = "$version"

// handleMessage classifies an inbound publish and answers it.
func (s *Session) handleMessage(topic string, payload []byte) {
	msg := routing.Classify(s.identity.DeviceID, topic, payload)
	s.observers.Inbound(msg.Kind.String())

	switch msg.Kind {
	case routing.TwinDesiredUpdate:
		s.applyDesired(payload)

	case routing.TwinGetResponse:
		s.applyTwinDocument(payload)

	case routing.DirectMethodInvocation:
		s.invokeMethod(msg)

	case routing.DeviceBoundMessage:
		s.dispatcher.Dispatch(dispatch.Event{
			Name:    dispatch.EnqueuedCommand,
			Payload: payload,
			Tag:     msg.CommandName,
		})

	case routing.TwinResponse:
		s.logger.Debug("twin response", "topic", topic)

	default:
		s.logger.Warn("dropping unrecognized message", "topic", topic, "reason", msg.Reason)
		s.observers.Anomaly(AnomalyUnrecognized)
	}
}

// invokeMethod fires Command and publishes the method response.
func (s *Session) invokeMethod(msg routing.Message) {
	if msg.MissingRequestID {
		s.logger.Warn("method invocation without $rid, using default", "topic", msg.Topic, "rid", msg.RequestID)
		s.observers.Anomaly(AnomalyMissingRequestID)
	}

	res := s.dispatcher.Dispatch(dispatch.Event{
		Name:    dispatch.Command,
		Payload: msg.Payload,
		Tag:     msg.MethodName,
	})

	topic := s.topics.MethodResponse(res.ResponseCode, msg.RequestID)
	if _, err := s.publish(KindMethodResponse, topic, []byte(res.ResponseMessage), 0, false); err != nil {
		s.logger.Error("method response failed", "method", msg.MethodName, "rid", msg.RequestID, "error", err)
	}
}

// applyTwinDocument processes the desired section of a full twin document.
func (s *Session) applyTwinDocument(payload []byte) {
	var doc struct {
		Desired json.RawMessage `json:"desired"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.logger.Warn("twin document is not JSON", "error", err)
		s.observers.Anomaly(AnomalyBadDesired)
		return
	}
	if len(doc.Desired) == 0 {
		s.logger.Debug("twin document has no desired section")
		return
	}
	s.applyDesired(doc.Desired)
}

// applyDesired fires SettingsUpdated once per changed property (in key order)
// and echoes each as a reported patch with its status and desired version.
func (s *Session) applyDesired(payload []byte) {
	var props map[string]json.RawMessage
	if err := json.Unmarshal(payload, &props); err != nil || props == nil {
		s.logger.Warn("desired properties are not a JSON object", "payload", string(payload))
		s.observers.Anomaly(AnomalyBadDesired)
		return
	}

	version, ok := props[versionKey]
	if !ok {
		s.logger.Warn("desired properties without $version", "payload", string(payload))
		s.observers.Anomaly(AnomalyBadDesired)
		return
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		if k != versionKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := props[key]
		res := s.dispatcher.Dispatch(dispatch.Event{
			Name:    dispatch.SettingsUpdated,
			Payload: value,
			Tag:     key,
		})

		patch, err := reportedPatch(key, value, version, res.ResponseCode, res.ResponseMessage)
		if err != nil {
			s.logger.Error("building reported patch failed", "property", key, "error", err)
			continue
		}
		if _, err := s.SendProperty(patch); err != nil {
			s.logger.Error("reported patch failed", "property", key, "error", err)
		}
	}
}

// reportedPatch builds {key: {...value, statusCode, status, desiredVersion}}.
// A value that is not an object is carried as "value".
func reportedPatch(key string, value, version json.RawMessage, code int, status string) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(value, &fields); err != nil || fields == nil {
		fields = map[string]json.RawMessage{"value": value}
	}

	codeJSON, err := json.Marshal(code)
	if err != nil {
		return nil, err
	}
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return nil, err
	}

	fields["statusCode"] = codeJSON
	fields["status"] = statusJSON
	fields["desiredVersion"] = version

	return json.Marshal(map[string]map[string]json.RawMessage{key: fields})
}
