package session

import (
	"fmt"
)

// SendTelemetry publishes a device-to-cloud message with optional
// application properties at the configured QoS.
//
// The returned id matches the MessageID of the MessageSent event fired when
// the transport acknowledges the publish.
func (s *Session) SendTelemetry(payload []byte, properties map[string]string) (uint32, error) {
	return s.publish(KindTelemetry, s.topics.Telemetry(properties), payload, s.opts.QoS, true)
}

// SendProperty publishes a reported-properties patch at the configured QoS.
func (s *Session) SendProperty(payload []byte) (uint32, error) {
	return s.publish(KindProperty, s.topics.ReportedPatch(s.opts.Now().Unix()), payload, s.opts.QoS, true)
}

// publish sends one message and records it in the PendingPublish table.
// notify selects whether its acknowledgement fires MessageSent.
//
// pendingMu is held across the transport call so the entry exists before
// Pump can process the acknowledgement. mu is not, so State, IsConnected
// and non-acknowledgement events keep answering while the transport blocks.
func (s *Session) publish(kind, topic string, payload []byte, qos byte, notify bool) (uint32, error) {
	s.mu.Lock()
	connected := s.state == Connected
	epoch := s.epoch
	s.mu.Unlock()
	if !connected {
		return 0, ErrNotConnected
	}

	s.pendingMu.Lock()
	id, err := s.transport.Publish(topic, payload, qos)
	if err != nil {
		s.pendingMu.Unlock()
		return 0, fmt.Errorf("session publish %s: %w", kind, err)
	}
	s.syncPendingLocked()
	if s.pendingEpoch == epoch {
		s.pending[id] = pendingPublish{
			kind:    kind,
			topic:   topic,
			payload: payload,
			sentAt:  s.opts.Now(),
			notify:  notify,
		}
	}
	s.pendingMu.Unlock()

	s.logger.Debug("published", "kind", kind, "topic", topic, "message_id", id, "qos", qos)
	s.observers.Published(kind)
	return id, nil
}

// acknowledge consumes the PendingPublish entry for id. It returns false for
// an unknown id.
func (s *Session) acknowledge(id uint32) (pendingPublish, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.syncPendingLocked()
	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return p, ok
}

// syncPendingLocked empties the table if it belongs to an earlier epoch.
// Callers hold pendingMu.
func (s *Session) syncPendingLocked() {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()
	if s.pendingEpoch != epoch {
		s.pending = make(map[uint32]pendingPublish)
		s.pendingEpoch = epoch
	}
}
