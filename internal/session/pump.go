package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/infrastructure/mqtt"
)

// Pump dispatches queued transport events on the calling goroutine.
//
// It waits up to the pump interval for the first event, then handles every
// event already queued, stopping early if the session leaves Connected.
// It returns the number of events handled.
//
// Returns ErrNotConnected when called on a session that is not Connected and
// ctx.Err() when ctx ends before any event arrives.
func (s *Session) Pump(ctx context.Context) (int, error) {
	if !s.IsConnected() {
		return 0, ErrNotConnected
	}

	timer := time.NewTimer(s.opts.PumpInterval)
	defer timer.Stop()

	events := s.transport.Events()

	select {
	case ev := <-events:
		s.handleEvent(ev)
	case <-timer.C:
		return 0, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("session pump: %w", ctx.Err())
	}

	handled := 1
	for s.IsConnected() {
		select {
		case ev := <-events:
			s.handleEvent(ev)
			handled++
		default:
			return handled, nil
		}
	}
	return handled, nil
}

// Run pumps until ctx ends or the session is no longer Connected.
// A disconnect returns nil; a cancelled ctx returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	for {
		if _, err := s.Pump(ctx); err != nil {
			if errors.Is(err, ErrNotConnected) {
				return nil
			}
			return err
		}
	}
}

// handleEvent routes one transport event.
func (s *Session) handleEvent(ev mqtt.Event) {
	switch ev.Type {
	case mqtt.EventMessage:
		s.handleMessage(ev.Topic, ev.Payload)

	case mqtt.EventPublishAck:
		s.handleAck(ev)

	case mqtt.EventConnectionLost:
		s.logger.Warn("connection lost", "host", s.Host(), "error", ev.Err)
		s.teardown(StatusConnectionLost)

	case mqtt.EventConnAck:
		s.logger.Debug("ignoring connack outside connect", "code", ev.Code)

	default:
		s.logger.Warn("unknown transport event", "type", int(ev.Type))
	}
}

// handleAck consumes the PendingPublish entry and fires MessageSent once.
func (s *Session) handleAck(ev mqtt.Event) {
	p, ok := s.acknowledge(ev.MessageID)
	if !ok {
		s.logger.Warn("publish acknowledgement for unknown message id", "message_id", ev.MessageID)
		s.observers.Anomaly(AnomalyUnknownAck)
		return
	}

	s.observers.Acknowledged(p.kind, ev.Err)

	status := StatusOK
	if ev.Err != nil {
		status = StatusPublishFailed
		s.logger.Warn("publish failed", "kind", p.kind, "topic", p.topic, "message_id", ev.MessageID, "error", ev.Err)
	} else {
		s.logger.Debug("publish acknowledged", "kind", p.kind, "message_id", ev.MessageID,
			"latency", s.opts.Now().Sub(p.sentAt))
	}

	if !p.notify {
		return
	}
	s.dispatcher.Dispatch(dispatch.Event{
		Name:      dispatch.MessageSent,
		Payload:   p.payload,
		Tag:       p.kind,
		Status:    status,
		MessageID: ev.MessageID,
	})
}
