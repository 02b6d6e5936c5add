package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/infrastructure/mqtt"
)

// Connect resolves the hub, authenticates and prepares the session.
//
// With a non-empty hostOverride the provisioning step is skipped. Otherwise
// the assignment cache (if configured) and then the provisioning service are
// consulted.
//
// On success the session is Connected, the five subscription filters are in
// place, the twin snapshot has been requested and ConnectionStatus(0) has
// fired.
//
// Returns:
//   - credential errors for unusable secrets or certificates
//   - provisioning errors (the session ends Faulted)
//   - ErrTransportAuth if the hub refuses the connection (Faulted)
//   - ErrConnectTimeout or ctx.Err() if no CONNACK arrives (Faulted)
//   - ErrInvalidState if a session is already active
func (s *Session) Connect(ctx context.Context, hostOverride string) error {
	s.mu.Lock()
	if s.state != Disconnected && s.state != Faulted {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidState, state)
	}
	s.sessionID = uuid.NewString()
	s.fromCache = false
	sessionID := s.sessionID
	s.mu.Unlock()

	if err := s.identity.Credential.Validate(); err != nil {
		return fmt.Errorf("session credential: %w", err)
	}

	s.logger.Info("session connecting",
		"session_id", sessionID,
		"device_id", s.identity.DeviceID,
		"credential", s.identity.Credential.Kind.String(),
	)

	host, err := s.resolveHost(ctx, hostOverride)
	if err != nil {
		return err
	}

	return s.authenticate(ctx, host)
}

// resolveHost returns the hub to connect to, provisioning when needed.
func (s *Session) resolveHost(ctx context.Context, hostOverride string) (string, error) {
	if hostOverride != "" {
		return hostOverride, nil
	}

	if s.opts.Cache != nil {
		host, ok, err := s.opts.Cache.Lookup(ctx, s.identity.ScopeID, s.identity.DeviceID)
		switch {
		case err != nil:
			s.logger.Warn("assignment cache lookup failed", "error", err)
		case ok:
			s.logger.Info("using cached assignment", "host", host)
			s.mu.Lock()
			s.fromCache = true
			s.mu.Unlock()
			return host, nil
		}
	}

	if err := s.transition(Provisioning); err != nil {
		return "", err
	}

	started := s.opts.Now()
	assignment, err := s.opts.Provisioner.Provision(ctx, s.identity)
	s.observers.Provisioned(s.opts.Now().Sub(started), err)
	if err != nil {
		s.fault()
		s.logger.Error("provisioning failed", "device_id", s.identity.DeviceID, "error", err)
		return "", fmt.Errorf("provisioning %s: %w", s.identity.DeviceID, err)
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Store(ctx, s.identity.ScopeID, s.identity.DeviceID, assignment.Host); err != nil {
			s.logger.Warn("assignment cache store failed", "error", err)
		}
	}
	return assignment.Host, nil
}

// authenticate opens the transport and waits for the CONNACK.
func (s *Session) authenticate(ctx context.Context, host string) error {
	if err := s.transition(Authenticating); err != nil {
		return err
	}

	opts, expiry, err := s.connectOptions(host)
	if err != nil {
		s.fault()
		return err
	}

	s.mu.Lock()
	s.host = host
	s.tokenExpiry = expiry
	s.mu.Unlock()

	if n := s.transport.Drain(); n > 0 {
		s.logger.Debug("discarded stale transport events", "count", n)
	}

	if err := s.transport.Connect(opts); err != nil {
		s.fault()
		s.forgetCachedHost(ctx, host)
		return fmt.Errorf("session connect %s: %w", host, err)
	}

	code, err := s.awaitConnAck(ctx)
	if err != nil {
		s.transport.Disconnect()
		s.fault()
		s.forgetCachedHost(ctx, host)
		return err
	}

	if code != StatusOK {
		return s.refused(ctx, host, code)
	}

	if err := s.transition(Connected); err != nil {
		s.transport.Disconnect()
		return err
	}

	filters := s.topics.SubscriptionFilters()
	if err := s.transport.Subscribe(filters, 0); err != nil {
		s.logger.Error("subscribe failed", "host", host, "error", err)
		s.teardown(StatusConnectionLost)
		return fmt.Errorf("session subscribe: %w", err)
	}
	s.mu.Lock()
	s.subscriptions = filters
	s.mu.Unlock()

	if _, err := s.publish(KindTwinGet, s.topics.TwinGet(), nil, 0, false); err != nil {
		s.logger.Warn("twin request failed", "error", err)
	}

	s.logger.Info("session connected", "session_id", s.SessionID(), "host", host)
	s.dispatcher.Dispatch(dispatch.Event{Name: dispatch.ConnectionStatus, Status: StatusOK})
	return nil
}

// connectOptions builds transport options and derives the hub token.
func (s *Session) connectOptions(host string) (mqtt.ConnectOptions, time.Time, error) {
	tlsConfig := &tls.Config{}
	if s.opts.TLSConfig != nil {
		tlsConfig = s.opts.TLSConfig.Clone()
	}

	opts := mqtt.ConnectOptions{
		Host:           host,
		Port:           mqtt.DefaultPort,
		ClientID:       s.identity.DeviceID,
		Username:       fmt.Sprintf("%s/%s/?api-version=%s", host, s.identity.DeviceID, MQTTAPIVersion),
		TLSConfig:      tlsConfig,
		KeepAlive:      s.opts.KeepAlive,
		ConnectTimeout: s.opts.ConnectTimeout,
		CleanSession:   s.opts.CleanSession,
	}

	var expiry time.Time
	switch s.identity.Credential.Kind {
	case credential.KindSymmetricKey:
		tok, _, err := s.identity.Token(credential.DeviceResource(host, s.identity.DeviceID), s.opts.TokenLifetime, s.opts.Now())
		if err != nil {
			return opts, expiry, fmt.Errorf("session token: %w", err)
		}
		opts.Password = tok.String()
		expiry = tok.ExpiresAt()
	case credential.KindX509:
		cert, err := s.identity.Credential.TLSCertificate()
		if err != nil {
			return opts, expiry, fmt.Errorf("session certificate: %w", err)
		}
		tlsConfig.Certificates = append(tlsConfig.Certificates, cert)
	}

	return opts, expiry, nil
}

// awaitConnAck reads transport events until the CONNACK.
func (s *Session) awaitConnAck(ctx context.Context) (int, error) {
	timer := time.NewTimer(s.opts.ConnectTimeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-s.transport.Events():
			if ev.Type == mqtt.EventConnAck {
				return ev.Code, nil
			}
			s.logger.Debug("ignoring transport event before connack", "event", ev.Type.String())
		case <-timer.C:
			return 0, fmt.Errorf("%w after %v", ErrConnectTimeout, s.opts.ConnectTimeout)
		case <-ctx.Done():
			return 0, fmt.Errorf("session connect: %w", ctx.Err())
		}
	}
}

// refused handles a non-zero CONNACK.
func (s *Session) refused(ctx context.Context, host string, code int) error {
	s.fault()
	s.logger.Error("hub refused connection", "host", host, "code", code)

	s.forgetCachedHost(ctx, host)

	s.dispatcher.Dispatch(dispatch.Event{Name: dispatch.ConnectionStatus, Status: code})

	if code == StatusNotAuthorized && s.opts.ExitOnError {
		s.logger.Error("not authorised, exiting", "device_id", s.identity.DeviceID)
		s.opts.Exit(1)
	}

	return fmt.Errorf("%w: connack code %d", ErrTransportAuth, code)
}

// forgetCachedHost drops a cached assignment that failed to authenticate,
// so the next Connect provisions again. It still runs when ctx is done.
func (s *Session) forgetCachedHost(ctx context.Context, host string) {
	s.mu.Lock()
	fromCache := s.fromCache
	s.mu.Unlock()
	if !fromCache || s.opts.Cache == nil {
		return
	}

	if err := s.opts.Cache.Forget(context.WithoutCancel(ctx), s.identity.ScopeID, s.identity.DeviceID); err != nil {
		s.logger.Warn("assignment cache forget failed", "host", host, "error", err)
		return
	}
	s.logger.Info("forgot cached assignment", "host", host)
}

// fault moves to Faulted from Provisioning or Authenticating.
func (s *Session) fault() {
	if err := s.transition(Faulted); err != nil {
		s.logger.Warn("session fault transition skipped", "error", err)
	}
}
