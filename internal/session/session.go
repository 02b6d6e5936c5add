package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/routing"
)

// Connection status codes delivered through ConnectionStatus.
const (
	// StatusOK reports a successful connect or a user-initiated disconnect.
	StatusOK = 0

	// StatusPublishFailed is the MessageSent status for a failed publish.
	StatusPublishFailed = 1

	// StatusNotAuthorized is the CONNACK code for a refused credential.
	StatusNotAuthorized = 5

	// StatusConnectionLost reports an unexpected transport disconnect.
	StatusConnectionLost = 7
)

// Publish kinds, used as PendingPublish tags and metrics labels.
const (
	KindTelemetry      = "telemetry"
	KindProperty       = "property"
	KindMethodResponse = "method_response"
	KindTwinGet        = "twin_get"
)

// pendingPublish is a publish awaiting its transport acknowledgement.
type pendingPublish struct {
	kind    string
	topic   string
	payload []byte
	sentAt  time.Time

	// notify is false for protocol publishes that are not surfaced as MessageSent.
	notify bool
}

// Session is one device connection.
//
// Thread Safety: all methods are safe for concurrent use, but events are only
// dispatched by Pump (and by Connect while it waits for the CONNACK).
type Session struct {
	identity   credential.Identity
	transport  Transport
	opts       Options
	dispatcher *dispatch.Dispatcher
	topics     routing.Topics
	observers  observers
	logger     Logger

	mu            sync.Mutex
	state         State
	host          string
	sessionID     string
	tokenExpiry   time.Time
	fromCache     bool
	subscriptions []string

	// epoch advances whenever the session leaves Authenticating/Connected.
	epoch uint64

	// pendingMu guards the PendingPublish table and is held across
	// transport publishes; it is never acquired while mu is held.
	pendingMu    sync.Mutex
	pending      map[uint32]pendingPublish
	pendingEpoch uint64
}

// New creates a Session in the Disconnected state.
//
// Returns ErrInvalidIdentity for a missing scope or device id and
// ErrInvalidQoS for a QoS above 1.
func New(identity credential.Identity, transport Transport, opts Options) (*Session, error) {
	if identity.DeviceID == "" || identity.ScopeID == "" {
		return nil, fmt.Errorf("%w: scope id and device id are required", ErrInvalidIdentity)
	}
	if transport == nil {
		return nil, fmt.Errorf("session: transport is required")
	}

	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if opts.Provisioner == nil {
		opts.Provisioner = defaultProvisioner(identity, opts)
	}

	return &Session{
		identity:   identity,
		transport:  transport,
		opts:       opts,
		dispatcher: dispatch.New(),
		topics:     routing.Topics{DeviceID: identity.DeviceID},
		observers:  observers(opts.Observers),
		logger:     opts.Logger,
		state:      Disconnected,
		pending:    make(map[uint32]pendingPublish),
	}, nil
}

// On registers the callback for an event. Last registration wins.
func (s *Session) On(name dispatch.EventName, cb dispatch.Callback) error {
	return s.dispatcher.On(name, cb)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is Connected.
func (s *Session) IsConnected() bool {
	return s.State() == Connected
}

// Host returns the hub of the current or last connection.
func (s *Session) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// SessionID identifies the current connect attempt in logs and metrics.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// TokenExpiry returns when the hub token expires. Tokens are not refreshed
// during a session; reconnect before this time. Zero for X.509 identities.
func (s *Session) TokenExpiry() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenExpiry
}

// Subscriptions returns the active subscription filters.
func (s *Session) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscriptions...)
}

// PendingCount returns the number of publishes awaiting acknowledgement.
func (s *Session) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.syncPendingLocked()
	return len(s.pending)
}

// Disconnect tears down a Connected session and fires ConnectionStatus(0).
//
// Returns ErrNotConnected if the session is not Connected.
func (s *Session) Disconnect() error {
	if !s.teardown(StatusOK) {
		return ErrNotConnected
	}
	return nil
}

// teardown moves Connected → Disconnecting → Disconnected, closes the
// transport and reports code. It returns false if the session was not Connected.
func (s *Session) teardown(code int) bool {
	if err := s.transition(Disconnecting); err != nil {
		return false
	}

	s.transport.Disconnect()

	if err := s.transition(Disconnected); err != nil {
		s.logger.Error("session teardown failed", "error", err)
	}

	s.logger.Info("session disconnected", "session_id", s.SessionID(), "code", code)
	s.dispatcher.Dispatch(dispatch.Event{Name: dispatch.ConnectionStatus, Status: code})
	return true
}

// transition moves to the given state if the transition table allows it.
// Leaving Authenticating/Connected clears the PendingPublish table; leaving
// Connected clears the subscription set.
func (s *Session) transition(to State) error {
	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.state = to
	if !to.holdsPending() {
		s.epoch++
	}
	if to != Connected {
		s.subscriptions = nil
	}
	sessionID := s.sessionID
	s.mu.Unlock()

	s.logger.Debug("session state changed", "session_id", sessionID, "from", from.String(), "to", to.String())
	s.observers.StateChanged(from, to)
	return nil
}
