package session

import "errors"

// Domain errors for the session. Use errors.Is to check them.
var (
	// ErrTransportAuth is returned by Connect when the hub refuses the
	// connection. The CONNACK code is also delivered as ConnectionStatus.
	ErrTransportAuth = errors.New("session: transport authentication failed")

	// ErrNotConnected is returned by operations that need a Connected session.
	ErrNotConnected = errors.New("session: not connected")

	// ErrInvalidState is returned when Connect is called while a session is active.
	ErrInvalidState = errors.New("session: invalid state for operation")

	// ErrInvalidTransition is returned when a state change is not in the transition table.
	ErrInvalidTransition = errors.New("session: invalid state transition")

	// ErrInvalidQoS is returned by New for a QoS other than 0 or 1.
	ErrInvalidQoS = errors.New("session: qos must be 0 or 1")

	// ErrConnectTimeout is returned when no CONNACK arrives in time.
	ErrConnectTimeout = errors.New("session: timed out waiting for connack")

	// ErrInvalidIdentity is returned when the identity is incomplete.
	ErrInvalidIdentity = errors.New("session: invalid identity")
)
