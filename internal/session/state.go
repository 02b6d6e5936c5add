package session

import "fmt"

// State is the session lifecycle state.
type State int

const (
	// Disconnected is the initial state and the state after a clean teardown.
	Disconnected State = iota

	// Provisioning means the hub assignment is being resolved.
	Provisioning

	// Authenticating means the transport connect is in flight.
	Authenticating

	// Connected means subscriptions are in place and publishes are accepted.
	Connected

	// Disconnecting means the transport is being torn down.
	Disconnecting

	// Faulted means the last connect attempt failed. Connect may be retried.
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Provisioning:
		return "provisioning"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions is the only place allowed state changes are defined.
var transitions = map[State][]State{
	Disconnected:   {Provisioning, Authenticating},
	Provisioning:   {Authenticating, Faulted},
	Authenticating: {Connected, Faulted},
	Connected:      {Disconnecting},
	Disconnecting:  {Disconnected},
	Faulted:        {Provisioning, Authenticating},
}

// CanTransition reports whether from → to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// holdsPending reports whether PendingPublish entries may exist in s.
func (s State) holdsPending() bool {
	return s == Authenticating || s == Connected
}
