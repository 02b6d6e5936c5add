package dispatch

import (
	"fmt"
	"strings"
)

// EventName identifies a user-facing event.
type EventName int

const (
	// ConnectionStatus fires on connect, disconnect and connection loss.
	// Status carries the transport reason code.
	ConnectionStatus EventName = iota + 1

	// MessageSent fires once per acknowledged telemetry or property publish.
	MessageSent

	// Command fires for each direct method invocation. Tag is the method name.
	Command

	// SettingsUpdated fires once per changed desired property. Tag is the
	// property name.
	SettingsUpdated

	// EnqueuedCommand fires for each device-bound command. Tag is the command name.
	EnqueuedCommand
)

var eventNames = map[EventName]string{
	ConnectionStatus: "ConnectionStatus",
	MessageSent:      "MessageSent",
	Command:          "Command",
	SettingsUpdated:  "SettingsUpdated",
	EnqueuedCommand:  "EnqueuedCommand",
}

// Events lists every EventName in declaration order.
func Events() []EventName {
	return []EventName{ConnectionStatus, MessageSent, Command, SettingsUpdated, EnqueuedCommand}
}

func (e EventName) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("EventName(%d)", int(e))
}

// Valid reports whether e is a known event.
func (e EventName) Valid() bool {
	_, ok := eventNames[e]
	return ok
}

// ParseEventName accepts the canonical names case-insensitively.
func ParseEventName(s string) (EventName, error) {
	for e, name := range eventNames {
		if strings.EqualFold(name, s) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}
