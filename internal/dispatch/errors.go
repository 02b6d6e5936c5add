package dispatch

import "errors"

// ErrUnknownEvent is returned when an event name is not recognised.
var ErrUnknownEvent = errors.New("dispatch: unknown event")
