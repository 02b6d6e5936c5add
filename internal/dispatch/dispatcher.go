package dispatch

import (
	"fmt"
	"sync"
)

// Protocol defaults used when a callback does not set a response.
const (
	DefaultResponseCode    = 200
	DefaultCommandResponse = "{}"
	DefaultSettingsStatus  = "completed"
)

// Event is one occurrence handed to a callback.
type Event struct {
	Name EventName

	// Payload is the message body (JSON for commands and settings).
	Payload []byte

	// Tag is the method, command or property name. Empty for connection events.
	Tag string

	// Status is the transport reason code or acknowledgement status.
	Status int

	// MessageID is the transport message id for MessageSent.
	MessageID uint32
}

// CallbackInfo is passed to callbacks. Response fields only matter for
// Command and SettingsUpdated.
type CallbackInfo struct {
	Event

	responseCode    int
	responseMessage string
	responseSet     bool
}

// SetResponse records the answer sent back to the service.
func (c *CallbackInfo) SetResponse(code int, message string) {
	c.responseCode = code
	c.responseMessage = message
	c.responseSet = true
}

// Response returns what SetResponse recorded, if anything.
func (c *CallbackInfo) Response() (code int, message string, ok bool) {
	return c.responseCode, c.responseMessage, c.responseSet
}

// Callback is a user handler.
type Callback func(info *CallbackInfo)

// Result reports the outcome of Dispatch.
type Result struct {
	// Invoked is false when no callback was registered.
	Invoked bool

	// ResponseCode and ResponseMessage hold the callback answer, or the
	// defaults for Command and SettingsUpdated.
	ResponseCode    int
	ResponseMessage string
}

// Dispatcher is the callback table.
//
// Thread Safety: On and Dispatch may be called concurrently.
type Dispatcher struct {
	mu        sync.RWMutex
	callbacks map[EventName]Callback
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{callbacks: make(map[EventName]Callback)}
}

// On registers cb for name, replacing any previous callback. A nil cb
// removes the registration.
func (d *Dispatcher) On(name EventName, cb Callback) error {
	if !name.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEvent, int(name))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cb == nil {
		delete(d.callbacks, name)
		return nil
	}
	d.callbacks[name] = cb
	return nil
}

// Dispatch invokes the callback for ev.Name synchronously.
func (d *Dispatcher) Dispatch(ev Event) Result {
	d.mu.RLock()
	cb := d.callbacks[ev.Name]
	d.mu.RUnlock()

	res := defaultResult(ev.Name)
	if cb == nil {
		return res
	}

	info := &CallbackInfo{Event: ev}
	cb(info)
	res.Invoked = true

	if code, msg, ok := info.Response(); ok {
		res.ResponseCode = code
		res.ResponseMessage = msg
	}
	return res
}

func defaultResult(name EventName) Result {
	switch name {
	case Command:
		return Result{ResponseCode: DefaultResponseCode, ResponseMessage: DefaultCommandResponse}
	case SettingsUpdated:
		return Result{ResponseCode: DefaultResponseCode, ResponseMessage: DefaultSettingsStatus}
	default:
		return Result{}
	}
}
