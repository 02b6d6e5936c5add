// Package dispatch holds the user callback table and invokes it.
//
// There is at most one callback per EventName; registering again replaces
// the previous one. Dispatch is synchronous and runs on the caller's
// goroutine (the session pump), so callbacks must not block for long.
//
// Command and SettingsUpdated callbacks may answer the service through
// CallbackInfo.SetResponse. When they do not (or no callback is registered)
// the protocol defaults apply: 200 with "{}" for commands and 200 with
// "completed" for settings.
package dispatch
