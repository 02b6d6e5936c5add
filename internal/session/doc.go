// Package session turns a device identity into a live hub session.
//
// A Session owns the connection lifecycle:
//
//	Disconnected ──► Provisioning ──► Authenticating ──► Connected
//	      ▲               │                 │                │
//	      │               └────► Faulted ◄──┘                ▼
//	      └──────────────────────────────────────────── Disconnecting
//
// Connect resolves the hub (host override, assignment cache or the
// provisioning service), authenticates with a SAS token or client
// certificate, subscribes to the fixed filter set and requests the twin.
// Faulted ends a connect attempt; a new Connect may follow.
//
// # Event delivery
//
// The transport queues every connection result, inbound message and publish
// acknowledgement. Nothing reaches user callbacks until the application calls
// Pump, which dispatches queued events on the calling goroutine:
//
//	s, _ := session.New(identity, mqtt.NewTransport(log), session.Options{QoS: 1})
//	s.On(dispatch.Command, func(info *dispatch.CallbackInfo) {
//	    info.SetResponse(200, `{"ok":true}`)
//	})
//	if err := s.Connect(ctx, ""); err != nil {
//	    return err
//	}
//	for s.IsConnected() {
//	    s.Pump(ctx)
//	}
//
// Callbacks may call Send*, Disconnect and On; they must not call Pump.
package session
