// Package mqtt adapts the paho MQTT client to the device session.
//
// Paho delivers connection results, inbound messages, publish completions
// and connection loss on its own goroutines. The Transport converts each of
// these into an Event on a single buffered channel so the session can consume
// them on one goroutine, in arrival order:
//
//	paho goroutines ──► Transport.Events() ──► Session.Pump
//
// The Transport never reconnects on its own. A lost connection is reported
// once as EventConnectionLost and the session decides what to do next.
//
// # Message ids
//
// Publish returns a transport message id assigned by the adapter (paho does
// not expose the packet id before the publish completes). The matching
// EventPublishAck carries the same id.
//
// # Connect result codes
//
// EventConnAck.Code is the MQTT CONNACK return code (0 accepted, 5 not
// authorised, and so on). Failures that never reached a CONNACK are reported
// with paho's network error code 0xFE.
//
// # Usage
//
//	t := mqtt.NewTransport(logger)
//	err := t.Connect(mqtt.ConnectOptions{Host: host, ClientID: deviceID, Username: user, Password: token})
//	for ev := range t.Events() {
//	    // EventConnAck, EventMessage, EventPublishAck, EventConnectionLost
//	}
package mqtt
