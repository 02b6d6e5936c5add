package session

import "time"

// Observer receives session diagnostics. Implementations must be fast and
// must not call back into the Session.
//
// Arguments are plain strings so implementations do not depend on this package.
type Observer interface {
	// StateChanged is called after every state transition.
	StateChanged(from, to string)

	// Provisioned is called after each provisioning run.
	Provisioned(elapsed time.Duration, err error)

	// Published is called for every accepted publish. kind is one of the
	// publish kinds (telemetry, property, method_response, twin_get).
	Published(kind string)

	// Acknowledged is called when a tracked publish completes.
	Acknowledged(kind string, err error)

	// Inbound is called for every classified inbound message.
	Inbound(kind string)

	// Anomaly is called for protocol anomalies that are logged and dropped.
	Anomaly(reason string)
}

// Anomaly reasons.
const (
	AnomalyUnknownAck       = "unknown_ack"
	AnomalyMissingRequestID = "missing_request_id"
	AnomalyUnrecognized     = "unrecognized_message"
	AnomalyBadDesired       = "malformed_desired"
)

// observers fans out to every configured Observer.
type observers []Observer

func (o observers) StateChanged(from, to State) {
	for _, ob := range o {
		ob.StateChanged(from.String(), to.String())
	}
}

func (o observers) Provisioned(elapsed time.Duration, err error) {
	for _, ob := range o {
		ob.Provisioned(elapsed, err)
	}
}

func (o observers) Published(kind string) {
	for _, ob := range o {
		ob.Published(kind)
	}
}

func (o observers) Acknowledged(kind string, err error) {
	for _, ob := range o {
		ob.Acknowledged(kind, err)
	}
}

func (o observers) Inbound(kind string) {
	for _, ob := range o {
		ob.Inbound(kind)
	}
}

func (o observers) Anomaly(reason string) {
	for _, ob := range o {
		ob.Anomaly(reason)
	}
}
