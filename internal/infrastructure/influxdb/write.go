package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by Recorder.
const (
	MeasurementState     = "iotc_state"
	MeasurementProvision = "iotc_provision"
	MeasurementPublish   = "iotc_publish"
	MeasurementAck       = "iotc_ack"
	MeasurementInbound   = "iotc_inbound"
	MeasurementAnomaly   = "iotc_anomaly"
)

// Recorder writes one point per session event. It satisfies session.Observer.
type Recorder struct {
	client   *Client
	scopeID  string
	deviceID string
	now      func() time.Time
}

// Recorder returns an observer tagging every point with the device identity.
func (c *Client) Recorder(scopeID, deviceID string) *Recorder {
	return &Recorder{client: c, scopeID: scopeID, deviceID: deviceID, now: time.Now}
}

// StateChanged records a transition; the new state is a tag.
func (r *Recorder) StateChanged(from, to string) {
	r.write(MeasurementState, map[string]string{"state": to},
		map[string]interface{}{"from": from})
}

// Provisioned records a provisioning run and how long it took.
func (r *Recorder) Provisioned(elapsed time.Duration, err error) {
	r.write(MeasurementProvision, map[string]string{"result": result(err)},
		map[string]interface{}{"elapsed_ms": float64(elapsed) / float64(time.Millisecond)})
}

// Published records an accepted outbound publish.
func (r *Recorder) Published(kind string) {
	r.write(MeasurementPublish, map[string]string{"kind": kind},
		map[string]interface{}{"count": 1})
}

// Acknowledged records publish completion.
func (r *Recorder) Acknowledged(kind string, err error) {
	r.write(MeasurementAck, map[string]string{"kind": kind, "result": result(err)},
		map[string]interface{}{"count": 1})
}

// Inbound records a classified inbound message.
func (r *Recorder) Inbound(kind string) {
	r.write(MeasurementInbound, map[string]string{"kind": kind},
		map[string]interface{}{"count": 1})
}

// Anomaly records a dropped protocol anomaly.
func (r *Recorder) Anomaly(reason string) {
	r.write(MeasurementAnomaly, map[string]string{"reason": reason},
		map[string]interface{}{"count": 1})
}

func (r *Recorder) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	tags["scope_id"] = r.scopeID
	tags["device_id"] = r.deviceID
	r.client.writePoint(write.NewPoint(measurement, tags, fields, r.now()))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
