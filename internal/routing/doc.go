// Package routing classifies inbound hub messages and builds outbound topics.
//
// The hub multiplexes several protocols over one MQTT connection. Every
// inbound publish is mapped to exactly one Kind by Classify, which is a pure
// function of (deviceID, topic, payload):
//
//	$iothub/twin/PATCH/properties/desired/...  TwinDesiredUpdate
//	$iothub/twin/res/200/?$rid=...             TwinGetResponse
//	$iothub/methods/POST/{name}/?$rid={id}     DirectMethodInvocation
//	$iothub/twin/res/...                       TwinResponse
//	devices/{id}/messages/devicebound/...      DeviceBoundMessage
//	anything else                              Unrecognized
//
// Rules are evaluated in that order; the first match wins.
//
// Outbound topics are built with the Topics helper:
//
//	topics := routing.Topics{DeviceID: "sensor-01"}
//	topics.Telemetry(nil)          // devices/sensor-01/messages/events/
//	topics.MethodResponse(200, "42") // $iothub/methods/res/200/?$rid=42
package routing
