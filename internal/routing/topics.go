package routing

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Outbound topic constants.
const (
	// TwinGetTopic requests the full twin document. The $rid is fixed so the
	// answer can be recognised as TwinGetResponse.
	TwinGetTopic = "$iothub/twin/GET/?$rid=0"

	// MessageIDProperty is the system property carrying a telemetry message id.
	MessageIDProperty = "$.mid"
)

// Topics builds topics for one device.
//
//	topics := routing.Topics{DeviceID: "sensor-01"}
//	topics.ReportedPatch(1700000000)
//	// Returns: "$iothub/twin/PATCH/properties/reported/?$rid=1700000000"
type Topics struct {
	DeviceID string
}

// Telemetry returns the device-to-cloud topic with an optional property bag.
// Properties are url-encoded and sorted by key so the topic is deterministic.
//
// Example: devices/sensor-01/messages/events/?level=high&unit=C
func (t Topics) Telemetry(properties map[string]string) string {
	base := fmt.Sprintf("devices/%s/messages/events/", t.DeviceID)
	if len(properties) == 0 {
		return base
	}

	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(properties[k]))
	}
	return base + "?" + strings.Join(pairs, "&")
}

// ReportedPatch returns the reported-properties topic. rid is conventionally
// the current unix time in seconds.
func (t Topics) ReportedPatch(rid int64) string {
	return fmt.Sprintf("$iothub/twin/PATCH/properties/reported/?$rid=%d", rid)
}

// MethodResponse returns the topic answering a direct method invocation.
func (t Topics) MethodResponse(code int, requestID string) string {
	return fmt.Sprintf("$iothub/methods/res/%d/?$rid=%s", code, requestID)
}

// TwinGet returns TwinGetTopic.
func (t Topics) TwinGet() string {
	return TwinGetTopic
}

// SubscriptionFilters returns the filters issued on every transition into a
// connected session, in order.
func (t Topics) SubscriptionFilters() []string {
	return []string{
		fmt.Sprintf("devices/%s/messages/events/#", t.DeviceID),
		fmt.Sprintf("devices/%s/messages/devicebound/#", t.DeviceID),
		"$iothub/twin/PATCH/properties/desired/#",
		"$iothub/twin/res/#",
		"$iothub/methods/#",
	}
}
