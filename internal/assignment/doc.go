// Package assignment remembers which IoT hub the provisioning service
// assigned to each device.
//
// A cached host lets a restarted device skip the provisioning round trip.
// The session forgets an entry when the hub refuses the device, so the
// next connect provisions again.
package assignment
