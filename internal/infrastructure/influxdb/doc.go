// Package influxdb records iotc-device session diagnostics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Connect returns a
// Client; Client.Recorder returns a session observer that turns state
// changes, publishes, acknowledgements, inbound messages and anomalies
// into points.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	opts.Observers = append(opts.Observers, client.Recorder(scopeID, deviceID))
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// errors are delivered to the SetOnError callback.
package influxdb
