// Package config handles loading and validating iotc-device configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IOTC_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The device key should be set via IOTC_SYMMETRIC_KEY, not the file
//   - The config file should have restricted permissions (0600)
//   - session.verify_tls: false is for local test hubs only
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.DeviceID)
package config
