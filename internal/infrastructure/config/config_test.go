package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testKey = "dGVzdC1zZWNyZXQtMTIzNDU2Nzg5MA=="

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  scope_id: "0ne000ABCD"
  device_id: "thermostat-1"
  credential_type: symmetric_key
  symmetric_key: "` + testKey + `"
provisioning:
  poll_interval: 5s
  max_attempts: 10
  model_data: '{"iotcModelId":"urn:example:thermostat:1"}'
session:
  qos: 1
  token_lifetime: 2h
assignment_cache:
  enabled: true
  path: "/tmp/iotc.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.DeviceID != "thermostat-1" {
		t.Errorf("Device.DeviceID = %q, want %q", cfg.Device.DeviceID, "thermostat-1")
	}

	if cfg.Provisioning.PollInterval != 5*time.Second {
		t.Errorf("Provisioning.PollInterval = %v, want 5s", cfg.Provisioning.PollInterval)
	}

	if cfg.Session.QoS != 1 {
		t.Errorf("Session.QoS = %d, want 1", cfg.Session.QoS)
	}

	if cfg.Session.TokenLifetime != 2*time.Hour {
		t.Errorf("Session.TokenLifetime = %v, want 2h", cfg.Session.TokenLifetime)
	}

	// Unset fields keep their defaults
	if cfg.Provisioning.Endpoint != "global.azure-devices-provisioning.net" {
		t.Errorf("Provisioning.Endpoint = %q, want default", cfg.Provisioning.Endpoint)
	}

	if got := string(cfg.ModelData()); !strings.Contains(got, "thermostat") {
		t.Errorf("ModelData() = %q, want model document", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  scope_id: ""
  device_id: "dev1"
  symmetric_key: "` + testKey + `"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty device.scope_id, got nil")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Setenv("IOTC_SYMMETRIC_KEY", testKey)

	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.SymmetricKey != testKey {
		t.Errorf("Device.SymmetricKey = %q, want value from environment", cfg.Device.SymmetricKey)
	}
	if cfg.Session.KeepAlive != 120*time.Second {
		t.Errorf("Session.KeepAlive = %v, want 120s", cfg.Session.KeepAlive)
	}
	if cfg.AssignmentCache.Enabled || cfg.InfluxDB.Enabled || cfg.Metrics.Enabled {
		t.Error("optional components should be disabled in the example config")
	}
}

func TestLoad_EnvironmentOnly(t *testing.T) {
	t.Setenv("IOTC_SCOPE_ID", "0ne000ABCD")
	t.Setenv("IOTC_DEVICE_ID", "env-device")
	t.Setenv("IOTC_SYMMETRIC_KEY", testKey)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.Device.DeviceID != "env-device" {
		t.Errorf("Device.DeviceID = %q, want %q", cfg.Device.DeviceID, "env-device")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Device.ScopeID = "0ne000ABCD"
	cfg.Device.DeviceID = "dev1"
	cfg.Device.SymmetricKey = testKey
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing scope ID",
			mutate:  func(c *Config) { c.Device.ScopeID = "" },
			wantErr: true,
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.DeviceID = "" },
			wantErr: true,
		},
		{
			name:    "missing symmetric key",
			mutate:  func(c *Config) { c.Device.SymmetricKey = "" },
			wantErr: true,
		},
		{
			name: "x509 without key file",
			mutate: func(c *Config) {
				c.Device.CredentialType = CredentialX509
				c.Device.CertFile = "/etc/iotc/dev1.pem"
			},
			wantErr: true,
		},
		{
			name: "x509 with cert and key",
			mutate: func(c *Config) {
				c.Device.CredentialType = CredentialX509
				c.Device.SymmetricKey = ""
				c.Device.CertFile = "/etc/iotc/dev1.pem"
				c.Device.KeyFile = "/etc/iotc/dev1.key"
			},
			wantErr: false,
		},
		{
			name:    "unknown credential type",
			mutate:  func(c *Config) { c.Device.CredentialType = "password" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.Session.QoS = 2 },
			wantErr: true,
		},
		{
			name:    "zero token lifetime",
			mutate:  func(c *Config) { c.Session.TokenLifetime = 0 },
			wantErr: true,
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Provisioning.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "model data not JSON",
			mutate:  func(c *Config) { c.Provisioning.ModelData = "{not json" },
			wantErr: true,
		},
		{
			name: "no endpoint but host override",
			mutate: func(c *Config) {
				c.Provisioning.Endpoint = ""
				c.Session.Host = "hub.example.net"
			},
			wantErr: false,
		},
		{
			name:    "no endpoint and no host",
			mutate:  func(c *Config) { c.Provisioning.Endpoint = "" },
			wantErr: true,
		},
		{
			name: "cache enabled without path",
			mutate: func(c *Config) {
				c.AssignmentCache.Enabled = true
				c.AssignmentCache.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}

	for _, want := range []string{"device.scope_id", "device.device_id", "session.qos"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("IOTC_SCOPE_ID", "0ne000FFFF")
	t.Setenv("IOTC_HOST", "hub.example.net")
	t.Setenv("IOTC_QOS", "1")
	t.Setenv("IOTC_TOKEN_LIFETIME", "30m")
	t.Setenv("IOTC_VERIFY_TLS", "false")
	t.Setenv("IOTC_INFLUXDB_TOKEN", "secret-token")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	if cfg.Device.ScopeID != "0ne000FFFF" {
		t.Errorf("Device.ScopeID = %q, want %q", cfg.Device.ScopeID, "0ne000FFFF")
	}

	if cfg.Session.Host != "hub.example.net" {
		t.Errorf("Session.Host = %q, want %q", cfg.Session.Host, "hub.example.net")
	}

	if cfg.Session.QoS != 1 {
		t.Errorf("Session.QoS = %d, want 1", cfg.Session.QoS)
	}

	if cfg.Session.TokenLifetime != 30*time.Minute {
		t.Errorf("Session.TokenLifetime = %v, want 30m", cfg.Session.TokenLifetime)
	}

	if cfg.Session.VerifyTLS {
		t.Error("Session.VerifyTLS = true, want false")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestApplyEnvOverrides_NothingSet(t *testing.T) {
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		t.Errorf("applyEnvOverrides() with no variables set error = %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Provisioning.MaxAttempts != 20 {
		t.Errorf("defaultConfig Provisioning.MaxAttempts = %d, want 20", cfg.Provisioning.MaxAttempts)
	}

	if cfg.Provisioning.PollInterval != 3*time.Second {
		t.Errorf("defaultConfig Provisioning.PollInterval = %v, want 3s", cfg.Provisioning.PollInterval)
	}

	if cfg.Session.QoS != 0 {
		t.Errorf("defaultConfig Session.QoS = %d, want 0", cfg.Session.QoS)
	}

	if !cfg.Session.VerifyTLS {
		t.Error("defaultConfig Session.VerifyTLS should be true")
	}
}
