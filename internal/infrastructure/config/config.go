package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the device client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device          DeviceConfig          `yaml:"device"`
	Provisioning    ProvisioningConfig    `yaml:"provisioning"`
	Session         SessionConfig         `yaml:"session"`
	AssignmentCache AssignmentCacheConfig `yaml:"assignment_cache"`
	InfluxDB        InfluxDBConfig        `yaml:"influxdb"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// Credential types accepted in device.credential_type.
const (
	CredentialSymmetricKey = "symmetric_key"
	CredentialX509         = "x509"
)

// DeviceConfig identifies the device and holds its credential.
type DeviceConfig struct {
	ScopeID  string `yaml:"scope_id" env:"IOTC_SCOPE_ID"`
	DeviceID string `yaml:"device_id" env:"IOTC_DEVICE_ID"`

	// CredentialType is "symmetric_key" or "x509".
	CredentialType string `yaml:"credential_type" env:"IOTC_CREDENTIAL_TYPE"`

	// SymmetricKey is the base64 device key. Prefer the environment variable.
	SymmetricKey string `yaml:"symmetric_key" env:"IOTC_SYMMETRIC_KEY"`

	// CertFile and KeyFile are PEM files for x509 credentials.
	CertFile string `yaml:"cert_file" env:"IOTC_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"IOTC_KEY_FILE"`
}

// ProvisioningConfig contains device provisioning service settings.
type ProvisioningConfig struct {
	Endpoint string `yaml:"endpoint" env:"IOTC_DPS_ENDPOINT"`

	// PollInterval is the wait between "assigning" polls and InitialDelay the
	// wait before the first poll. Zero means poll immediately.
	PollInterval time.Duration `yaml:"poll_interval"`
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxAttempts is how many "assigning" answers are retried.
	MaxAttempts int `yaml:"max_attempts"`

	// ModelData is a JSON document sent with the registration. Setting it
	// switches the provisioning API version.
	ModelData string `yaml:"model_data" env:"IOTC_MODEL_DATA"`
}

// SessionConfig contains hub session settings.
type SessionConfig struct {
	// Host skips provisioning and connects to this hub directly.
	Host string `yaml:"host" env:"IOTC_HOST"`

	QoS            int           `yaml:"qos" env:"IOTC_QOS"`
	TokenLifetime  time.Duration `yaml:"token_lifetime" env:"IOTC_TOKEN_LIFETIME"`
	CleanSession   bool          `yaml:"clean_session"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PumpInterval   time.Duration `yaml:"pump_interval"`

	// VerifyTLS disables certificate verification when false. Never use in production.
	VerifyTLS bool `yaml:"verify_tls" env:"IOTC_VERIFY_TLS"`

	// CAFile replaces the system roots for hub and DPS connections.
	CAFile string `yaml:"ca_file" env:"IOTC_CA_FILE"`

	// ExitOnError terminates the process when the hub answers "not authorised".
	ExitOnError bool `yaml:"exit_on_error" env:"IOTC_EXIT_ON_ERROR"`
}

// AssignmentCacheConfig contains the SQLite assignment cache settings.
type AssignmentCacheConfig struct {
	Enabled     bool   `yaml:"enabled" env:"IOTC_CACHE_ENABLED"`
	Path        string `yaml:"path" env:"IOTC_CACHE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for session diagnostics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"IOTC_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"IOTC_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"IOTC_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig contains Prometheus exporter settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"IOTC_METRICS_ENABLED"`
	Listen    string `yaml:"listen" env:"IOTC_METRICS_LISTEN"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"IOTC_LOG_LEVEL"`
	Format string `yaml:"format" env:"IOTC_LOG_FORMAT"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables are declared on the struct fields with `env` tags,
// for example IOTC_SCOPE_ID, IOTC_SYMMETRIC_KEY and IOTC_HOST.
//
// Parameters:
//   - path: Path to the YAML configuration file. An empty path skips the
//     file, so a device can be configured from the environment alone.
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			CredentialType: CredentialSymmetricKey,
		},
		Provisioning: ProvisioningConfig{
			Endpoint:     "global.azure-devices-provisioning.net",
			PollInterval: 3 * time.Second,
			InitialDelay: 1 * time.Second,
			MaxAttempts:  20,
		},
		Session: SessionConfig{
			QoS:            0,
			TokenLifetime:  6 * time.Hour,
			CleanSession:   true,
			KeepAlive:      120 * time.Second,
			ConnectTimeout: 30 * time.Second,
			PumpInterval:   1 * time.Second,
			VerifyTLS:      true,
		},
		AssignmentCache: AssignmentCacheConfig{
			Path:        "./data/iotc-device.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Listen:    ":9100",
			Path:      "/metrics",
			Namespace: "iotc",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides declared with env tags.
func applyEnvOverrides(cfg *Config) error {
	err := envdecode.Decode(cfg)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("reading environment overrides: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device identity
	if c.Device.ScopeID == "" {
		errs = append(errs, "device.scope_id is required")
	}
	if c.Device.DeviceID == "" {
		errs = append(errs, "device.device_id is required")
	}
	switch c.Device.CredentialType {
	case CredentialSymmetricKey:
		if c.Device.SymmetricKey == "" {
			errs = append(errs, "device.symmetric_key is required (set IOTC_SYMMETRIC_KEY environment variable)")
		}
	case CredentialX509:
		if c.Device.CertFile == "" || c.Device.KeyFile == "" {
			errs = append(errs, "device.cert_file and device.key_file are required for x509 credentials")
		}
	default:
		errs = append(errs, fmt.Sprintf("device.credential_type must be %q or %q", CredentialSymmetricKey, CredentialX509))
	}

	// Provisioning
	if c.Session.Host == "" && c.Provisioning.Endpoint == "" {
		errs = append(errs, "provisioning.endpoint is required unless session.host is set")
	}
	if c.Provisioning.MaxAttempts < 1 {
		errs = append(errs, "provisioning.max_attempts must be at least 1")
	}
	if c.Provisioning.PollInterval < 0 || c.Provisioning.InitialDelay < 0 {
		errs = append(errs, "provisioning intervals cannot be negative")
	}
	if c.Provisioning.ModelData != "" && !json.Valid([]byte(c.Provisioning.ModelData)) {
		errs = append(errs, "provisioning.model_data must be valid JSON")
	}

	// Session
	if c.Session.QoS < 0 || c.Session.QoS > 1 {
		errs = append(errs, "session.qos must be 0 or 1")
	}
	if c.Session.TokenLifetime <= 0 {
		errs = append(errs, "session.token_lifetime must be positive")
	}

	// Optional components
	if c.AssignmentCache.Enabled && c.AssignmentCache.Path == "" {
		errs = append(errs, "assignment_cache.path is required when the cache is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, "metrics.listen is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ModelData returns the provisioning model data as raw JSON, or nil.
func (c *Config) ModelData() json.RawMessage {
	if c.Provisioning.ModelData == "" {
		return nil
	}
	return json.RawMessage(c.Provisioning.ModelData)
}
