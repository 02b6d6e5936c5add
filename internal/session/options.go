package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/iotc-device/internal/provisioning"
)

// Defaults.
const (
	// DefaultConnectTimeout bounds the wait for the CONNACK.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultPumpInterval is how long Pump waits for the first event.
	DefaultPumpInterval = time.Second

	// MQTTAPIVersion is appended to the hub user name.
	MQTTAPIVersion = "2018-06-30"
)

// Transport is the MQTT connection used by a Session. *mqtt.Transport
// implements it.
type Transport interface {
	Connect(opts mqtt.ConnectOptions) error
	Subscribe(filters []string, qos byte) error
	Publish(topic string, payload []byte, qos byte) (uint32, error)
	Disconnect()
	Drain() int
	Events() <-chan mqtt.Event
}

// Provisioner resolves an identity to its assigned hub. *provisioning.Client
// implements it.
type Provisioner interface {
	Provision(ctx context.Context, id credential.Identity) (provisioning.Assignment, error)
}

// AssignmentCache remembers hub assignments between runs.
type AssignmentCache interface {
	Lookup(ctx context.Context, scopeID, deviceID string) (host string, ok bool, err error)
	Store(ctx context.Context, scopeID, deviceID, host string) error
	Forget(ctx context.Context, scopeID, deviceID string) error
}

// Logger is the logging surface used by the session.
// Compatible with *slog.Logger and *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Session. Zero values take defaults.
type Options struct {
	// QoS for telemetry and reported properties: 0 or 1.
	QoS byte

	// TokenLifetime is the validity of the hub SAS token.
	TokenLifetime time.Duration

	// CleanSession is passed to the transport.
	CleanSession bool

	// KeepAlive defaults to 120s.
	KeepAlive time.Duration

	// ConnectTimeout bounds the wait for the CONNACK.
	ConnectTimeout time.Duration

	// PumpInterval is how long Pump waits for the first event.
	PumpInterval time.Duration

	// TLSConfig is the base TLS configuration (root CAs, verification).
	// The client certificate is added for X.509 identities.
	TLSConfig *tls.Config

	// Provisioner resolves the hub when no host override is given.
	// Defaults to a provisioning.Client for Endpoint and ModelData sharing
	// TLSConfig, with the client certificate added for X.509 identities.
	Provisioner Provisioner

	// Endpoint is the provisioning service host used by the default
	// Provisioner. Defaults to provisioning.DefaultEndpoint.
	Endpoint string

	// ModelData is sent with the registration by the default Provisioner
	// and selects provisioning.ModelAPIVersion.
	ModelData json.RawMessage

	// Cache, when set, is consulted before provisioning.
	Cache AssignmentCache

	// ExitOnError terminates the process through Exit when the hub answers
	// "not authorised".
	ExitOnError bool

	// Exit defaults to os.Exit.
	Exit func(code int)

	// Observers receive lifecycle and traffic notifications.
	Observers []Observer

	// Logger defaults to slog.Default().
	Logger Logger

	// Now is the clock used for tokens and property rids.
	Now func() time.Time
}

// withDefaults validates o and fills defaults.
func (o Options) withDefaults() (Options, error) {
	if o.QoS > 1 {
		return o, fmt.Errorf("%w: got %d", ErrInvalidQoS, o.QoS)
	}
	if o.TokenLifetime <= 0 {
		o.TokenLifetime = credential.DefaultTokenLifetime
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = mqtt.DefaultKeepAlive
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.PumpInterval <= 0 {
		o.PumpInterval = DefaultPumpInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Exit == nil {
		o.Exit = os.Exit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// defaultProvisioner builds a provisioning.Client with the session's TLS
// settings. An X.509 identity presents its certificate to the service; a
// certificate that does not parse is left for Connect to report.
func defaultProvisioner(id credential.Identity, o Options) Provisioner {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if o.TLSConfig != nil {
		tlsConfig = o.TLSConfig.Clone()
	}
	if id.Credential.Kind == credential.KindX509 {
		if cert, err := id.Credential.TLSCertificate(); err == nil {
			tlsConfig.Certificates = append(tlsConfig.Certificates, cert)
		}
	}
	return provisioning.NewClient(provisioning.Options{
		Endpoint:      o.Endpoint,
		ModelData:     o.ModelData,
		TLSConfig:     tlsConfig,
		TokenLifetime: o.TokenLifetime,
		Logger:        o.Logger,
		Now:           o.Now,
	})
}
