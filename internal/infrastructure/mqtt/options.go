package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// DefaultPort is the MQTT over TLS port used by the hub.
	DefaultPort = 8883

	// DefaultKeepAlive is the keepalive interval for the connection.
	DefaultKeepAlive = 120 * time.Second

	// defaultConnectTimeout is the maximum time to wait for the CONNACK.
	defaultConnectTimeout = 30 * time.Second

	// defaultOperationTimeout bounds subscribe calls.
	defaultOperationTimeout = 10 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// protocolVersion pins MQTT 3.1.1.
	protocolVersion = 4

	// maxQoS is the maximum QoS level the hub supports.
	maxQoS = 1

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// ConnectOptions describes one connection attempt.
type ConnectOptions struct {
	// Host is the hub host name.
	Host string

	// Port defaults to DefaultPort.
	Port int

	// ClientID is the device id.
	ClientID string

	// Username and Password carry the hub user name and SAS token.
	// Password is empty for X.509 identities.
	Username string
	Password string

	// TLSConfig carries root CAs and the client certificate. A nil config
	// connects over plain TCP, which the hub never accepts; it exists for
	// local broker testing.
	TLSConfig *tls.Config

	// KeepAlive defaults to DefaultKeepAlive.
	KeepAlive time.Duration

	// ConnectTimeout defaults to 30s.
	ConnectTimeout time.Duration

	// CleanSession asks the broker to discard previous session state.
	CleanSession bool
}

// Validate checks that the required fields are set.
func (o ConnectOptions) Validate() error {
	if o.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidOptions)
	}
	if o.ClientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidOptions)
	}
	if o.Port < 0 || o.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidOptions, o.Port)
	}
	return nil
}

// BrokerURL returns ssl://host:port (or tcp:// without TLS).
func (o ConnectOptions) BrokerURL() string {
	scheme := "ssl"
	if o.TLSConfig == nil {
		scheme = "tcp"
	}
	port := o.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, port)
}

// buildClientOptions creates paho options for one connection attempt.
//
// This configures:
//   - Broker URL (ssl:// on 8883 for the hub)
//   - Client ID, user name and SAS token password
//   - MQTT 3.1.1 with auto-reconnect and connect-retry disabled
//   - TLS configuration (client certificate for X.509 identities)
//   - Keepalive and clean session
func buildClientOptions(o ConnectOptions) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(o.BrokerURL())
	opts.SetClientID(o.ClientID)
	opts.SetProtocolVersion(protocolVersion)

	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}

	opts.SetCleanSession(o.CleanSession)

	// The session owns reconnect policy.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(timeout)

	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	// Delivery order is preserved on the event queue.
	opts.SetOrderMatters(true)

	if o.TLSConfig != nil {
		tlsConfig := o.TLSConfig.Clone()
		if tlsConfig.MinVersion < tlsMinVersion {
			tlsConfig.MinVersion = tlsMinVersion
		}
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = o.Host
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}
