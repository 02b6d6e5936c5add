package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/iotc-device/internal/assignment"
	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/infrastructure/config"
	"github.com/nerrad567/iotc-device/internal/infrastructure/database"
	"github.com/nerrad567/iotc-device/internal/infrastructure/influxdb"
	"github.com/nerrad567/iotc-device/internal/infrastructure/logging"
	"github.com/nerrad567/iotc-device/internal/infrastructure/metrics"
	"github.com/nerrad567/iotc-device/internal/provisioning"
	"github.com/nerrad567/iotc-device/internal/session"
	"github.com/nerrad567/iotc-device/migrations"
)

// app holds what every device command needs.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	identity credential.Identity
	tls      *tls.Config
}

// loadApp loads configuration and builds the identity and TLS settings.
func loadApp(configFlag string) (*app, error) {
	path := resolveConfigPath(configFlag)
	if path == "" {
		logging.Default().Info("no config file found, configuring from environment")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version).ForDevice(cfg.Device.ScopeID, cfg.Device.DeviceID)
	log.Debug("configuration loaded", "path", path)

	identity, err := loadIdentity(cfg.Device)
	if err != nil {
		return nil, err
	}
	if identity.Credential.Kind == credential.KindSymmetricKey {
		log.Debug("device identity loaded", "credential", identity.Credential.Kind.String(),
			"symmetric_key", logging.Redact(cfg.Device.SymmetricKey))
	} else {
		log.Debug("device identity loaded", "credential", identity.Credential.Kind.String(),
			"cert_file", cfg.Device.CertFile)
	}

	tlsConfig, err := buildTLSConfig(cfg.Session)
	if err != nil {
		return nil, err
	}
	if !cfg.Session.VerifyTLS {
		log.Warn("TLS certificate verification disabled")
	}

	return &app{cfg: cfg, log: log, identity: identity, tls: tlsConfig}, nil
}

// loadIdentity builds the device identity, reading PEM files for x509.
func loadIdentity(dc config.DeviceConfig) (credential.Identity, error) {
	kind, err := credential.ParseKind(dc.CredentialType)
	if err != nil {
		return credential.Identity{}, err
	}

	id := credential.Identity{ScopeID: dc.ScopeID, DeviceID: dc.DeviceID}
	switch kind {
	case credential.KindX509:
		certPEM, err := os.ReadFile(dc.CertFile)
		if err != nil {
			return credential.Identity{}, fmt.Errorf("reading certificate: %w", err)
		}
		keyPEM, err := os.ReadFile(dc.KeyFile)
		if err != nil {
			return credential.Identity{}, fmt.Errorf("reading private key: %w", err)
		}
		id.Credential = credential.X509(certPEM, keyPEM)
	default:
		id.Credential = credential.SymmetricKey(dc.SymmetricKey)
	}

	if err := id.Credential.Validate(); err != nil {
		return credential.Identity{}, err
	}
	return id, nil
}

// buildTLSConfig applies the CA bundle and verification settings.
func buildTLSConfig(sc config.SessionConfig) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if !sc.VerifyTLS {
		tc.InsecureSkipVerify = true //nolint:gosec // Opt-in for local test hubs
	}
	if sc.CAFile != "" {
		pemData, err := os.ReadFile(sc.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("CA file %s contains no certificates", sc.CAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// provisioner builds the DPS client; x509 devices present their certificate.
func (a *app) provisioner() (*provisioning.Client, error) {
	tc := a.tls.Clone()
	if a.identity.Credential.Kind == credential.KindX509 {
		cert, err := a.identity.Credential.TLSCertificate()
		if err != nil {
			return nil, err
		}
		tc.Certificates = append(tc.Certificates, cert)
	}

	p := a.cfg.Provisioning
	return provisioning.NewClient(provisioning.Options{
		Endpoint:      p.Endpoint,
		ModelData:     a.cfg.ModelData(),
		TokenLifetime: a.cfg.Session.TokenLifetime,
		PollInterval:  pollWait(p.PollInterval),
		InitialDelay:  pollWait(p.InitialDelay),
		MaxAttempts:   p.MaxAttempts,
		TLSConfig:     tc,
		Logger:        a.log.Component("provisioning"),
	}), nil
}

// pollWait converts a configured provisioning wait for provisioning.Options,
// where zero selects the default and a negative wait means none.
func pollWait(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

// openCache opens the assignment cache when enabled. A nil repository
// means the cache is off.
func (a *app) openCache(ctx context.Context) (*assignment.SQLiteRepository, func(), error) {
	if !a.cfg.AssignmentCache.Enabled {
		return nil, func() {}, nil
	}

	db, err := a.openCacheDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			a.log.Error("error closing assignment cache", "error", err)
		}
	}
	return assignment.NewSQLiteRepository(db.DB), closeFn, nil
}

// openCacheDB opens and migrates the cache database at the configured path.
func (a *app) openCacheDB(ctx context.Context) (*database.DB, error) {
	cc := a.cfg.AssignmentCache
	db, err := database.Open(ctx, database.Config{
		Path:        cc.Path,
		WALMode:     cc.WALMode,
		BusyTimeout: cc.BusyTimeout,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return nil, fmt.Errorf("opening assignment cache: %w", err)
	}

	mode, err := db.JournalMode(ctx)
	if err != nil {
		a.log.Warn("assignment cache journal mode unknown", "error", err)
	}
	a.log.Info("assignment cache ready", "path", db.Path(), "journal_mode", mode)
	return db, nil
}

// observers starts the configured diagnostics sinks.
func (a *app) observers(ctx context.Context) ([]session.Observer, func(), error) {
	var (
		out     []session.Observer
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if a.cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector, err := metrics.New(a.cfg.Metrics.Namespace, reg)
		if err != nil {
			return nil, nil, fmt.Errorf("registering metrics: %w", err)
		}
		srv, err := metrics.Listen(a.cfg.Metrics.Listen, a.cfg.Metrics.Path, reg)
		if err != nil {
			return nil, nil, err
		}

		serveCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Serve(serveCtx); err != nil {
				a.log.Error("metrics server stopped", "error", err)
			}
		}()
		closers = append(closers, func() {
			stop()
			<-done
		})
		out = append(out, collector)
		a.log.Info("metrics listening", "addr", srv.Addr(), "path", a.cfg.Metrics.Path)
	}

	if a.cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(a.cfg.InfluxDB)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		client.SetOnError(func(err error) {
			a.log.Error("InfluxDB write error", "error", err)
		})
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				a.log.Error("error closing InfluxDB", "error", err)
			}
		})
		out = append(out, client.Recorder(a.identity.ScopeID, a.identity.DeviceID))
		a.log.Info("InfluxDB connected", "url", a.cfg.InfluxDB.URL, "bucket", a.cfg.InfluxDB.Bucket)
	}

	return out, closeAll, nil
}
