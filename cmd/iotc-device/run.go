package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/infrastructure/mqtt"
	"github.com/nerrad567/iotc-device/internal/routing"
	"github.com/nerrad567/iotc-device/internal/session"
)

type runFlags struct {
	host              string
	telemetryInterval time.Duration
	events            []string
}

func newRunCmd(configPath *string) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and serve the device until interrupted",
		Long: `Connect to IoT Central and handle traffic until interrupted.

Commands are answered with 200 and settings updates are acknowledged.
With --telemetry-interval the device also sends {"uptime": seconds}.`,
		Example: `  # Provision and connect
  iotc-device run --config configs/config.yaml

  # Skip provisioning and send telemetry every 10 seconds
  iotc-device run --host myhub.azure-devices.net --telemetry-interval 10s

  # Print only commands and settings updates
  iotc-device run --events Command,SettingsUpdated`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDevice(cmd, *configPath, flags)
		},
	}
	cmd.Flags().StringVar(&flags.host, "host", "", "IoT hub host (skips provisioning)")
	cmd.Flags().DurationVar(&flags.telemetryInterval, "telemetry-interval", 0, "Send uptime telemetry at this interval (0 disables)")
	cmd.Flags().StringSliceVar(&flags.events, "events", nil, "Only print these events, e.g. Command,SettingsUpdated (default all)")
	return cmd
}

func runDevice(cmd *cobra.Command, configPath string, flags runFlags) error {
	ctx := cmd.Context()

	p := newPrinter(cmd.OutOrStdout())
	if err := p.only(flags.events); err != nil {
		return err
	}

	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	a.log.Info("starting iotc-device", "version", version, "commit", commit)

	cache, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	obs, closeObservers, err := a.observers(ctx)
	if err != nil {
		return err
	}
	defer closeObservers()

	prov, err := a.provisioner()
	if err != nil {
		return err
	}

	opts := session.Options{
		QoS:            byte(a.cfg.Session.QoS), // #nosec G115 -- validated to 0 or 1
		TokenLifetime:  a.cfg.Session.TokenLifetime,
		CleanSession:   a.cfg.Session.CleanSession,
		KeepAlive:      a.cfg.Session.KeepAlive,
		ConnectTimeout: a.cfg.Session.ConnectTimeout,
		PumpInterval:   a.cfg.Session.PumpInterval,
		TLSConfig:      a.tls,
		Provisioner:    prov,
		ExitOnError:    a.cfg.Session.ExitOnError,
		Observers:      obs,
		Logger:         a.log.Component("session"),
	}
	if cache != nil {
		opts.Cache = cache
	}

	transport := mqtt.NewTransport(a.log.Component("mqtt"))
	sess, err := session.New(a.identity, transport, opts)
	if err != nil {
		return err
	}
	if err := registerHandlers(sess, p); err != nil {
		return err
	}

	host := flags.host
	if host == "" {
		host = a.cfg.Session.Host
	}
	if err := sess.Connect(ctx, host); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	a.log.Info("connected",
		"host", sess.Host(),
		"session_id", sess.SessionID(),
		"token_expiry", sess.TokenExpiry(),
		"subscriptions", len(sess.Subscriptions()),
	)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if flags.telemetryInterval > 0 {
		go sendUptime(runCtx, sess, flags.telemetryInterval, a)
	}

	err = sess.Run(runCtx)
	if n := sess.PendingCount(); n > 0 {
		a.log.Warn("publishes not acknowledged before shutdown", "pending", n)
	}
	if sess.IsConnected() {
		if derr := sess.Disconnect(); derr != nil {
			a.log.Warn("disconnect failed", "error", derr)
		}
	}
	if errors.Is(err, context.Canceled) {
		a.log.Info("shutdown signal received")
		return nil
	}
	return err
}

// registerHandlers prints every event and answers commands and settings.
func registerHandlers(sess *session.Session, p *printer) error {
	handlers := map[dispatch.EventName]dispatch.Callback{
		dispatch.Command: func(info *dispatch.CallbackInfo) {
			p.handle(info.Event)
			body, err := json.Marshal(map[string]string{"status": "received", "method": info.Event.Tag})
			if err != nil {
				info.SetResponse(500, `{"status":"error"}`)
				return
			}
			info.SetResponse(200, string(body))
		},
		dispatch.SettingsUpdated: func(info *dispatch.CallbackInfo) {
			p.handle(info.Event)
			info.SetResponse(200, "completed")
		},
	}

	for _, name := range dispatch.Events() {
		cb, ok := handlers[name]
		if !ok {
			cb = func(info *dispatch.CallbackInfo) { p.handle(info.Event) }
		}
		if err := sess.On(name, cb); err != nil {
			return err
		}
	}
	return nil
}

// telemetrySender is the part of the session used by sendUptime.
type telemetrySender interface {
	SendTelemetry(payload []byte, properties map[string]string) (uint32, error)
}

// sendUptime publishes uptime telemetry until ctx ends.
func sendUptime(ctx context.Context, s telemetrySender, interval time.Duration, a *app) {
	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, props, err := uptimeMessage(time.Since(started))
			if err != nil {
				a.log.Error("building telemetry failed", "error", err)
				continue
			}
			if _, err := s.SendTelemetry(payload, props); err != nil {
				a.log.Warn("telemetry not sent", "error", err)
			}
		}
	}
}

// uptimeMessage builds {"uptime": seconds} tagged with a fresh message id.
func uptimeMessage(uptime time.Duration) ([]byte, map[string]string, error) {
	payload, err := json.Marshal(map[string]int64{"uptime": int64(uptime.Seconds())})
	if err != nil {
		return nil, nil, err
	}
	return payload, map[string]string{routing.MessageIDProperty: uuid.NewString()}, nil
}
