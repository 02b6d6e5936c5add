package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/iotc-device/internal/credential"
	"github.com/nerrad567/iotc-device/internal/infrastructure/config"
	"github.com/nerrad567/iotc-device/internal/infrastructure/logging"
)

func newTokenCmd() *cobra.Command {
	var (
		resource string
		key      string
		lifetime time.Duration
		keyName  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a Shared Access Signature token",
		Example: `  # Hub token for a device
  iotc-device token --uri myhub.azure-devices.net/devices/dev1 --key $IOTC_SYMMETRIC_KEY

  # Provisioning token
  iotc-device token --uri 0ne000ABCD/registrations/dev1 --key $IOTC_SYMMETRIC_KEY --key-name registration`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if resource == "" || key == "" {
				return errors.New("--uri and --key are required")
			}
			tok, err := credential.DeriveToken(resource, key, lifetime, time.Now())
			if err != nil {
				return err
			}
			tok.KeyName = keyName

			log := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, version, cmd.ErrOrStderr())
			log.Info("token issued",
				"resource", resource,
				"expires", tok.ExpiresAt().UTC().Format(time.RFC3339),
				"token", logging.Redact(tok.Signature),
			)

			fmt.Fprintln(cmd.OutOrStdout(), tok.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&resource, "uri", "", "Resource URI to sign")
	cmd.Flags().StringVar(&key, "key", "", "Base64 symmetric key")
	cmd.Flags().DurationVar(&lifetime, "lifetime", time.Hour, "Token validity")
	cmd.Flags().StringVar(&keyName, "key-name", "", "Shared access policy name (skn)")
	return cmd
}
