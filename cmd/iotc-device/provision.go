package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newProvisionCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Register with the provisioning service and print the assigned hub",
		Long: `Run device provisioning only.

The assigned hub is printed and, when the assignment cache is enabled,
stored so the next run can connect without provisioning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}

			prov, err := a.provisioner()
			if err != nil {
				return err
			}

			started := time.Now()
			result, err := prov.Provision(ctx, a.identity)
			if err != nil {
				return fmt.Errorf("provisioning: %w", err)
			}

			out := cmd.OutOrStdout()
			label := color.New(color.Bold)
			label.Fprint(out, "hub:        ") //nolint:errcheck // Console output
			fmt.Fprintln(out, result.Host)
			label.Fprint(out, "device:     ") //nolint:errcheck // Console output
			fmt.Fprintln(out, result.DeviceID)
			label.Fprint(out, "operation:  ") //nolint:errcheck // Console output
			fmt.Fprintln(out, result.OperationID)
			label.Fprint(out, "polls:      ") //nolint:errcheck // Console output
			fmt.Fprintf(out, "%d (%s, api %s)\n", result.Polls, time.Since(started).Round(time.Millisecond), prov.APIVersion())

			cache, closeCache, err := a.openCache(ctx)
			if err != nil {
				return err
			}
			defer closeCache()
			if cache != nil {
				if err := cache.Store(ctx, a.identity.ScopeID, a.identity.DeviceID, result.Host); err != nil {
					return err
				}
				a.log.Info("assignment cached", "host", result.Host)
			}
			return nil
		},
	}
}
