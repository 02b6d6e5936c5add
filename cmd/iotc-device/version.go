package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/iotc-device/internal/provisioning"
	"github.com/nerrad567/iotc-device/internal/session"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "iotc-device %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintf(out, "provisioning api %s / %s, hub api %s\n",
				provisioning.APIVersion, provisioning.ModelAPIVersion, session.MQTTAPIVersion)
		},
	}
}
