// Iotc-device connects a device to Azure IoT Central.
//
// It provisions the device through the Device Provisioning Service, opens
// an MQTT session with the assigned hub, answers direct methods and desired
// property updates, and can send periodic telemetry.
//
// Usage:
//
//	iotc-device [command] [flags]
//
// See 'iotc-device --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path, used when it exists.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "iotc-device",
		Short: "Azure IoT Central device client",
		Long: `A device client for Azure IoT Central.

Provisions the device through the Device Provisioning Service, connects to
the assigned IoT hub over MQTT, answers commands and settings updates, and
optionally sends periodic telemetry.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default $IOTC_CONFIG or "+defaultConfigPath+")")

	root.AddCommand(
		newRunCmd(&configPath),
		newProvisionCmd(&configPath),
		newCacheCmd(&configPath),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath picks the flag, then $IOTC_CONFIG, then the default
// path if present. An empty result means configure from the environment.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("IOTC_CONFIG"); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
