// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-esapi.
//
// go-esapi is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-esapi/pkg/correlation"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "esapi",
	Short: "go-esapi CLI - TPM 2.0 resource inspection tool",
	Long: `go-esapi CLI talks to a TPM 2.0 through the esapi safety layer.
Every handle it creates is flushed and every sensitive buffer is zeroized
before the command exits.

Channels:
  - /dev/tpmrm0 (default) or any TPM character device
  - a Unix socket path ending in .sock
  - the in-process simulator (--simulator, tpm_simulator builds only)`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRun,
}

// Execute runs the root command and exits with code 1 on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		handleError(err)
	}
}

func init() {
	globalConfig = NewConfig()

	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&globalConfig.Device, "device", "",
		"TPM device or resource manager socket (default /dev/tpmrm0)")
	rootCmd.PersistentFlags().BoolVar(&globalConfig.Simulator, "simulator", false,
		"use the TPM simulator")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().StringVar(&globalConfig.ContextID, "context-id", "",
		"UUID recorded as the context instance ID (default: generated)")

	for _, name := range []string{"config", "device", "simulator", "output", "verbose", "context-id"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	viper.SetEnvPrefix("ESAPI")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(propertiesCmd)
	rootCmd.AddCommand(randomCmd)
	rootCmd.AddCommand(handlesCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(contextCmd)
}

// initConfig copies the flag and ESAPI_* values resolved by viper into the
// global configuration.
func initConfig() error {
	globalConfig.ConfigFile = viper.GetString("config")
	globalConfig.Device = viper.GetString("device")
	globalConfig.Simulator = viper.GetBool("simulator")
	globalConfig.OutputFormat = viper.GetString("output")
	globalConfig.Verbose = viper.GetBool("verbose")
	globalConfig.ContextID = viper.GetString("context-id")

	switch OutputFormat(globalConfig.OutputFormat) {
	case OutputFormatText, OutputFormatJSON:
	default:
		return fmt.Errorf("unknown output format: %s", globalConfig.OutputFormat)
	}
	if globalConfig.ContextID != "" && !correlation.Valid(globalConfig.ContextID) {
		return fmt.Errorf("invalid context id: %s", globalConfig.ContextID)
	}
	return nil
}

// preRun resolves the configuration and carries a requested context ID
// on the command's context.Context down to OpenContext.
func preRun(cmd *cobra.Command, args []string) error {
	if err := initConfig(); err != nil {
		return err
	}
	if globalConfig.ContextID != "" {
		cmd.SetContext(correlation.WithID(cmd.Context(), globalConfig.ContextID))
	}
	return nil
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
