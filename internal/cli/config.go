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
	"context"
	"fmt"

	"github.com/jeremyhahn/go-esapi/internal/config"
	"github.com/jeremyhahn/go-esapi/pkg/correlation"
	"github.com/jeremyhahn/go-esapi/pkg/esapi"
	"github.com/jeremyhahn/go-esapi/pkg/logging"
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the YAML configuration file
	ConfigFile string

	// Device overrides the TPM device or socket path
	Device string

	// Simulator selects the in-process TPM simulator
	Simulator bool

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool

	// ContextID pins the instance ID of the opened context. It must be a
	// UUID; a fresh one is generated when empty.
	ContextID string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// Load merges the configuration file, ESAPI_* variables and the command
// line flags. Flags win.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.Device != "" {
		cfg.TPM.Device = c.Device
	}
	if c.Simulator {
		cfg.TPM.UseSimulator = true
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// OpenContext opens an esapi.Context for the merged configuration. The
// caller closes it.
func (c *Config) OpenContext(parent context.Context) (*esapi.Context, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	logger := logging.NewLoggerWithOptions(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	ctx, err := esapi.Open(cfg.ESAPI(),
		esapi.WithLogger(logger),
		esapi.WithInstanceID(correlation.GetOrGenerate(parent)))
	if err != nil {
		return nil, fmt.Errorf("failed to open TPM: %w", err)
	}
	return ctx, nil
}
