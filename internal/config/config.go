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

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-esapi/pkg/esapi"
)

// Config represents the complete esapi configuration
type Config struct {
	TPM     TPMConfig     `yaml:"tpm"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Storage StorageConfig `yaml:"storage"`
}

// TPMConfig selects the TPM channel and session defaults
type TPMConfig struct {
	Device       string `yaml:"device"`
	UseSimulator bool   `yaml:"use_simulator"`
	SessionHash  string `yaml:"session_hash"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig controls where saved contexts are kept
type StorageConfig struct {
	BlobDir string `yaml:"blob_dir"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		TPM: TPMConfig{
			Device:      "/dev/tpmrm0",
			SessionHash: "sha256",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if device := os.Getenv("ESAPI_DEVICE"); device != "" {
		cfg.TPM.Device = device
	}
	if sim := os.Getenv("ESAPI_USE_SIMULATOR"); sim != "" {
		v, err := strconv.ParseBool(sim)
		if err != nil {
			log.Printf("Warning: invalid ESAPI_USE_SIMULATOR value %q, using %t: %v",
				sim, cfg.TPM.UseSimulator, err)
		} else {
			cfg.TPM.UseSimulator = v
		}
	}

	if level := os.Getenv("ESAPI_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("ESAPI_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if dir := os.Getenv("ESAPI_BLOB_DIR"); dir != "" {
		cfg.Storage.BlobDir = dir
	}

	if enabled := os.Getenv("ESAPI_METRICS"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid ESAPI_METRICS value %q, using %t: %v",
				enabled, cfg.Metrics.Enabled, err)
		} else {
			cfg.Metrics.Enabled = v
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if !c.TPM.UseSimulator && c.TPM.Device == "" {
		return fmt.Errorf("tpm device is required unless use_simulator is set")
	}

	return c.ESAPI().Validate()
}

// ESAPI returns the settings consumed by esapi.Open
func (c *Config) ESAPI() *esapi.Config {
	return &esapi.Config{
		Device:       c.TPM.Device,
		UseSimulator: c.TPM.UseSimulator,
		SessionHash:  c.TPM.SessionHash,
		BlobDir:      c.Storage.BlobDir,
		Debug:        strings.EqualFold(c.Logging.Level, "debug"),
	}
}
