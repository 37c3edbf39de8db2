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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "esapi.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

// TestLoad_Success tests successful loading of a valid config file
func TestLoad_Success(t *testing.T) {
	path := writeConfig(t, `
tpm:
  device: "/dev/tpm0"
  session_hash: "sha384"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: false

storage:
  blob_dir: "/var/lib/esapi"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TPM.Device != "/dev/tpm0" {
		t.Errorf("TPM.Device = %q, want /dev/tpm0", cfg.TPM.Device)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}

	esapiCfg := cfg.ESAPI()
	if !esapiCfg.Debug {
		t.Error("ESAPI().Debug = false, want true")
	}
	if esapiCfg.BlobDir != "/var/lib/esapi" {
		t.Errorf("ESAPI().BlobDir = %q", esapiCfg.BlobDir)
	}
	if esapiCfg.SessionHash != "sha384" {
		t.Errorf("ESAPI().SessionHash = %q, want sha384", esapiCfg.SessionHash)
	}
}

// TestLoad_Defaults tests that partial files keep the defaults
func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "tpm:\n  use_simulator: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if !cfg.TPM.UseSimulator {
		t.Error("TPM.UseSimulator = false, want true")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

// TestLoad_EmptyPath tests loading without a file
func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TPM.Device != "/dev/tpmrm0" {
		t.Errorf("TPM.Device = %q, want /dev/tpmrm0", cfg.TPM.Device)
	}
}

// TestLoad_Errors tests missing files, bad YAML and invalid values
func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "tpm: [", "failed to parse config file"},
		{"log level", "logging:\n  level: verbose\n", "invalid log level"},
		{"log format", "logging:\n  format: xml\n", "invalid log format"},
		{"session hash", "tpm:\n  session_hash: md5\n", "unsupported session hash"},
		{"no device", "tpm:\n  device: \"\"\n", "tpm device is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

// TestApplyEnvOverrides tests ESAPI_* environment variables
func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("ESAPI_DEVICE", "/run/tpm.sock")
	t.Setenv("ESAPI_USE_SIMULATOR", "true")
	t.Setenv("ESAPI_LOG_LEVEL", "warn")
	t.Setenv("ESAPI_LOG_FORMAT", "json")
	t.Setenv("ESAPI_BLOB_DIR", "/tmp/contexts")
	t.Setenv("ESAPI_METRICS", "false")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.TPM.Device != "/run/tpm.sock" {
		t.Errorf("TPM.Device = %q", cfg.TPM.Device)
	}
	if !cfg.TPM.UseSimulator {
		t.Error("TPM.UseSimulator = false, want true")
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Storage.BlobDir != "/tmp/contexts" {
		t.Errorf("Storage.BlobDir = %q", cfg.Storage.BlobDir)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
}

// TestApplyEnvOverrides_InvalidBool tests that bad booleans are ignored
func TestApplyEnvOverrides_InvalidBool(t *testing.T) {
	t.Setenv("ESAPI_USE_SIMULATOR", "maybe")
	t.Setenv("ESAPI_METRICS", "sometimes")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.TPM.UseSimulator {
		t.Error("TPM.UseSimulator changed on invalid value")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled changed on invalid value")
	}
}
