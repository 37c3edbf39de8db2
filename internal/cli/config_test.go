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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-esapi/pkg/correlation"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/tcti"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ESAPI_DEVICE", "ESAPI_USE_SIMULATOR", "ESAPI_LOG_LEVEL",
		"ESAPI_LOG_FORMAT", "ESAPI_BLOB_DIR", "ESAPI_METRICS",
	} {
		t.Setenv(name, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.OutputFormat != "text" {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.Verbose {
		t.Error("Verbose should be false by default")
	}
	if cfg.Simulator {
		t.Error("Simulator should be false by default")
	}
	if cfg.Device != "" {
		t.Errorf("Device should be empty by default, got %v", cfg.Device)
	}
}

func TestConfig_Load_FlagsOverrideFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "esapi.yaml")
	data := []byte("tpm:\n  device: /dev/tpm0\nlogging:\n  level: warn\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig()
	cfg.ConfigFile = path
	loaded, err := cfg.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.TPM.Device != "/dev/tpm0" {
		t.Errorf("Device = %v, want /dev/tpm0", loaded.TPM.Device)
	}
	if loaded.Logging.Level != "warn" {
		t.Errorf("Level = %v, want warn", loaded.Logging.Level)
	}

	cfg.Device = "/tmp/tpm.sock"
	cfg.Verbose = true
	loaded, err = cfg.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.TPM.Device != "/tmp/tpm.sock" {
		t.Errorf("Device = %v, want /tmp/tpm.sock", loaded.TPM.Device)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Level = %v, want debug", loaded.Logging.Level)
	}
	if !loaded.ESAPI().Debug {
		t.Error("ESAPI().Debug should follow the debug level")
	}
}

func TestConfig_Load_Simulator(t *testing.T) {
	clearEnv(t)

	cfg := NewConfig()
	cfg.Simulator = true
	loaded, err := cfg.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !loaded.TPM.UseSimulator {
		t.Error("UseSimulator should be set by the --simulator flag")
	}
}

func TestConfig_Load_MissingFile(t *testing.T) {
	clearEnv(t)

	cfg := NewConfig()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := cfg.Load(); err == nil {
		t.Fatal("Load() should fail for a missing config file")
	}
}

func TestConfig_OpenContext_MissingDevice(t *testing.T) {
	clearEnv(t)

	cfg := NewConfig()
	cfg.Device = filepath.Join(t.TempDir(), "tpm-does-not-exist")
	ctx, err := cfg.OpenContext(context.Background())
	if err == nil {
		ctx.Close()
		t.Fatal("OpenContext() should fail for a missing device")
	}
	if !errors.Is(err, tcti.ErrOpeningDevice) {
		t.Errorf("OpenContext() error = %v, want ErrOpeningDevice", err)
	}
}

func TestPreRun_AttachesContextID(t *testing.T) {
	id := correlation.NewID()
	viper.Set("context-id", id)
	t.Cleanup(func() { viper.Set("context-id", "") })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	if err := preRun(cmd, nil); err != nil {
		t.Fatalf("preRun() error = %v", err)
	}
	if got := correlation.FromContext(cmd.Context()); got != id {
		t.Errorf("context id = %q, want %q", got, id)
	}
	if got := correlation.GetOrGenerate(cmd.Context()); got != id {
		t.Errorf("GetOrGenerate() = %q, want the attached id", got)
	}
}

func TestPreRun_WithoutContextID(t *testing.T) {
	viper.Set("context-id", "")

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	if err := preRun(cmd, nil); err != nil {
		t.Fatalf("preRun() error = %v", err)
	}
	if got := correlation.FromContext(cmd.Context()); got != "" {
		t.Errorf("context id = %q, want none", got)
	}
}

func TestInitConfig_InvalidContextID(t *testing.T) {
	viper.Set("context-id", "not-a-uuid")
	t.Cleanup(func() { viper.Set("context-id", "") })

	if err := initConfig(); err == nil {
		t.Fatal("initConfig() should reject a context id that is not a UUID")
	}
}
