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

package esapi

import (
	"fmt"
	"strings"

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/tcti"
)

// Config holds the settings used by Open
type Config struct {
	// Device is the path to the TPM device or resource manager socket
	// (default: "/dev/tpmrm0")
	Device string `yaml:"device" json:"device"`

	// UseSimulator opens the in-process simulator instead of Device
	UseSimulator bool `yaml:"use_simulator" json:"use_simulator"`

	// SessionHash is the digest used by sessions started without an
	// explicit hash (default: "sha256")
	SessionHash string `yaml:"session_hash" json:"session_hash"`

	// BlobDir is the directory holding saved contexts. Empty disables the
	// blob store.
	BlobDir string `yaml:"blob_dir" json:"blob_dir"`

	// Debug enables debug logging
	Debug bool `yaml:"debug" json:"debug"`
}

var sessionHashes = map[string]tpm2.TPMIAlgHash{
	"sha1":   tpm2.TPMAlgSHA1,
	"sha256": tpm2.TPMAlgSHA256,
	"sha384": tpm2.TPMAlgSHA384,
	"sha512": tpm2.TPMAlgSHA512,
}

// Validate fills in defaults and checks the configuration
func (c *Config) Validate() error {
	if c.Device == "" && !c.UseSimulator {
		c.Device = tcti.DefaultDevice
	}

	if c.SessionHash == "" {
		c.SessionHash = "sha256"
	}
	c.SessionHash = strings.ToLower(strings.ReplaceAll(c.SessionHash, "-", ""))
	if _, ok := sessionHashes[c.SessionHash]; !ok {
		return fmt.Errorf("%w: unsupported session hash %q", ErrInvalidParam, c.SessionHash)
	}

	return nil
}

// HashAlg returns the session digest algorithm. Validate must have been
// called.
func (c *Config) HashAlg() tpm2.TPMIAlgHash {
	if alg, ok := sessionHashes[c.SessionHash]; ok {
		return alg
	}
	return tpm2.TPMAlgSHA256
}
