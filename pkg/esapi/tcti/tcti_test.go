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

package tcti

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-esapi/pkg/logging"
)

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(logging.NewLogger(false), filepath.Join(t.TempDir(), "tpm0"), false)
	assert.ErrorIs(t, err, ErrOpeningDevice)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenMissingSocket(t *testing.T) {
	_, err := Open(logging.NewLogger(false), filepath.Join(t.TempDir(), "tpm.sock"), false)
	assert.ErrorIs(t, err, ErrOpeningSocket)
}

func TestOpenCharacterDevicePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpm0")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	tpm, err := Open(nil, path, false)
	require.NoError(t, err)
	assert.NoError(t, tpm.Close())
}
