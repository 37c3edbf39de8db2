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

// Package tcti opens the transport channel a Context sends its commands
// over: a character device, a resource manager socket or the software
// simulator.
package tcti

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-tpm/tpm2/transport"
	"github.com/google/go-tpm/tpm2/transport/linuxudstpm"

	"github.com/jeremyhahn/go-esapi/pkg/logging"
)

// DefaultDevice is the kernel resource manager device.
const DefaultDevice = "/dev/tpmrm0"

var (
	ErrOpeningDevice = errors.New("tcti: error opening TPM device")
	ErrOpeningSocket = errors.New("tcti: error opening TPM socket")
)

// simulatorOpener is set by the build-tag specific simulator files.
var simulatorOpener func() (transport.TPMCloser, error)

// Open returns an initialized channel. When useSimulator is set the
// in-process simulator is used and device is ignored. Paths ending in
// .sock are dialed as a Unix domain socket, anything else is opened as a
// character device.
func Open(logger *logging.Logger, device string, useSimulator bool) (transport.TPMCloser, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	if useSimulator {
		logger.Info("tcti: opening TPM simulator")
		t, err := simulatorOpener()
		if err != nil {
			logger.Error(err)
			return nil, err
		}
		return t, nil
	}

	if device == "" {
		device = DefaultDevice
	}
	logger.Info("tcti: opening TPM", "device", device)

	if strings.HasSuffix(device, ".sock") {
		t, err := linuxudstpm.Open(device)
		if err != nil {
			logger.Error(err)
			return nil, fmt.Errorf("%w %s: %w", ErrOpeningSocket, device, err)
		}
		return t, nil
	}

	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		logger.Error(err)
		return nil, fmt.Errorf("%w %s: %w", ErrOpeningDevice, device, err)
	}
	return transport.FromReadWriteCloser(f), nil
}
