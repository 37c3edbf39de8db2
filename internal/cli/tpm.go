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
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi"
)

// Handle range starts for TPM2_GetCapability(TPM_CAP_HANDLES)
const (
	nvIndexFirst       tpm2.TPMHandle = 0x01000000
	loadedSessionFirst tpm2.TPMHandle = 0x02000000
	savedSessionFirst  tpm2.TPMHandle = 0x03000000
	transientFirst     tpm2.TPMHandle = 0x80000000
	persistentFirst    tpm2.TPMHandle = 0x81000000

	maxHandles = 64
)

var handleRanges = map[string]tpm2.TPMHandle{
	"transient":      transientFirst,
	"persistent":     persistentFirst,
	"loaded-session": loadedSessionFirst,
	"saved-session":  savedSessionFirst,
	"nv":             nvIndexFirst,
}

// defaultProperties is read by the properties command without arguments
var defaultProperties = []string{
	"manufacturer",
	"firmware-version-1",
	"input-buffer",
	"nv-buffer-max",
	"active-sessions-max",
}

var propertyTags = map[string]tpm2.TPMPT{
	"manufacturer":        tpm2.TPMPTManufacturer,
	"firmware-version-1":  tpm2.TPMPTFirmwareVersion1,
	"input-buffer":        tpm2.TPMPTInputBuffer,
	"nv-buffer-max":       tpm2.TPMPTNVBufferMax,
	"active-sessions-max": tpm2.TPMPTActiveSessionsMax,
	"max-auth-fail":       tpm2.TPMPTMaxAuthFail,
	"lockout-counter":     tpm2.TPMPTLockoutCounter,
	"lockout-interval":    tpm2.TPMPTLockoutInterval,
	"lockout-recovery":    tpm2.TPMPTLockoutRecovery,
	"loaded-curves":       tpm2.TPMPTLoadedCurves,
}

// parseHandle accepts decimal, 0x-prefixed hex or octal handle values
func parseHandle(s string) (tpm2.TPMHandle, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	return tpm2.TPMHandle(v), nil
}

// parseProperty resolves a property name or a numeric TPM_PT value
func parseProperty(s string) (string, tpm2.TPMPT, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if tag, ok := propertyTags[name]; ok {
		return name, tag, nil
	}
	v, err := strconv.ParseUint(name, 0, 32)
	if err != nil {
		return "", 0, fmt.Errorf("unknown property %q", s)
	}
	return name, tpm2.TPMPT(v), nil
}

// parseHandleRange maps a handle type name to the first handle of its range
func parseHandleRange(s string) (tpm2.TPMHandle, error) {
	first, ok := handleRanges[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown handle type %q (transient, persistent, loaded-session, saved-session, nv)", s)
	}
	return first, nil
}

// withContext opens a context, runs fn and tears the context down. A
// teardown failure is reported together with fn's error.
func withContext(parent context.Context, fn func(*esapi.Context) error) error {
	ctx, err := getConfig().OpenContext(parent)
	if err != nil {
		return err
	}
	printVerbose("opened context %s", ctx.ID())
	err = fn(ctx)
	if cerr := ctx.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
