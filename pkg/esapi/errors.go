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
	"errors"
	"fmt"

	"github.com/google/go-tpm/tpm2"
)

var (
	// ErrMissingAuthSession is returned when a command requires an
	// authorization session and the corresponding slot is empty
	ErrMissingAuthSession = errors.New("esapi: missing authorization session")

	// ErrWrongValueFromTpm is returned when the TPM answers with a value
	// or shape the caller did not ask for
	ErrWrongValueFromTpm = errors.New("esapi: wrong value returned from TPM")

	// ErrContextClosed is returned by every operation after Close
	ErrContextClosed = errors.New("esapi: context closed")

	// ErrInvalidHandle indicates a handle that is not tracked by the
	// context or has the wrong type for the operation
	ErrInvalidHandle = errors.New("esapi: invalid handle")

	// ErrInvalidSessionSlot indicates a session slot outside 1..3
	ErrInvalidSessionSlot = errors.New("esapi: invalid session slot")

	// ErrInvalidParam indicates an invalid argument
	ErrInvalidParam = errors.New("esapi: invalid parameter")

	// ErrHandlesLeaked is returned by Close when some tracked handles could
	// not be released
	ErrHandlesLeaked = errors.New("esapi: handles leaked during teardown")

	// ErrNoBlobStore is returned by the saved context helpers when the
	// context was created without a blob store
	ErrNoBlobStore = errors.New("esapi: no blob store configured")
)

// ResponseCodeError is a non-zero response code returned by the TPM. Err
// is the error reported by go-tpm, so errors.Is(err, tpm2.TPMRCxxx) keeps
// working on the wrapped value.
type ResponseCodeError struct {
	Command string
	Code    tpm2.TPMRC
	Err     error
}

func (e *ResponseCodeError) Error() string {
	return fmt.Sprintf("esapi: %s: response code 0x%08x: %v", e.Command, uint32(e.Code), e.Err)
}

func (e *ResponseCodeError) Unwrap() error {
	return e.Err
}

// ResponseCode returns the TPM response code carried by err, if any.
func ResponseCode(err error) (tpm2.TPMRC, bool) {
	var rcErr *ResponseCodeError
	if errors.As(err, &rcErr) {
		return rcErr.Code, true
	}
	return 0, false
}

// translate wraps an error returned by go-tpm. Response codes become a
// *ResponseCodeError, transport failures keep their cause.
func translate(command string, err error) error {
	if err == nil {
		return nil
	}
	var rc tpm2.TPMRC
	if errors.As(err, &rc) {
		return &ResponseCodeError{Command: command, Code: rc, Err: err}
	}
	return fmt.Errorf("esapi: %s: %w", command, err)
}
