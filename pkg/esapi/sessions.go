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

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// NoSessionHandle is passed in place of an empty session slot
const NoSessionHandle tpm2.TPMHandle = 0x00000FFF

const nonceSize = 16

// SessionKind identifies how an AuthSession authorizes commands
type SessionKind uint8

const (
	SessionPassword SessionKind = iota + 1
	SessionHMAC
	SessionPolicy
)

func (k SessionKind) String() string {
	switch k {
	case SessionPassword:
		return "password"
	case SessionHMAC:
		return "hmac"
	case SessionPolicy:
		return "policy"
	}
	return fmt.Sprintf("session(%d)", uint8(k))
}

// EncryptionDirection selects parameter encryption for a session
type EncryptionDirection uint8

const (
	EncryptNone EncryptionDirection = iota
	// EncryptIn encrypts the first command parameter (a decrypt session)
	EncryptIn
	// EncryptOut encrypts the first response parameter (an encrypt session)
	EncryptOut
	EncryptInOut
)

// SessionOptions configures StartAuthSession
type SessionOptions struct {
	// Hash defaults to the context session hash
	Hash tpm2.TPMIAlgHash
	// Auth is the authorization value of the entity the session is used
	// with
	Auth []byte
	// Encryption enables AES-CFB parameter encryption
	Encryption EncryptionDirection
	// KeyBits is the AES key size, 128 when zero
	KeyBits tpm2.TPMKeyBits
}

// AuthSession is one authorization session. Password sessions live only on
// the host; HMAC and policy sessions are TPM objects tracked with the Flush
// disposition.
type AuthSession struct {
	kind    SessionKind
	handle  tpm2.TPMHandle
	session tpm2.Session
}

// Kind returns the session kind
func (s *AuthSession) Kind() SessionKind { return s.kind }

// Handle returns the session handle, TPM_RS_PW for password sessions
func (s *AuthSession) Handle() tpm2.TPMHandle { return s.handle }

// Session returns the go-tpm session used to authorize commands
func (s *AuthSession) Session() tpm2.Session { return s.session }

// Sessions is the session slot triple. Slot order maps to the protocol
// authorization positions; nil is an empty slot.
type Sessions [3]*AuthSession

// PasswordSession returns a password authorization. It holds no TPM state
// and is never tracked.
func PasswordSession(auth []byte) *AuthSession {
	return &AuthSession{
		kind:    SessionPassword,
		handle:  tpm2.TPMRSPW,
		session: tpm2.PasswordAuth(auth),
	}
}

// StartAuthSession starts an unbound, unsalted HMAC or policy session and
// tracks its handle for flushing.
func (c *Context) StartAuthSession(kind SessionKind, opts SessionOptions) (*AuthSession, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if kind != SessionHMAC && kind != SessionPolicy {
		return nil, fmt.Errorf("%w: cannot start a %s session", ErrInvalidParam, kind)
	}
	if opts.Hash == 0 {
		opts.Hash = c.sessionHash
	}
	if opts.KeyBits == 0 {
		opts.KeyBits = 128
	}

	authOpts := []tpm2.AuthOption{tpm2.Auth(opts.Auth)}
	switch opts.Encryption {
	case EncryptNone:
	case EncryptIn:
		authOpts = append(authOpts, tpm2.AESEncryption(opts.KeyBits, tpm2.EncryptIn))
	case EncryptOut:
		authOpts = append(authOpts, tpm2.AESEncryption(opts.KeyBits, tpm2.EncryptOut))
	case EncryptInOut:
		authOpts = append(authOpts, tpm2.AESEncryption(opts.KeyBits, tpm2.EncryptInOut))
	default:
		return nil, fmt.Errorf("%w: encryption direction %d", ErrInvalidParam, opts.Encryption)
	}

	var sess tpm2.Session
	err := c.run("StartAuthSession", func() (err error) {
		if kind == SessionPolicy {
			sess, _, err = tpm2.PolicySession(c.tpm, opts.Hash, nonceSize, authOpts...)
		} else {
			sess, _, err = tpm2.HMACSession(c.tpm, opts.Hash, nonceSize, authOpts...)
		}
		return err
	})
	if err == nil && !validSessionHandle(sess.Handle()) {
		err = fmt.Errorf("%w: session handle %s", ErrWrongValueFromTpm, handleString(sess.Handle()))
	}
	metrics.RecordSessionStarted(kind.String(), err)
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}

	s := &AuthSession{kind: kind, handle: sess.Handle(), session: sess}
	if err := c.track(s.handle, handles.Flush); err != nil {
		return nil, err
	}
	c.logger.Debug("esapi: started session", "kind", kind.String(), "handle", handleString(s.handle))
	return s, nil
}

func validSessionHandle(h tpm2.TPMHandle) bool {
	return h != 0 && h != NoSessionHandle && h != tpm2.TPMRHNull
}

// SetSessions replaces the session slots
func (c *Context) SetSessions(s Sessions) {
	c.sessions = s
}

// Sessions returns the current session slots
func (c *Context) Sessions() Sessions {
	return c.sessions
}

// ClearSessions empties every slot
func (c *Context) ClearSessions() {
	c.sessions = Sessions{}
}

// SessionHandles resolves the slots to the handles sent on the wire
func (c *Context) SessionHandles() [3]tpm2.TPMHandle {
	var out [3]tpm2.TPMHandle
	for i, s := range c.sessions {
		if s == nil {
			out[i] = NoSessionHandle
			continue
		}
		out[i] = s.handle
	}
	return out
}

// requiredSession returns the session in slot (1-based) for a command
// that cannot run without one.
func (c *Context) requiredSession(slot int) (tpm2.Session, error) {
	if slot < 1 || slot > len(c.sessions) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSessionSlot, slot)
	}
	s := c.sessions[slot-1]
	if s == nil {
		err := fmt.Errorf("%w: slot %d", ErrMissingAuthSession, slot)
		c.logger.Error(err)
		return nil, err
	}
	return s.session, nil
}

// optionalSessions returns every non-empty slot from slot (1-based)
// onwards, in slot order, for use as additional command sessions.
func (c *Context) optionalSessions(slot int) []tpm2.Session {
	var out []tpm2.Session
	for _, s := range c.sessions[slot-1:] {
		if s != nil {
			out = append(out, s.session)
		}
	}
	return out
}

// FlushContext flushes a transient object or session and stops tracking
// it. Handles tracked with the Close disposition are released with
// TrClose instead.
func (c *Context) FlushContext(h tpm2.TPMHandle) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if d, ok := c.handles.Disposition(h); ok && d != handles.Flush {
		return fmt.Errorf("%w: %s is tracked for %s", ErrInvalidHandle, handleString(h), d)
	}
	return c.flush(h)
}

func (c *Context) flush(h tpm2.TPMHandle) error {
	err := c.run("FlushContext", func() error {
		_, err := tpm2.FlushContext{FlushHandle: h}.Execute(c.tpm)
		return err
	})
	metrics.RecordHandleReleased(handles.Flush.String(), err)
	if err != nil {
		return err
	}
	c.handles.RemoveHandle(h)
	c.dropResource(h)
	c.logger.Debug("esapi: flushed handle", "handle", handleString(h))
	return nil
}
