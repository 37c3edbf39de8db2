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

	"github.com/google/go-tpm/tpm2"
)

// ExecuteWithSessions runs f with the session slots set to s and restores
// the previous slots on every exit path, including when f changes the
// slots itself.
func (c *Context) ExecuteWithSessions(s Sessions, f func(*Context) error) error {
	prev := c.sessions
	c.sessions = s
	defer func() { c.sessions = prev }()
	return f(c)
}

// ExecuteWithSession runs f with s in slot 1 and the other slots empty
func (c *Context) ExecuteWithSession(s *AuthSession, f func(*Context) error) error {
	return c.ExecuteWithSessions(Sessions{s}, f)
}

// ExecuteWithoutSession runs f with every slot empty
func (c *Context) ExecuteWithoutSession(f func(*Context) error) error {
	return c.ExecuteWithSessions(Sessions{}, f)
}

// ExecuteWithNullauthSession starts an HMAC session with an empty auth
// value, SHA-256 and AES-128-CFB encryption of parameters in both
// directions, runs f with it in slot 1 and flushes it afterwards. After a
// flush failure the session stays tracked with the Flush disposition and
// is swept by (*Context).Close. The failure is logged and never replaces
// the result of f.
func (c *Context) ExecuteWithNullauthSession(f func(*Context) error) error {
	sess, err := c.StartAuthSession(SessionHMAC, SessionOptions{
		Hash:       tpm2.TPMAlgSHA256,
		Encryption: EncryptInOut,
		KeyBits:    128,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := c.FlushContext(sess.Handle()); err != nil {
			c.logger.Error(err, "handle", handleString(sess.Handle()))
		}
	}()
	return c.ExecuteWithSession(sess, f)
}

// ExecuteWithTemporaryObject runs f with h and flushes h afterwards, even
// when f fails. The result is f's error when the flush succeeds, the flush
// error when only the flush fails, and both joined when both fail.
func (c *Context) ExecuteWithTemporaryObject(h tpm2.TPMHandle, f func(*Context, tpm2.TPMHandle) error) (err error) {
	defer func() {
		flushErr := c.FlushContext(h)
		switch {
		case flushErr == nil:
		case err == nil:
			err = flushErr
		default:
			err = errors.Join(err, flushErr)
		}
	}()
	return f(c, h)
}
