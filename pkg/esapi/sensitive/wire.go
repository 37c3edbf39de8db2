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

package sensitive

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

var (
	// ErrMalformed is returned when wire bytes are truncated or do not
	// match the structure being decoded.
	ErrMalformed = errors.New("sensitive: malformed structure")

	// ErrUnknownDiscriminant is returned when a union selector has no
	// known variant. The payload length cannot be determined, so decoding
	// stops.
	ErrUnknownDiscriminant = errors.New("sensitive: unknown union discriminant")

	// ErrTrailingData is returned when bytes remain after a structure.
	ErrTrailingData = errors.New("sensitive: trailing data")
)

// reader decodes canonical TPM wire encoding. The first failure is sticky
// and later reads return zero values.
type reader struct {
	s   cryptobyte.String
	err error
}

func newReader(b []byte) *reader {
	return &reader{s: cryptobyte.String(b)}
}

func (r *reader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformed, what)
	}
}

func (r *reader) unknown(what string, alg AlgID) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s selector %s", ErrUnknownDiscriminant, what, alg)
	}
}

func (r *reader) u8(what string) uint8 {
	var v uint8
	if r.err == nil && !r.s.ReadUint8(&v) {
		r.fail(what)
	}
	return v
}

func (r *reader) u16(what string) uint16 {
	var v uint16
	if r.err == nil && !r.s.ReadUint16(&v) {
		r.fail(what)
	}
	return v
}

func (r *reader) u32(what string) uint32 {
	var v uint32
	if r.err == nil && !r.s.ReadUint32(&v) {
		r.fail(what)
	}
	return v
}

func (r *reader) alg(what string) AlgID {
	return AlgID(r.u16(what))
}

// buffer reads a TPM2B and returns a private copy of its contents, so the
// decoded structure never aliases the input.
func (r *reader) buffer(what string) []byte {
	var child cryptobyte.String
	if r.err != nil {
		return nil
	}
	if !r.s.ReadUint16LengthPrefixed(&child) {
		r.fail(what)
		return nil
	}
	return bytes.Clone([]byte(child))
}

// raw reads n bytes into a private copy.
func (r *reader) raw(what string, n int) []byte {
	var out []byte
	if r.err != nil {
		return nil
	}
	if !r.s.ReadBytes(&out, n) {
		r.fail(what)
		return nil
	}
	return bytes.Clone(out)
}

// sized reads a size-prefixed structure, decodes it with fn and checks
// that fn consumed exactly the declared size.
func (r *reader) sized(what string, fn func(*reader)) uint16 {
	var child cryptobyte.String
	if r.err != nil {
		return 0
	}
	if !r.s.ReadUint16LengthPrefixed(&child) {
		r.fail(what)
		return 0
	}
	sub := &reader{s: child}
	fn(sub)
	if sub.err == nil && !sub.s.Empty() {
		sub.err = fmt.Errorf("%w: %s", ErrTrailingData, what)
	}
	if sub.err != nil && r.err == nil {
		r.err = sub.err
	}
	return uint16(len(child))
}

// decodeInto runs fn over data and requires it to consume all of it. On
// failure out is zeroized, so buffers cloned before the error never outlive
// the call.
func decodeInto(data []byte, what string, out Zeroizer, fn func(*reader)) error {
	r := newReader(data)
	fn(r)
	if err := r.done(what); err != nil {
		out.Zeroize()
		return err
	}
	return nil
}

// done reports the first error, or ErrTrailingData when input remains.
func (r *reader) done(what string) error {
	if r.err != nil {
		return r.err
	}
	if !r.s.Empty() {
		return fmt.Errorf("%w: %s", ErrTrailingData, what)
	}
	return nil
}

func addAlg(b *cryptobyte.Builder, alg AlgID) {
	b.AddUint16(uint16(alg))
}

func addBuffer(b *cryptobyte.Builder, buf []byte) {
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(buf)
	})
}

func unknownVariant(b *cryptobyte.Builder, what string, alg AlgID) {
	b.SetError(fmt.Errorf("%w: %s selector %s", ErrUnknownDiscriminant, what, alg))
}

func mismatchedVariant(b *cryptobyte.Builder, what string, alg AlgID) {
	b.SetError(fmt.Errorf("%w: %s payload does not match selector %s", ErrMalformed, what, alg))
}

func build(fn func(*cryptobyte.Builder)) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	fn(b)
	return b.Bytes()
}
