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
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Ticket is the layout shared by every TPMT_TK_* structure: a structure
// tag, the hierarchy that issued the ticket and an HMAC over the ticketed
// data. All ticket classes are zeroized the same way.
type Ticket struct {
	Tag       uint16
	Hierarchy uint32
	Digest    TPM2BDigest
}

func (t *Ticket) zeroize(structure string) {
	if t == nil {
		return
	}
	t.Tag = 0
	t.Hierarchy = 0
	t.Digest.Zeroize()
	record(structure)
}

func (t *Ticket) marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) {
		b.AddUint16(t.Tag)
		b.AddUint32(t.Hierarchy)
		addBuffer(b, t.Digest.Buffer)
	})
}

func decodeTicket(data []byte, what string, tags ...uint16) (Ticket, error) {
	var t Ticket
	if err := decodeTicketInto(data, what, &t, tags...); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// decodeTicketInto decodes into t and leaves t zeroized on failure.
func decodeTicketInto(data []byte, what string, t *Ticket, tags ...uint16) error {
	r := newReader(data)
	t.Tag = r.u16(what + ".tag")
	t.Hierarchy = r.u32(what + ".hierarchy")
	t.Digest.Buffer = r.buffer(what + ".digest")
	err := r.done(what)
	if err == nil {
		for _, tag := range tags {
			if t.Tag == tag {
				return nil
			}
		}
		err = fmt.Errorf("%w: %s tag 0x%04x", ErrMalformed, what, t.Tag)
	}
	t.Tag, t.Hierarchy = 0, 0
	t.Digest.Zeroize()
	return err
}

// TPMTTKCreation is a TPMT_TK_CREATION.
type TPMTTKCreation struct{ Ticket }

func (t *TPMTTKCreation) Zeroize() {
	if t != nil {
		t.zeroize("TPMTTKCreation")
	}
}

// Marshal returns the canonical wire encoding.
func (t *TPMTTKCreation) Marshal() ([]byte, error) { return t.marshal() }

// DecodeTPMTTKCreation decodes a TPMT_TK_CREATION.
func DecodeTPMTTKCreation(data []byte) (*TPMTTKCreation, error) {
	t, err := decodeTicket(data, "TPMT_TK_CREATION", STCreation)
	if err != nil {
		return nil, err
	}
	return &TPMTTKCreation{t}, nil
}

// TPMTTKVerified is a TPMT_TK_VERIFIED.
type TPMTTKVerified struct{ Ticket }

func (t *TPMTTKVerified) Zeroize() {
	if t != nil {
		t.zeroize("TPMTTKVerified")
	}
}

// Marshal returns the canonical wire encoding.
func (t *TPMTTKVerified) Marshal() ([]byte, error) { return t.marshal() }

// DecodeTPMTTKVerified decodes a TPMT_TK_VERIFIED.
func DecodeTPMTTKVerified(data []byte) (*TPMTTKVerified, error) {
	t, err := decodeTicket(data, "TPMT_TK_VERIFIED", STVerified)
	if err != nil {
		return nil, err
	}
	return &TPMTTKVerified{t}, nil
}

// TPMTTKAuth is a TPMT_TK_AUTH, issued for either a secret or a signed
// authorization.
type TPMTTKAuth struct{ Ticket }

func (t *TPMTTKAuth) Zeroize() {
	if t != nil {
		t.zeroize("TPMTTKAuth")
	}
}

// Marshal returns the canonical wire encoding.
func (t *TPMTTKAuth) Marshal() ([]byte, error) { return t.marshal() }

// DecodeTPMTTKAuth decodes a TPMT_TK_AUTH.
func DecodeTPMTTKAuth(data []byte) (*TPMTTKAuth, error) {
	t, err := decodeTicket(data, "TPMT_TK_AUTH", STAuthSecret, STAuthSigned)
	if err != nil {
		return nil, err
	}
	return &TPMTTKAuth{t}, nil
}

// TPMTTKHashCheck is a TPMT_TK_HASHCHECK.
type TPMTTKHashCheck struct{ Ticket }

func (t *TPMTTKHashCheck) Zeroize() {
	if t != nil {
		t.zeroize("TPMTTKHashCheck")
	}
}

// Marshal returns the canonical wire encoding.
func (t *TPMTTKHashCheck) Marshal() ([]byte, error) { return t.marshal() }

// DecodeTPMTTKHashCheck decodes a TPMT_TK_HASHCHECK.
func DecodeTPMTTKHashCheck(data []byte) (*TPMTTKHashCheck, error) {
	t, err := decodeTicket(data, "TPMT_TK_HASHCHECK", STHashCheck)
	if err != nil {
		return nil, err
	}
	return &TPMTTKHashCheck{t}, nil
}
