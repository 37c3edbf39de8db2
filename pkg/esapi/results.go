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

	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

// Response buffers decoded by go-tpm are owned by the response alone, so
// handing them to the caller is a move: the source slice is cleared and
// exactly one owner remains to zeroize it.

func take(src *[]byte) []byte {
	out := *src
	*src = nil
	return out
}

func takeName(n *tpm2.TPM2BName) sensitive.TPM2BName {
	return sensitive.TPM2BName{Buffer: take(&n.Buffer)}
}

func takeDigest(d *tpm2.TPM2BDigest) sensitive.TPM2BDigest {
	return sensitive.TPM2BDigest{Buffer: take(&d.Buffer)}
}

func takeTicket(t *tpm2.TPMTTKCreation) *sensitive.TPMTTKCreation {
	out := &sensitive.TPMTTKCreation{Ticket: sensitive.Ticket{
		Tag:       uint16(t.Tag),
		Hierarchy: uint32(t.Hierarchy),
		Digest:    takeDigest(&t.Digest),
	}}
	t.Tag, t.Hierarchy = 0, 0
	return out
}

// takePublic decodes a public area returned by the TPM into its sensitive
// form and wipes the encoded copy.
func takePublic(p *tpm2.TPM2BPublic) (*sensitive.TPM2BPublic, error) {
	raw := p.Bytes()
	defer sensitive.Wipe(raw)
	area, err := sensitive.DecodeTPMTPublic(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongValueFromTpm, err)
	}
	return &sensitive.TPM2BPublic{Size: uint16(len(raw)), PublicArea: *area}, nil
}

// takeCreationData decodes creation data returned by the TPM. go-tpm does not
// export a name for its sized creation data, hence the spelled-out generic.
func takeCreationData(cd *tpm2.TPM2B[tpm2.TPMSCreationData, *tpm2.TPMSCreationData]) (*sensitive.TPM2BCreationData, error) {
	raw := cd.Bytes()
	defer sensitive.Wipe(raw)
	data, err := sensitive.DecodeTPMSCreationData(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongValueFromTpm, err)
	}
	return &sensitive.TPM2BCreationData{Size: uint16(len(raw)), CreationData: *data}, nil
}

// CreatePrimaryResult holds the outputs of CreatePrimary
type CreatePrimaryResult struct {
	ObjectHandle   tpm2.TPMHandle
	OutPublic      *sensitive.TPM2BPublic
	CreationData   *sensitive.TPM2BCreationData
	CreationHash   sensitive.TPM2BDigest
	CreationTicket *sensitive.TPMTTKCreation
	Name           sensitive.TPM2BName
}

func (r *CreatePrimaryResult) Zeroize() {
	if r == nil {
		return
	}
	sensitive.Zeroize(r.OutPublic, r.CreationData, &r.CreationHash, r.CreationTicket, &r.Name)
}

// CreateResult holds the outputs of Create. OutPrivate is the wrapped
// private area of the new object.
type CreateResult struct {
	OutPrivate     sensitive.TPM2BPrivate
	OutPublic      *sensitive.TPM2BPublic
	CreationData   *sensitive.TPM2BCreationData
	CreationHash   sensitive.TPM2BDigest
	CreationTicket *sensitive.TPMTTKCreation
}

func (r *CreateResult) Zeroize() {
	if r == nil {
		return
	}
	sensitive.Zeroize(&r.OutPrivate, r.OutPublic, r.CreationData, &r.CreationHash, r.CreationTicket)
}

// LoadResult holds the handle and name of a loaded object
type LoadResult struct {
	ObjectHandle tpm2.TPMHandle
	Name         sensitive.TPM2BName
}

func (r *LoadResult) Zeroize() {
	if r != nil {
		r.Name.Zeroize()
	}
}

// ReadPublicResult holds the outputs of ReadPublic
type ReadPublicResult struct {
	OutPublic     *sensitive.TPM2BPublic
	Name          sensitive.TPM2BName
	QualifiedName sensitive.TPM2BName
}

func (r *ReadPublicResult) Zeroize() {
	if r == nil {
		return
	}
	sensitive.Zeroize(r.OutPublic, &r.Name, &r.QualifiedName)
}

// NVPublicResult holds the outputs of NVReadPublic
type NVPublicResult struct {
	NVPublic tpm2.TPMSNVPublic
	Name     sensitive.TPM2BName
}

func (r *NVPublicResult) Zeroize() {
	if r == nil {
		return
	}
	sensitive.Wipe(r.NVPublic.AuthPolicy.Buffer)
	r.NVPublic = tpm2.TPMSNVPublic{}
	r.Name.Zeroize()
}
