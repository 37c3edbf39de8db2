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

import "golang.org/x/crypto/cryptobyte"

// TPMSPCRSelection is a TPMS_PCR_SELECTION. Select holds sizeofSelect
// bytes of PCR bitmap.
type TPMSPCRSelection struct {
	Hash   AlgID
	Select []byte
}

func (s *TPMSPCRSelection) Zeroize() {
	if s == nil {
		return
	}
	wipeBuffer(&s.Select)
	s.Hash = 0
	record("TPMSPCRSelection")
}

// TPMLPCRSelection is a TPML_PCR_SELECTION.
type TPMLPCRSelection struct {
	PCRSelections []TPMSPCRSelection
}

func (l *TPMLPCRSelection) Zeroize() {
	if l == nil {
		return
	}
	full := l.PCRSelections[:cap(l.PCRSelections)]
	for i := range full {
		full[i].Zeroize()
	}
	l.PCRSelections = full[:0]
	record("TPMLPCRSelection")
}

func readPCRSelections(r *reader, out *TPMLPCRSelection) {
	count := r.u32("TPML_PCR_SELECTION.count")
	// each entry takes at least three bytes
	if r.err != nil || uint64(count)*3 > uint64(len(r.s)) {
		r.fail("TPML_PCR_SELECTION.count")
		return
	}
	out.PCRSelections = make([]TPMSPCRSelection, count)
	for i := range out.PCRSelections {
		sel := &out.PCRSelections[i]
		sel.Hash = r.alg("TPMS_PCR_SELECTION.hash")
		size := r.u8("TPMS_PCR_SELECTION.sizeofSelect")
		sel.Select = r.raw("TPMS_PCR_SELECTION.pcrSelect", int(size))
	}
}

func addPCRSelections(b *cryptobyte.Builder, l *TPMLPCRSelection) {
	b.AddUint32(uint32(len(l.PCRSelections)))
	for _, sel := range l.PCRSelections {
		addAlg(b, sel.Hash)
		b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(sel.Select)
		})
	}
}

// TPMSCreationData is a TPMS_CREATION_DATA.
type TPMSCreationData struct {
	PCRSelect           TPMLPCRSelection
	PCRDigest           TPM2BDigest
	Locality            uint8
	ParentNameAlg       AlgID
	ParentName          TPM2BName
	ParentQualifiedName TPM2BName
	OutsideInfo         TPM2BData
}

func (c *TPMSCreationData) Zeroize() {
	if c == nil {
		return
	}
	c.PCRSelect.Zeroize()
	c.PCRDigest.Zeroize()
	c.Locality = 0
	c.ParentNameAlg = 0
	c.ParentName.Zeroize()
	c.ParentQualifiedName.Zeroize()
	c.OutsideInfo.Zeroize()
	record("TPMSCreationData")
}

func readCreationData(r *reader, out *TPMSCreationData) {
	readPCRSelections(r, &out.PCRSelect)
	out.PCRDigest.Buffer = r.buffer("TPMS_CREATION_DATA.pcrDigest")
	out.Locality = r.u8("TPMS_CREATION_DATA.locality")
	out.ParentNameAlg = r.alg("TPMS_CREATION_DATA.parentNameAlg")
	out.ParentName.Buffer = r.buffer("TPMS_CREATION_DATA.parentName")
	out.ParentQualifiedName.Buffer = r.buffer("TPMS_CREATION_DATA.parentQualifiedName")
	out.OutsideInfo.Buffer = r.buffer("TPMS_CREATION_DATA.outsideInfo")
}

func addCreationData(b *cryptobyte.Builder, c *TPMSCreationData) {
	addPCRSelections(b, &c.PCRSelect)
	addBuffer(b, c.PCRDigest.Buffer)
	b.AddUint8(c.Locality)
	addAlg(b, c.ParentNameAlg)
	addBuffer(b, c.ParentName.Buffer)
	addBuffer(b, c.ParentQualifiedName.Buffer)
	addBuffer(b, c.OutsideInfo.Buffer)
}

// DecodeTPMSCreationData decodes a TPMS_CREATION_DATA, the contents of a
// TPM2B_CREATION_DATA without its size prefix.
func DecodeTPMSCreationData(data []byte) (*TPMSCreationData, error) {
	out := &TPMSCreationData{}
	if err := decodeTPMSCreationData(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPMSCreationData(data []byte, out *TPMSCreationData) error {
	return decodeInto(data, "TPMS_CREATION_DATA", out, func(r *reader) {
		readCreationData(r, out)
	})
}

// Marshal returns the canonical wire encoding.
func (c *TPMSCreationData) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) { addCreationData(b, c) })
}

// TPM2BCreationData is a TPM2B_CREATION_DATA.
type TPM2BCreationData struct {
	Size         uint16
	CreationData TPMSCreationData
}

func (c *TPM2BCreationData) Zeroize() {
	if c == nil {
		return
	}
	c.CreationData.Zeroize()
	c.Size = 0
	record("TPM2BCreationData")
}

// DecodeTPM2BCreationData decodes a size-prefixed TPM2B_CREATION_DATA.
func DecodeTPM2BCreationData(data []byte) (*TPM2BCreationData, error) {
	out := &TPM2BCreationData{}
	if err := decodeTPM2BCreationData(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPM2BCreationData(data []byte, out *TPM2BCreationData) error {
	return decodeInto(data, "TPM2B_CREATION_DATA", out, func(r *reader) {
		out.Size = r.sized("TPM2B_CREATION_DATA", func(sub *reader) {
			readCreationData(sub, &out.CreationData)
		})
	})
}

// TPMSSensitiveCreate is a TPMS_SENSITIVE_CREATE, the caller supplied
// authorization value and sealed data of a new object.
type TPMSSensitiveCreate struct {
	UserAuth TPM2BAuth
	Data     TPM2BSensitiveData
}

func (c *TPMSSensitiveCreate) Zeroize() {
	if c == nil {
		return
	}
	c.UserAuth.Zeroize()
	c.Data.Zeroize()
	record("TPMSSensitiveCreate")
}

// TPM2BSensitiveCreate is a TPM2B_SENSITIVE_CREATE.
type TPM2BSensitiveCreate struct {
	Size      uint16
	Sensitive TPMSSensitiveCreate
}

func (c *TPM2BSensitiveCreate) Zeroize() {
	if c == nil {
		return
	}
	c.Sensitive.Zeroize()
	c.Size = 0
	record("TPM2BSensitiveCreate")
}

// Marshal returns the size-prefixed wire encoding.
func (c *TPM2BSensitiveCreate) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			addBuffer(b, c.Sensitive.UserAuth.Buffer)
			addBuffer(b, c.Sensitive.Data.Buffer)
		})
	})
}

// DecodeTPM2BSensitiveCreate decodes a size-prefixed
// TPM2B_SENSITIVE_CREATE.
func DecodeTPM2BSensitiveCreate(data []byte) (*TPM2BSensitiveCreate, error) {
	out := &TPM2BSensitiveCreate{}
	if err := decodeTPM2BSensitiveCreate(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPM2BSensitiveCreate(data []byte, out *TPM2BSensitiveCreate) error {
	return decodeInto(data, "TPM2B_SENSITIVE_CREATE", out, func(r *reader) {
		out.Size = r.sized("TPM2B_SENSITIVE_CREATE", func(sub *reader) {
			out.Sensitive.UserAuth.Buffer = sub.buffer("TPMS_SENSITIVE_CREATE.userAuth")
			out.Sensitive.Data.Buffer = sub.buffer("TPMS_SENSITIVE_CREATE.data")
		})
	})
}
