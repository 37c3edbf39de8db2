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

// PublicParms is the TPMU_PUBLIC_PARMS union. Variants:
//
//	PublicKeyedHash  *TPMSKeyedHashParms
//	PublicSymCipher  *TPMSSymCipherParms
//	PublicRSA        *TPMSRSAParms
//	PublicECC        *TPMSECCParms
type PublicParms interface {
	Zeroizer
	publicParms()
}

// PublicID is the TPMU_PUBLIC_ID union. Variants:
//
//	PublicKeyedHash, PublicSymCipher  *TPM2BDigest
//	PublicRSA                         *TPM2BPublicKeyRSA
//	PublicECC                         *TPMSECCPoint
type PublicID interface {
	Zeroizer
	publicID()
}

// TPMSKeyedHashParms is a TPMS_KEYEDHASH_PARMS.
type TPMSKeyedHashParms struct {
	Scheme TPMTKeyedHashScheme
}

func (p *TPMSKeyedHashParms) Zeroize() {
	if p == nil {
		return
	}
	p.Scheme.Zeroize()
	record("TPMSKeyedHashParms")
}

func (*TPMSKeyedHashParms) publicParms() {}

// TPMSSymCipherParms is a TPMS_SYMCIPHER_PARMS.
type TPMSSymCipherParms struct {
	Sym TPMTSymDefObject
}

func (p *TPMSSymCipherParms) Zeroize() {
	if p == nil {
		return
	}
	p.Sym.Zeroize()
	record("TPMSSymCipherParms")
}

func (*TPMSSymCipherParms) publicParms() {}

// TPMSRSAParms is a TPMS_RSA_PARMS.
type TPMSRSAParms struct {
	Symmetric TPMTSymDefObject
	Scheme    TPMTRSAScheme
	KeyBits   uint16
	Exponent  uint32
}

func (p *TPMSRSAParms) Zeroize() {
	if p == nil {
		return
	}
	p.Symmetric.Zeroize()
	p.Scheme.Zeroize()
	p.KeyBits = 0
	p.Exponent = 0
	record("TPMSRSAParms")
}

func (*TPMSRSAParms) publicParms() {}

// TPMSECCParms is a TPMS_ECC_PARMS.
type TPMSECCParms struct {
	Symmetric TPMTSymDefObject
	Scheme    TPMTECCScheme
	CurveID   uint16
	KDF       TPMTKDFScheme
}

func (p *TPMSECCParms) Zeroize() {
	if p == nil {
		return
	}
	p.Symmetric.Zeroize()
	p.Scheme.Zeroize()
	p.CurveID = 0
	p.KDF.Zeroize()
	record("TPMSECCParms")
}

func (*TPMSECCParms) publicParms() {}

// TPMSECCPoint is a TPMS_ECC_POINT.
type TPMSECCPoint struct {
	X TPM2BECCParameter
	Y TPM2BECCParameter
}

func (p *TPMSECCPoint) Zeroize() {
	if p == nil {
		return
	}
	p.X.Zeroize()
	p.Y.Zeroize()
	record("TPMSECCPoint")
}

func (*TPMSECCPoint) publicID() {}

// TPMTPublic is a TPMT_PUBLIC. Type selects the Parameters and Unique
// variants.
type TPMTPublic struct {
	Type             AlgID
	NameAlg          AlgID
	ObjectAttributes uint32
	AuthPolicy       TPM2BDigest
	Parameters       PublicParms
	Unique           PublicID
}

// Zeroize scrubs the public area. Parameters and Unique are only touched
// when Type decodes to a known algorithm and the payloads carry the
// matching variants. Type is cleared last.
func (p *TPMTPublic) Zeroize() {
	if p == nil {
		return
	}
	if alg, ok := DecodePublicAlgorithm(p.Type); ok {
		switch alg {
		case PublicKeyedHash:
			zeroizeAs[*TPMSKeyedHashParms](p.Parameters)
			zeroizeAs[*TPM2BDigest](p.Unique)
		case PublicSymCipher:
			zeroizeAs[*TPMSSymCipherParms](p.Parameters)
			zeroizeAs[*TPM2BDigest](p.Unique)
		case PublicRSA:
			zeroizeAs[*TPMSRSAParms](p.Parameters)
			zeroizeAs[*TPM2BPublicKeyRSA](p.Unique)
		case PublicECC:
			zeroizeAs[*TPMSECCParms](p.Parameters)
			zeroizeAs[*TPMSECCPoint](p.Unique)
		}
	}
	p.NameAlg = 0
	p.ObjectAttributes = 0
	p.AuthPolicy.Zeroize()
	p.Type = 0
	record("TPMTPublic")
}

// Marshal returns the canonical wire encoding of the public area.
func (p *TPMTPublic) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) { addPublic(b, p) })
}

// DecodeTPMTPublic decodes a TPMT_PUBLIC, the contents of a TPM2B_PUBLIC
// without its size prefix.
func DecodeTPMTPublic(data []byte) (*TPMTPublic, error) {
	out := &TPMTPublic{}
	if err := decodeTPMTPublic(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPMTPublic(data []byte, out *TPMTPublic) error {
	return decodeInto(data, "TPMT_PUBLIC", out, func(r *reader) {
		readPublic(r, out)
	})
}

func readPublic(r *reader, out *TPMTPublic) {
	out.Type = r.alg("TPMT_PUBLIC.type")
	out.NameAlg = r.alg("TPMT_PUBLIC.nameAlg")
	out.ObjectAttributes = r.u32("TPMT_PUBLIC.objectAttributes")
	out.AuthPolicy.Buffer = r.buffer("TPMT_PUBLIC.authPolicy")
	if r.err != nil {
		return
	}
	alg, ok := DecodePublicAlgorithm(out.Type)
	if !ok {
		r.unknown("TPMT_PUBLIC", out.Type)
		return
	}
	switch alg {
	case PublicKeyedHash:
		parms := &TPMSKeyedHashParms{}
		readKeyedHashScheme(r, &parms.Scheme)
		out.Parameters = parms
		out.Unique = &TPM2BDigest{Buffer: r.buffer("TPMU_PUBLIC_ID.keyedHash")}
	case PublicSymCipher:
		parms := &TPMSSymCipherParms{}
		readSymDefObject(r, &parms.Sym)
		out.Parameters = parms
		out.Unique = &TPM2BDigest{Buffer: r.buffer("TPMU_PUBLIC_ID.sym")}
	case PublicRSA:
		parms := &TPMSRSAParms{}
		readSymDefObject(r, &parms.Symmetric)
		readRSAScheme(r, &parms.Scheme)
		parms.KeyBits = r.u16("TPMS_RSA_PARMS.keyBits")
		parms.Exponent = r.u32("TPMS_RSA_PARMS.exponent")
		out.Parameters = parms
		out.Unique = &TPM2BPublicKeyRSA{Buffer: r.buffer("TPMU_PUBLIC_ID.rsa")}
	case PublicECC:
		parms := &TPMSECCParms{}
		readSymDefObject(r, &parms.Symmetric)
		readECCScheme(r, &parms.Scheme)
		parms.CurveID = r.u16("TPMS_ECC_PARMS.curveID")
		readKDFScheme(r, &parms.KDF)
		out.Parameters = parms
		point := &TPMSECCPoint{}
		point.X.Buffer = r.buffer("TPMS_ECC_POINT.x")
		point.Y.Buffer = r.buffer("TPMS_ECC_POINT.y")
		out.Unique = point
	}
}

func addPublic(b *cryptobyte.Builder, p *TPMTPublic) {
	addAlg(b, p.Type)
	addAlg(b, p.NameAlg)
	b.AddUint32(p.ObjectAttributes)
	addBuffer(b, p.AuthPolicy.Buffer)

	alg, ok := DecodePublicAlgorithm(p.Type)
	if !ok {
		unknownVariant(b, "TPMT_PUBLIC", p.Type)
		return
	}
	switch alg {
	case PublicKeyedHash:
		parms, ok1 := p.Parameters.(*TPMSKeyedHashParms)
		unique, ok2 := p.Unique.(*TPM2BDigest)
		if !ok1 || !ok2 || parms == nil || unique == nil {
			mismatchedVariant(b, "TPMT_PUBLIC", p.Type)
			return
		}
		addKeyedHashScheme(b, &parms.Scheme)
		addBuffer(b, unique.Buffer)
	case PublicSymCipher:
		parms, ok1 := p.Parameters.(*TPMSSymCipherParms)
		unique, ok2 := p.Unique.(*TPM2BDigest)
		if !ok1 || !ok2 || parms == nil || unique == nil {
			mismatchedVariant(b, "TPMT_PUBLIC", p.Type)
			return
		}
		addSymDefObject(b, &parms.Sym)
		addBuffer(b, unique.Buffer)
	case PublicRSA:
		parms, ok1 := p.Parameters.(*TPMSRSAParms)
		unique, ok2 := p.Unique.(*TPM2BPublicKeyRSA)
		if !ok1 || !ok2 || parms == nil || unique == nil {
			mismatchedVariant(b, "TPMT_PUBLIC", p.Type)
			return
		}
		addSymDefObject(b, &parms.Symmetric)
		addRSAScheme(b, &parms.Scheme)
		b.AddUint16(parms.KeyBits)
		b.AddUint32(parms.Exponent)
		addBuffer(b, unique.Buffer)
	case PublicECC:
		parms, ok1 := p.Parameters.(*TPMSECCParms)
		unique, ok2 := p.Unique.(*TPMSECCPoint)
		if !ok1 || !ok2 || parms == nil || unique == nil {
			mismatchedVariant(b, "TPMT_PUBLIC", p.Type)
			return
		}
		addSymDefObject(b, &parms.Symmetric)
		addECCScheme(b, &parms.Scheme)
		b.AddUint16(parms.CurveID)
		addKDFScheme(b, &parms.KDF)
		addBuffer(b, unique.X.Buffer)
		addBuffer(b, unique.Y.Buffer)
	}
}

// TPM2BPublic is a TPM2B_PUBLIC. Size is the size prefix seen when the
// structure was decoded.
type TPM2BPublic struct {
	Size       uint16
	PublicArea TPMTPublic
}

func (p *TPM2BPublic) Zeroize() {
	if p == nil {
		return
	}
	p.PublicArea.Zeroize()
	p.Size = 0
	record("TPM2BPublic")
}

// Marshal returns the size-prefixed wire encoding.
func (p *TPM2BPublic) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			addPublic(b, &p.PublicArea)
		})
	})
}

// DecodeTPM2BPublic decodes a size-prefixed TPM2B_PUBLIC.
func DecodeTPM2BPublic(data []byte) (*TPM2BPublic, error) {
	out := &TPM2BPublic{}
	if err := decodeTPM2BPublic(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPM2BPublic(data []byte, out *TPM2BPublic) error {
	return decodeInto(data, "TPM2B_PUBLIC", out, func(r *reader) {
		out.Size = r.sized("TPM2B_PUBLIC", func(sub *reader) {
			readPublic(sub, &out.PublicArea)
		})
	})
}
