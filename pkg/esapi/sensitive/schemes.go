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

// SchemeDetails is the payload of a scheme union. The variants are
// *TPMSSchemeHash, *TPMSSchemeXOR and *TPMSSchemeECDAA. Schemes without
// parameters (null, RSAES) carry a nil payload.
type SchemeDetails interface {
	Zeroizer
	schemeDetails()
}

// TPMSSchemeHash is a TPMS_SCHEME_HASH and every scheme that reuses its
// layout (HMAC, RSASSA, RSAPSS, OAEP, ECDSA, ECDH, SM2, ECSchnorr, ECMQV
// and the KDFs).
type TPMSSchemeHash struct {
	HashAlg AlgID
}

func (s *TPMSSchemeHash) Zeroize() {
	if s == nil {
		return
	}
	s.HashAlg = 0
	record("TPMSSchemeHash")
}

func (*TPMSSchemeHash) schemeDetails() {}

// TPMSSchemeXOR is a TPMS_SCHEME_XOR.
type TPMSSchemeXOR struct {
	HashAlg AlgID
	KDF     AlgID
}

func (s *TPMSSchemeXOR) Zeroize() {
	if s == nil {
		return
	}
	s.HashAlg = 0
	s.KDF = 0
	record("TPMSSchemeXOR")
}

func (*TPMSSchemeXOR) schemeDetails() {}

// TPMSSchemeECDAA is a TPMS_SCHEME_ECDAA.
type TPMSSchemeECDAA struct {
	HashAlg AlgID
	Count   uint16
}

func (s *TPMSSchemeECDAA) Zeroize() {
	if s == nil {
		return
	}
	s.HashAlg = 0
	s.Count = 0
	record("TPMSSchemeECDAA")
}

func (*TPMSSchemeECDAA) schemeDetails() {}

// TPMTSymDefObject is a TPMT_SYM_DEF_OBJECT. Details is nil when
// Algorithm is TPM_ALG_NULL.
type TPMTSymDefObject struct {
	Algorithm AlgID
	Details   *TPMSSymDetails
}

// TPMSSymDetails holds the TPMU_SYM_KEY_BITS and TPMU_SYM_MODE members of
// a block cipher definition. Every block cipher variant shares this
// layout.
type TPMSSymDetails struct {
	KeyBits uint16
	Mode    AlgID
}

func (d *TPMSSymDetails) Zeroize() {
	if d == nil {
		return
	}
	d.KeyBits = 0
	d.Mode = 0
}

func (s *TPMTSymDefObject) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodeSymmetricObject(s.Algorithm); ok && alg != SymmetricNull {
		s.Details.Zeroize()
	}
	s.Algorithm = 0
	record("TPMTSymDefObject")
}

func readSymDefObject(r *reader, out *TPMTSymDefObject) {
	out.Algorithm = r.alg("TPMT_SYM_DEF_OBJECT.algorithm")
	if r.err != nil {
		return
	}
	alg, ok := DecodeSymmetricObject(out.Algorithm)
	if !ok {
		r.unknown("TPMT_SYM_DEF_OBJECT", out.Algorithm)
		return
	}
	if alg == SymmetricNull {
		return
	}
	out.Details = &TPMSSymDetails{
		KeyBits: r.u16("TPMT_SYM_DEF_OBJECT.keyBits"),
		Mode:    r.alg("TPMT_SYM_DEF_OBJECT.mode"),
	}
}

func addSymDefObject(b *cryptobyte.Builder, s *TPMTSymDefObject) {
	addAlg(b, s.Algorithm)
	alg, ok := DecodeSymmetricObject(s.Algorithm)
	switch {
	case !ok:
		unknownVariant(b, "TPMT_SYM_DEF_OBJECT", s.Algorithm)
	case alg == SymmetricNull:
	case s.Details == nil:
		mismatchedVariant(b, "TPMT_SYM_DEF_OBJECT", s.Algorithm)
	default:
		b.AddUint16(s.Details.KeyBits)
		addAlg(b, s.Details.Mode)
	}
}

// TPMTKeyedHashScheme is a TPMT_KEYEDHASH_SCHEME. HMAC carries a
// *TPMSSchemeHash, XOR a *TPMSSchemeXOR.
type TPMTKeyedHashScheme struct {
	Scheme  AlgID
	Details SchemeDetails
}

func (s *TPMTKeyedHashScheme) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodeKeyedHashScheme(s.Scheme); ok {
		switch alg {
		case KeyedHashHMAC:
			zeroizeAs[*TPMSSchemeHash](s.Details)
		case KeyedHashXOR:
			zeroizeAs[*TPMSSchemeXOR](s.Details)
		}
	}
	s.Scheme = 0
	record("TPMTKeyedHashScheme")
}

func readKeyedHashScheme(r *reader, out *TPMTKeyedHashScheme) {
	out.Scheme = r.alg("TPMT_KEYEDHASH_SCHEME.scheme")
	if r.err != nil {
		return
	}
	alg, ok := DecodeKeyedHashScheme(out.Scheme)
	if !ok {
		r.unknown("TPMT_KEYEDHASH_SCHEME", out.Scheme)
		return
	}
	switch alg {
	case KeyedHashHMAC:
		out.Details = &TPMSSchemeHash{HashAlg: r.alg("TPMS_SCHEME_HMAC.hashAlg")}
	case KeyedHashXOR:
		out.Details = &TPMSSchemeXOR{
			HashAlg: r.alg("TPMS_SCHEME_XOR.hashAlg"),
			KDF:     r.alg("TPMS_SCHEME_XOR.kdf"),
		}
	}
}

func addKeyedHashScheme(b *cryptobyte.Builder, s *TPMTKeyedHashScheme) {
	addAlg(b, s.Scheme)
	alg, ok := DecodeKeyedHashScheme(s.Scheme)
	if !ok {
		unknownVariant(b, "TPMT_KEYEDHASH_SCHEME", s.Scheme)
		return
	}
	switch alg {
	case KeyedHashHMAC:
		addSchemeHash(b, "TPMT_KEYEDHASH_SCHEME", s.Scheme, s.Details)
	case KeyedHashXOR:
		d, ok := s.Details.(*TPMSSchemeXOR)
		if !ok || d == nil {
			mismatchedVariant(b, "TPMT_KEYEDHASH_SCHEME", s.Scheme)
			return
		}
		addAlg(b, d.HashAlg)
		addAlg(b, d.KDF)
	}
}

// TPMTRSAScheme is a TPMT_RSA_SCHEME. RSASSA, RSAPSS and OAEP carry a
// *TPMSSchemeHash; RSAES and null carry nothing.
type TPMTRSAScheme struct {
	Scheme  AlgID
	Details SchemeDetails
}

func (s *TPMTRSAScheme) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodeRSAScheme(s.Scheme); ok {
		switch alg {
		case RSASchemeRSASSA, RSASchemeRSAPSS, RSASchemeOAEP:
			zeroizeAs[*TPMSSchemeHash](s.Details)
		}
	}
	s.Scheme = 0
	record("TPMTRSAScheme")
}

func readRSAScheme(r *reader, out *TPMTRSAScheme) {
	out.Scheme = r.alg("TPMT_RSA_SCHEME.scheme")
	if r.err != nil {
		return
	}
	alg, ok := DecodeRSAScheme(out.Scheme)
	if !ok {
		r.unknown("TPMT_RSA_SCHEME", out.Scheme)
		return
	}
	switch alg {
	case RSASchemeRSASSA, RSASchemeRSAPSS, RSASchemeOAEP:
		out.Details = &TPMSSchemeHash{HashAlg: r.alg("TPMT_RSA_SCHEME.hashAlg")}
	}
}

func addRSAScheme(b *cryptobyte.Builder, s *TPMTRSAScheme) {
	addAlg(b, s.Scheme)
	alg, ok := DecodeRSAScheme(s.Scheme)
	if !ok {
		unknownVariant(b, "TPMT_RSA_SCHEME", s.Scheme)
		return
	}
	switch alg {
	case RSASchemeRSASSA, RSASchemeRSAPSS, RSASchemeOAEP:
		addSchemeHash(b, "TPMT_RSA_SCHEME", s.Scheme, s.Details)
	}
}

// TPMTECCScheme is a TPMT_ECC_SCHEME. ECDAA carries a *TPMSSchemeECDAA,
// null carries nothing and every other scheme a *TPMSSchemeHash.
type TPMTECCScheme struct {
	Scheme  AlgID
	Details SchemeDetails
}

func (s *TPMTECCScheme) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodeECCScheme(s.Scheme); ok {
		switch alg {
		case ECCSchemeECDAA:
			zeroizeAs[*TPMSSchemeECDAA](s.Details)
		case ECCSchemeNull:
		default:
			zeroizeAs[*TPMSSchemeHash](s.Details)
		}
	}
	s.Scheme = 0
	record("TPMTECCScheme")
}

func readECCScheme(r *reader, out *TPMTECCScheme) {
	out.Scheme = r.alg("TPMT_ECC_SCHEME.scheme")
	if r.err != nil {
		return
	}
	alg, ok := DecodeECCScheme(out.Scheme)
	if !ok {
		r.unknown("TPMT_ECC_SCHEME", out.Scheme)
		return
	}
	switch alg {
	case ECCSchemeECDAA:
		out.Details = &TPMSSchemeECDAA{
			HashAlg: r.alg("TPMS_SCHEME_ECDAA.hashAlg"),
			Count:   r.u16("TPMS_SCHEME_ECDAA.count"),
		}
	case ECCSchemeNull:
	default:
		out.Details = &TPMSSchemeHash{HashAlg: r.alg("TPMT_ECC_SCHEME.hashAlg")}
	}
}

func addECCScheme(b *cryptobyte.Builder, s *TPMTECCScheme) {
	addAlg(b, s.Scheme)
	alg, ok := DecodeECCScheme(s.Scheme)
	if !ok {
		unknownVariant(b, "TPMT_ECC_SCHEME", s.Scheme)
		return
	}
	switch alg {
	case ECCSchemeECDAA:
		d, ok := s.Details.(*TPMSSchemeECDAA)
		if !ok || d == nil {
			mismatchedVariant(b, "TPMT_ECC_SCHEME", s.Scheme)
			return
		}
		addAlg(b, d.HashAlg)
		b.AddUint16(d.Count)
	case ECCSchemeNull:
	default:
		addSchemeHash(b, "TPMT_ECC_SCHEME", s.Scheme, s.Details)
	}
}

// TPMTKDFScheme is a TPMT_KDF_SCHEME. Every non-null KDF carries a
// *TPMSSchemeHash.
type TPMTKDFScheme struct {
	Scheme  AlgID
	Details SchemeDetails
}

func (s *TPMTKDFScheme) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodeKDFScheme(s.Scheme); ok && alg != KDFNull {
		zeroizeAs[*TPMSSchemeHash](s.Details)
	}
	s.Scheme = 0
	record("TPMTKDFScheme")
}

func readKDFScheme(r *reader, out *TPMTKDFScheme) {
	out.Scheme = r.alg("TPMT_KDF_SCHEME.scheme")
	if r.err != nil {
		return
	}
	alg, ok := DecodeKDFScheme(out.Scheme)
	if !ok {
		r.unknown("TPMT_KDF_SCHEME", out.Scheme)
		return
	}
	if alg != KDFNull {
		out.Details = &TPMSSchemeHash{HashAlg: r.alg("TPMT_KDF_SCHEME.hashAlg")}
	}
}

func addKDFScheme(b *cryptobyte.Builder, s *TPMTKDFScheme) {
	addAlg(b, s.Scheme)
	alg, ok := DecodeKDFScheme(s.Scheme)
	if !ok {
		unknownVariant(b, "TPMT_KDF_SCHEME", s.Scheme)
		return
	}
	if alg != KDFNull {
		addSchemeHash(b, "TPMT_KDF_SCHEME", s.Scheme, s.Details)
	}
}

func addSchemeHash(b *cryptobyte.Builder, what string, selector AlgID, details SchemeDetails) {
	d, ok := details.(*TPMSSchemeHash)
	if !ok || d == nil {
		mismatchedVariant(b, what, selector)
		return
	}
	addAlg(b, d.HashAlg)
}
