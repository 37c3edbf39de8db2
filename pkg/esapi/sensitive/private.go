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

// SensitiveComposite is the TPMU_SENSITIVE_COMPOSITE union. Variants:
//
//	PublicRSA        *TPM2BPrivateKeyRSA
//	PublicECC        *TPM2BECCParameter
//	PublicKeyedHash  *TPM2BSensitiveData
//	PublicSymCipher  *TPM2BSymKey
type SensitiveComposite interface {
	Zeroizer
	sensitiveComposite()
}

// TPMTSensitive is a TPMT_SENSITIVE, the cleartext private area accepted by
// (*esapi.Context).LoadExternal.
type TPMTSensitive struct {
	SensitiveType AlgID
	AuthValue     TPM2BAuth
	SeedValue     TPM2BDigest
	Sensitive     SensitiveComposite
}

func (s *TPMTSensitive) Zeroize() {
	if s == nil {
		return
	}
	if alg, ok := DecodePublicAlgorithm(s.SensitiveType); ok {
		switch alg {
		case PublicRSA:
			zeroizeAs[*TPM2BPrivateKeyRSA](s.Sensitive)
		case PublicECC:
			zeroizeAs[*TPM2BECCParameter](s.Sensitive)
		case PublicKeyedHash:
			zeroizeAs[*TPM2BSensitiveData](s.Sensitive)
		case PublicSymCipher:
			zeroizeAs[*TPM2BSymKey](s.Sensitive)
		}
	}
	s.AuthValue.Zeroize()
	s.SeedValue.Zeroize()
	s.SensitiveType = 0
	record("TPMTSensitive")
}

// Marshal returns the canonical wire encoding.
func (s *TPMTSensitive) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) { addSensitive(b, s) })
}

// DecodeTPMTSensitive decodes a TPMT_SENSITIVE.
func DecodeTPMTSensitive(data []byte) (*TPMTSensitive, error) {
	out := &TPMTSensitive{}
	if err := decodeTPMTSensitive(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeTPMTSensitive(data []byte, out *TPMTSensitive) error {
	return decodeInto(data, "TPMT_SENSITIVE", out, func(r *reader) {
		readSensitive(r, out)
	})
}

func readSensitive(r *reader, out *TPMTSensitive) {
	out.SensitiveType = r.alg("TPMT_SENSITIVE.sensitiveType")
	out.AuthValue.Buffer = r.buffer("TPMT_SENSITIVE.authValue")
	out.SeedValue.Buffer = r.buffer("TPMT_SENSITIVE.seedValue")
	if r.err != nil {
		return
	}
	alg, ok := DecodePublicAlgorithm(out.SensitiveType)
	if !ok {
		r.unknown("TPMT_SENSITIVE", out.SensitiveType)
		return
	}
	buf := r.buffer("TPMU_SENSITIVE_COMPOSITE")
	switch alg {
	case PublicRSA:
		out.Sensitive = &TPM2BPrivateKeyRSA{Buffer: buf}
	case PublicECC:
		out.Sensitive = &TPM2BECCParameter{Buffer: buf}
	case PublicKeyedHash:
		out.Sensitive = &TPM2BSensitiveData{Buffer: buf}
	case PublicSymCipher:
		out.Sensitive = &TPM2BSymKey{Buffer: buf}
	}
}

func addSensitive(b *cryptobyte.Builder, s *TPMTSensitive) {
	addAlg(b, s.SensitiveType)
	addBuffer(b, s.AuthValue.Buffer)
	addBuffer(b, s.SeedValue.Buffer)

	alg, ok := DecodePublicAlgorithm(s.SensitiveType)
	if !ok {
		unknownVariant(b, "TPMT_SENSITIVE", s.SensitiveType)
		return
	}
	var buf []byte
	matched := false
	switch alg {
	case PublicRSA:
		if v, ok := s.Sensitive.(*TPM2BPrivateKeyRSA); ok && v != nil {
			buf, matched = v.Buffer, true
		}
	case PublicECC:
		if v, ok := s.Sensitive.(*TPM2BECCParameter); ok && v != nil {
			buf, matched = v.Buffer, true
		}
	case PublicKeyedHash:
		if v, ok := s.Sensitive.(*TPM2BSensitiveData); ok && v != nil {
			buf, matched = v.Buffer, true
		}
	case PublicSymCipher:
		if v, ok := s.Sensitive.(*TPM2BSymKey); ok && v != nil {
			buf, matched = v.Buffer, true
		}
	}
	if !matched {
		mismatchedVariant(b, "TPMT_SENSITIVE", s.SensitiveType)
		return
	}
	addBuffer(b, buf)
}

// TPM2BSensitive is a TPM2B_SENSITIVE.
type TPM2BSensitive struct {
	Size          uint16
	SensitiveArea TPMTSensitive
}

func (s *TPM2BSensitive) Zeroize() {
	if s == nil {
		return
	}
	s.SensitiveArea.Zeroize()
	s.Size = 0
	record("TPM2BSensitive")
}

// Marshal returns the size-prefixed wire encoding.
func (s *TPM2BSensitive) Marshal() ([]byte, error) {
	return build(func(b *cryptobyte.Builder) {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			addSensitive(b, &s.SensitiveArea)
		})
	})
}
