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

	"github.com/google/go-tpm/tpm2"
)

// AlgID is a raw TPM_ALG_ID as it appears on the wire. It is the
// discriminant of most TPM unions and is only interpreted through the
// Decode* lookup tables below.
type AlgID uint16

// TCG algorithm registry values used by the structures in this package,
// taken from go-tpm.
const (
	AlgRSA          = AlgID(tpm2.TPMAlgRSA)
	AlgTDES         = AlgID(tpm2.TPMAlgTDES)
	AlgSHA1         = AlgID(tpm2.TPMAlgSHA1)
	AlgHMAC         = AlgID(tpm2.TPMAlgHMAC)
	AlgAES          = AlgID(tpm2.TPMAlgAES)
	AlgMGF1         = AlgID(tpm2.TPMAlgMGF1)
	AlgKeyedHash    = AlgID(tpm2.TPMAlgKeyedHash)
	AlgXOR          = AlgID(tpm2.TPMAlgXOR)
	AlgSHA256       = AlgID(tpm2.TPMAlgSHA256)
	AlgSHA384       = AlgID(tpm2.TPMAlgSHA384)
	AlgSHA512       = AlgID(tpm2.TPMAlgSHA512)
	AlgNull         = AlgID(tpm2.TPMAlgNull)
	AlgSM3256       = AlgID(tpm2.TPMAlgSM3256)
	AlgSM4          = AlgID(tpm2.TPMAlgSM4)
	AlgRSASSA       = AlgID(tpm2.TPMAlgRSASSA)
	AlgRSAES        = AlgID(tpm2.TPMAlgRSAES)
	AlgRSAPSS       = AlgID(tpm2.TPMAlgRSAPSS)
	AlgOAEP         = AlgID(tpm2.TPMAlgOAEP)
	AlgECDSA        = AlgID(tpm2.TPMAlgECDSA)
	AlgECDH         = AlgID(tpm2.TPMAlgECDH)
	AlgECDAA        = AlgID(tpm2.TPMAlgECDAA)
	AlgSM2          = AlgID(tpm2.TPMAlgSM2)
	AlgECSchnorr    = AlgID(tpm2.TPMAlgECSchnorr)
	AlgECMQV        = AlgID(tpm2.TPMAlgECMQV)
	AlgKDF1SP80056A = AlgID(tpm2.TPMAlgKDF1SP80056A)
	AlgKDF2         = AlgID(tpm2.TPMAlgKDF2)
	AlgKDF1SP800108 = AlgID(tpm2.TPMAlgKDF1SP800108)
	AlgECC          = AlgID(tpm2.TPMAlgECC)
	AlgSymCipher    = AlgID(tpm2.TPMAlgSymCipher)
	AlgCamellia     = AlgID(tpm2.TPMAlgCamellia)
	AlgCTR          = AlgID(tpm2.TPMAlgCTR)
	AlgOFB          = AlgID(tpm2.TPMAlgOFB)
	AlgCBC          = AlgID(tpm2.TPMAlgCBC)
	AlgCFB          = AlgID(tpm2.TPMAlgCFB)
	AlgECB          = AlgID(tpm2.TPMAlgECB)
)

func (a AlgID) String() string {
	if name, ok := algNames[a]; ok {
		return name
	}
	return fmt.Sprintf("alg(0x%04x)", uint16(a))
}

var algNames = map[AlgID]string{
	AlgRSA: "rsa", AlgTDES: "tdes", AlgSHA1: "sha1", AlgHMAC: "hmac",
	AlgAES: "aes", AlgMGF1: "mgf1", AlgKeyedHash: "keyedhash", AlgXOR: "xor",
	AlgSHA256: "sha256", AlgSHA384: "sha384", AlgSHA512: "sha512",
	AlgNull: "null", AlgSM3256: "sm3_256", AlgSM4: "sm4", AlgRSASSA: "rsassa",
	AlgRSAES: "rsaes", AlgRSAPSS: "rsapss", AlgOAEP: "oaep", AlgECDSA: "ecdsa",
	AlgECDH: "ecdh", AlgECDAA: "ecdaa", AlgSM2: "sm2", AlgECSchnorr: "ecschnorr",
	AlgECMQV: "ecmqv", AlgKDF1SP80056A: "kdf1_sp800_56a", AlgKDF2: "kdf2",
	AlgKDF1SP800108: "kdf1_sp800_108", AlgECC: "ecc", AlgSymCipher: "symcipher",
	AlgCamellia: "camellia", AlgCTR: "ctr", AlgOFB: "ofb", AlgCBC: "cbc",
	AlgCFB: "cfb", AlgECB: "ecb",
}

// PublicAlgorithm selects the variant of TPMU_PUBLIC_PARMS, TPMU_PUBLIC_ID
// and TPMU_SENSITIVE_COMPOSITE.
type PublicAlgorithm uint8

const (
	PublicRSA PublicAlgorithm = iota + 1
	PublicECC
	PublicKeyedHash
	PublicSymCipher
)

var publicAlgorithms = map[AlgID]PublicAlgorithm{
	AlgRSA:       PublicRSA,
	AlgECC:       PublicECC,
	AlgKeyedHash: PublicKeyedHash,
	AlgSymCipher: PublicSymCipher,
}

// DecodePublicAlgorithm decodes the type field of a public or sensitive
// area.
func DecodePublicAlgorithm(alg AlgID) (PublicAlgorithm, bool) {
	v, ok := publicAlgorithms[alg]
	return v, ok
}

// SymmetricObject selects the variant of TPMU_SYM_KEY_BITS and
// TPMU_SYM_MODE inside a TPMT_SYM_DEF_OBJECT.
type SymmetricObject uint8

const (
	SymmetricAES SymmetricObject = iota + 1
	SymmetricSM4
	SymmetricCamellia
	SymmetricTDES
	SymmetricNull
)

var symmetricObjects = map[AlgID]SymmetricObject{
	AlgAES:      SymmetricAES,
	AlgSM4:      SymmetricSM4,
	AlgCamellia: SymmetricCamellia,
	AlgTDES:     SymmetricTDES,
	AlgNull:     SymmetricNull,
}

// DecodeSymmetricObject decodes the algorithm of a TPMT_SYM_DEF_OBJECT.
func DecodeSymmetricObject(alg AlgID) (SymmetricObject, bool) {
	v, ok := symmetricObjects[alg]
	return v, ok
}

// KeyedHashSchemeAlg selects the variant of TPMU_SCHEME_KEYEDHASH.
type KeyedHashSchemeAlg uint8

const (
	KeyedHashHMAC KeyedHashSchemeAlg = iota + 1
	KeyedHashXOR
	KeyedHashNull
)

var keyedHashSchemes = map[AlgID]KeyedHashSchemeAlg{
	AlgHMAC: KeyedHashHMAC,
	AlgXOR:  KeyedHashXOR,
	AlgNull: KeyedHashNull,
}

// DecodeKeyedHashScheme decodes the scheme of a TPMT_KEYEDHASH_SCHEME.
func DecodeKeyedHashScheme(alg AlgID) (KeyedHashSchemeAlg, bool) {
	v, ok := keyedHashSchemes[alg]
	return v, ok
}

// RSASchemeAlg selects the TPMU_ASYM_SCHEME variant of a TPMT_RSA_SCHEME.
type RSASchemeAlg uint8

const (
	RSASchemeRSASSA RSASchemeAlg = iota + 1
	RSASchemeRSAES
	RSASchemeRSAPSS
	RSASchemeOAEP
	RSASchemeNull
)

var rsaSchemes = map[AlgID]RSASchemeAlg{
	AlgRSASSA: RSASchemeRSASSA,
	AlgRSAES:  RSASchemeRSAES,
	AlgRSAPSS: RSASchemeRSAPSS,
	AlgOAEP:   RSASchemeOAEP,
	AlgNull:   RSASchemeNull,
}

// DecodeRSAScheme decodes the scheme of a TPMT_RSA_SCHEME.
func DecodeRSAScheme(alg AlgID) (RSASchemeAlg, bool) {
	v, ok := rsaSchemes[alg]
	return v, ok
}

// ECCSchemeAlg selects the TPMU_ASYM_SCHEME variant of a TPMT_ECC_SCHEME.
type ECCSchemeAlg uint8

const (
	ECCSchemeECDSA ECCSchemeAlg = iota + 1
	ECCSchemeECDH
	ECCSchemeECDAA
	ECCSchemeSM2
	ECCSchemeECSchnorr
	ECCSchemeECMQV
	ECCSchemeNull
)

var eccSchemes = map[AlgID]ECCSchemeAlg{
	AlgECDSA:     ECCSchemeECDSA,
	AlgECDH:      ECCSchemeECDH,
	AlgECDAA:     ECCSchemeECDAA,
	AlgSM2:       ECCSchemeSM2,
	AlgECSchnorr: ECCSchemeECSchnorr,
	AlgECMQV:     ECCSchemeECMQV,
	AlgNull:      ECCSchemeNull,
}

// DecodeECCScheme decodes the scheme of a TPMT_ECC_SCHEME.
func DecodeECCScheme(alg AlgID) (ECCSchemeAlg, bool) {
	v, ok := eccSchemes[alg]
	return v, ok
}

// KDFAlg selects the variant of TPMU_KDF_SCHEME.
type KDFAlg uint8

const (
	KDFMGF1 KDFAlg = iota + 1
	KDF1SP80056A
	KDF2
	KDF1SP800108
	KDFNull
)

var kdfSchemes = map[AlgID]KDFAlg{
	AlgMGF1:         KDFMGF1,
	AlgKDF1SP80056A: KDF1SP80056A,
	AlgKDF2:         KDF2,
	AlgKDF1SP800108: KDF1SP800108,
	AlgNull:         KDFNull,
}

// DecodeKDFScheme decodes the scheme of a TPMT_KDF_SCHEME.
func DecodeKDFScheme(alg AlgID) (KDFAlg, bool) {
	v, ok := kdfSchemes[alg]
	return v, ok
}

// Structure tags carried by tickets.
const (
	STCreation   uint16 = 0x8021
	STVerified   uint16 = 0x8022
	STAuthSecret uint16 = 0x8023
	STHashCheck  uint16 = 0x8024
	STAuthSigned uint16 = 0x8025
)
