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

// Flat TPM2B buffers. The slice length is the logical size; the capacity
// may be larger when the backing array is reused, and Zeroize clears all
// of it.

// TPM2BDigest is a TPM2B_DIGEST.
type TPM2BDigest struct {
	Buffer []byte
}

// Zeroize clears the backing array and truncates the buffer.
func (b *TPM2BDigest) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BDigest")
}

func (*TPM2BDigest) publicID() {}

// TPM2BData is a TPM2B_DATA.
type TPM2BData struct {
	Buffer []byte
}

func (b *TPM2BData) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BData")
}

// TPM2BECCParameter is a TPM2B_ECC_PARAMETER holding an ECC coordinate or private scalar.
type TPM2BECCParameter struct {
	Buffer []byte
}

func (b *TPM2BECCParameter) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BECCParameter")
}

func (*TPM2BECCParameter) sensitiveComposite() {}

// TPM2BEncryptedSecret is a TPM2B_ENCRYPTED_SECRET.
type TPM2BEncryptedSecret struct {
	Buffer []byte
}

func (b *TPM2BEncryptedSecret) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BEncryptedSecret")
}

// TPM2BIDObject is a TPM2B_ID_OBJECT holding a credential blob.
type TPM2BIDObject struct {
	Buffer []byte
}

func (b *TPM2BIDObject) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BIDObject")
}

// TPM2BIV is a TPM2B_IV.
type TPM2BIV struct {
	Buffer []byte
}

func (b *TPM2BIV) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BIV")
}

// TPM2BMaxBuffer is a TPM2B_MAX_BUFFER.
type TPM2BMaxBuffer struct {
	Buffer []byte
}

func (b *TPM2BMaxBuffer) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BMaxBuffer")
}

// TPM2BMaxNVBuffer is a TPM2B_MAX_NV_BUFFER.
type TPM2BMaxNVBuffer struct {
	Buffer []byte
}

func (b *TPM2BMaxNVBuffer) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BMaxNVBuffer")
}

// TPM2BPrivate is a TPM2B_PRIVATE holding an encrypted private area.
type TPM2BPrivate struct {
	Buffer []byte
}

func (b *TPM2BPrivate) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BPrivate")
}

// TPM2BPrivateKeyRSA is a TPM2B_PRIVATE_KEY_RSA holding an RSA prime.
type TPM2BPrivateKeyRSA struct {
	Buffer []byte
}

func (b *TPM2BPrivateKeyRSA) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BPrivateKeyRSA")
}

func (*TPM2BPrivateKeyRSA) sensitiveComposite() {}

// TPM2BPrivateVendorSpecific is a TPM2B_PRIVATE_VENDOR_SPECIFIC.
type TPM2BPrivateVendorSpecific struct {
	Buffer []byte
}

func (b *TPM2BPrivateVendorSpecific) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BPrivateVendorSpecific")
}

// TPM2BPublicKeyRSA is a TPM2B_PUBLIC_KEY_RSA holding an RSA modulus.
type TPM2BPublicKeyRSA struct {
	Buffer []byte
}

func (b *TPM2BPublicKeyRSA) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BPublicKeyRSA")
}

func (*TPM2BPublicKeyRSA) publicID() {}

// TPM2BSensitiveData is a TPM2B_SENSITIVE_DATA.
type TPM2BSensitiveData struct {
	Buffer []byte
}

func (b *TPM2BSensitiveData) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BSensitiveData")
}

func (*TPM2BSensitiveData) sensitiveComposite() {}

// TPM2BSymKey is a TPM2B_SYM_KEY.
type TPM2BSymKey struct {
	Buffer []byte
}

func (b *TPM2BSymKey) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BSymKey")
}

func (*TPM2BSymKey) sensitiveComposite() {}

// TPM2BName is a TPM2B_NAME.
type TPM2BName struct {
	Buffer []byte
}

func (b *TPM2BName) Zeroize() {
	if b == nil {
		return
	}
	wipeBuffer(&b.Buffer)
	record("TPM2BName")
}

// TPM2BAuth is a TPM2B_AUTH, a TPM2B_DIGEST carrying an authorization
// value.
type TPM2BAuth = TPM2BDigest

// TPM2BNonce is a TPM2B_NONCE.
type TPM2BNonce = TPM2BDigest
