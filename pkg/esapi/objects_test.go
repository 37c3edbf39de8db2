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
	"bytes"
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

const externalHandle tpm2.TPMHandle = 0x80000001

func hmacKeyPublic() *sensitive.TPM2BPublic {
	return &sensitive.TPM2BPublic{
		PublicArea: sensitive.TPMTPublic{
			Type:             sensitive.AlgKeyedHash,
			NameAlg:          sensitive.AlgSHA256,
			ObjectAttributes: 0x00040060,
			Parameters: &sensitive.TPMSKeyedHashParms{
				Scheme: sensitive.TPMTKeyedHashScheme{Scheme: sensitive.AlgNull},
			},
			Unique: &sensitive.TPM2BDigest{Buffer: []byte{0x01, 0x02}},
		},
	}
}

func loadExternalResponse() []byte {
	return tpmResponse(tpm2.TPMRCSuccess, u32(uint32(externalHandle)), b2(nvName(externalHandle)))
}

func TestLoadExternalSendsPrivateArea(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCLoadExternal, loadExternalResponse())

	private := &sensitive.TPMTSensitive{
		SensitiveType: sensitive.AlgKeyedHash,
		AuthValue:     sensitive.TPM2BAuth{Buffer: []byte("key-auth")},
		SeedValue:     sensitive.TPM2BDigest{Buffer: []byte("seed")},
		Sensitive:     &sensitive.TPM2BSensitiveData{Buffer: []byte("hmac-key")},
	}
	encoded, err := private.Marshal()
	require.NoError(t, err)

	result, err := c.LoadExternal(private, hmacKeyPublic(), tpm2.TPMRHNull)
	require.NoError(t, err)
	assert.Equal(t, externalHandle, result.ObjectHandle)

	cmd := m.sent[tpm2.TPMCCLoadExternal]
	assert.True(t, bytes.Contains(cmd, b2(encoded)), "private area not in command")

	// The caller keeps ownership of the private area.
	assert.Equal(t, []byte("hmac-key"), private.Sensitive.(*sensitive.TPM2BSensitiveData).Buffer)

	require.NoError(t, c.Close())
	assert.Contains(t, m.flushed, externalHandle)
}

func TestLoadExternalPublicOnly(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCLoadExternal, loadExternalResponse())

	_, err := c.LoadExternal(nil, hmacKeyPublic(), tpm2.TPMRHOwner)
	require.NoError(t, err)

	cmd := m.sent[tpm2.TPMCCLoadExternal]
	require.Greater(t, len(cmd), 12)
	assert.Equal(t, []byte{0x00, 0x00}, cmd[10:12], "empty inPrivate size")
}

func TestLoadExternalRejectsBadPrivateArea(t *testing.T) {
	c, m := newTestContext(t)

	private := &sensitive.TPMTSensitive{
		SensitiveType: sensitive.AlgRSA,
		Sensitive:     &sensitive.TPM2BSensitiveData{Buffer: []byte("wrong")},
	}
	_, err := c.LoadExternal(private, hmacKeyPublic(), tpm2.TPMRHNull)
	assert.ErrorIs(t, err, ErrInvalidParam)
	assert.Zero(t, m.count(tpm2.TPMCCLoadExternal))
}

func TestTakeCreationData(t *testing.T) {
	in := tpm2.New2B(tpm2.TPMSCreationData{
		PCRDigest:     tpm2.TPM2BDigest{Buffer: []byte("pcr-digest")},
		Locality:      tpm2.TPMALocality{TPMLocZero: true},
		ParentNameAlg: tpm2.TPMAlgSHA256,
		ParentName:    tpm2.TPM2BName{Buffer: []byte{0x40, 0x00, 0x00, 0x01}},
		OutsideInfo:   tpm2.TPM2BData{Buffer: []byte("outside")},
	})
	raw := bytes.Clone(in.Bytes())

	out, err := takeCreationData(&in)
	require.NoError(t, err)
	assert.Equal(t, uint16(len(raw)), out.Size)
	assert.Equal(t, []byte("pcr-digest"), out.CreationData.PCRDigest.Buffer)
	assert.Equal(t, uint8(1), out.CreationData.Locality)
	assert.Equal(t, sensitive.AlgSHA256, out.CreationData.ParentNameAlg)
	assert.Equal(t, []byte("outside"), out.CreationData.OutsideInfo.Buffer)

	out.Zeroize()
	assert.Empty(t, out.CreationData.OutsideInfo.Buffer)
}

func TestTakeCreationDataWipesEncoding(t *testing.T) {
	valid := tpm2.New2B(tpm2.TPMSCreationData{
		PCRDigest: tpm2.TPM2BDigest{Buffer: []byte("pcr-digest")},
	})
	buf := bytes.Clone(valid.Bytes())
	cd := tpm2.BytesAs2B[tpm2.TPMSCreationData](buf)

	_, err := takeCreationData(&cd)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, len(buf)), buf)

	bad := tpm2.BytesAs2B[tpm2.TPMSCreationData]([]byte{0x00, 0x00})
	_, err = takeCreationData(&bad)
	assert.ErrorIs(t, err, ErrWrongValueFromTpm)
}
