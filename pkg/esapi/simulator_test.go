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

//go:build tpm_simulator

package esapi

import (
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/store"
	"github.com/jeremyhahn/go-esapi/pkg/logging"
)

var sealTemplate = tpm2.TPMTPublic{
	Type:    tpm2.TPMAlgKeyedHash,
	NameAlg: tpm2.TPMAlgSHA256,
	ObjectAttributes: tpm2.TPMAObject{
		FixedTPM:     true,
		FixedParent:  true,
		UserWithAuth: true,
		NoDA:         true,
	},
	Parameters: tpm2.NewTPMUPublicParms(
		tpm2.TPMAlgKeyedHash,
		&tpm2.TPMSKeyedHashParms{
			Scheme: tpm2.TPMTKeyedHashScheme{Scheme: tpm2.TPMAlgNull},
		},
	),
}

func openSimulator(t *testing.T, opts ...Option) *Context {
	t.Helper()
	c, err := Open(&Config{UseSimulator: true}, opts...)
	require.NoError(t, err)
	return c
}

func createSRK(t *testing.T, c *Context) *CreatePrimaryResult {
	t.Helper()
	var srk *CreatePrimaryResult
	err := c.ExecuteWithSession(PasswordSession(nil), func(c *Context) (err error) {
		srk, err = c.CreatePrimary(tpm2.TPMRHOwner, nil, tpm2.RSASRKTemplate)
		return err
	})
	require.NoError(t, err)
	return srk
}

func TestSimulatorSealUnseal(t *testing.T) {
	c := openSimulator(t)
	defer func() { require.NoError(t, c.Close()) }()

	srk := createSRK(t, c)
	defer srk.Zeroize()
	assert.Equal(t, sensitive.AlgRSA, srk.OutPublic.PublicArea.Type)
	assert.NotEmpty(t, srk.Name.Buffer)

	secret := &sensitive.TPM2BSensitiveCreate{
		Sensitive: sensitive.TPMSSensitiveCreate{
			Data: sensitive.TPM2BSensitiveData{Buffer: []byte("sealed secret")},
		},
	}
	var created *CreateResult
	err := c.ExecuteWithNullauthSession(func(c *Context) (err error) {
		created, err = c.Create(srk.ObjectHandle, secret, sealTemplate)
		return err
	})
	require.NoError(t, err)
	defer created.Zeroize()

	var loaded *LoadResult
	err = c.ExecuteWithSession(PasswordSession(nil), func(c *Context) (err error) {
		loaded, err = c.Load(srk.ObjectHandle, &created.OutPrivate, created.OutPublic)
		return err
	})
	require.NoError(t, err)

	sess, err := c.StartAuthSession(SessionHMAC, SessionOptions{Encryption: EncryptOut})
	require.NoError(t, err)

	var data *sensitive.TPM2BSensitiveData
	err = c.ExecuteWithTemporaryObject(loaded.ObjectHandle, func(c *Context, h tpm2.TPMHandle) error {
		return c.ExecuteWithSession(sess, func(c *Context) (err error) {
			data, err = c.Unseal(h)
			return err
		})
	})
	require.NoError(t, err)
	require.NoError(t, c.FlushContext(sess.Handle()))
	assert.Equal(t, []byte("sealed secret"), data.Buffer)

	data.Zeroize()
	assert.Empty(t, data.Buffer)
	assert.Equal(t, []handles.Entry{{Handle: srk.ObjectHandle, Disposition: handles.Flush}}, c.Handles())
}

func TestSimulatorNVIndex(t *testing.T) {
	c := openSimulator(t)
	defer func() { require.NoError(t, c.Close()) }()

	const index tpm2.TPMHandle = 0x01500020
	public := tpm2.TPMSNVPublic{
		NVIndex: index,
		NameAlg: tpm2.TPMAlgSHA256,
		Attributes: tpm2.TPMANV{
			AuthRead:   true,
			AuthWrite:  true,
			NT:         tpm2.TPMNTOrdinary,
			NoDA:       true,
			OwnerRead:  true,
			OwnerWrite: true,
		},
		DataSize: 16,
	}

	err := c.ExecuteWithSession(PasswordSession(nil), func(c *Context) error {
		if _, err := c.NVDefineSpace(tpm2.TPMRHOwner, nil, public); err != nil {
			return err
		}
		payload := &sensitive.TPM2BMaxNVBuffer{Buffer: []byte("0123456789abcdef")}
		if err := c.NVWrite(index, index, payload, 0); err != nil {
			return err
		}
		out, err := c.NVRead(index, index, 16, 0)
		if err != nil {
			return err
		}
		defer out.Zeroize()
		assert.Equal(t, []byte("0123456789abcdef"), out.Buffer)
		return nil
	})
	require.NoError(t, err)

	d, ok := c.handles.Disposition(index)
	require.True(t, ok)
	assert.Equal(t, handles.Close, d)

	nv, err := c.NVReadPublic(index)
	require.NoError(t, err)
	assert.Equal(t, uint16(16), nv.NVPublic.DataSize)
	nv.Zeroize()

	err = c.ExecuteWithSession(PasswordSession(nil), func(c *Context) error {
		return c.NVUndefineSpace(tpm2.TPMRHOwner, index)
	})
	require.NoError(t, err)
	assert.False(t, c.handles.Contains(index))
}

func TestSimulatorEvictControl(t *testing.T) {
	c := openSimulator(t)
	defer func() { require.NoError(t, c.Close()) }()

	const persistent tpm2.TPMHandle = 0x81000010
	srk := createSRK(t, c)
	defer srk.Zeroize()

	err := c.ExecuteWithSession(PasswordSession(nil), func(c *Context) error {
		return c.EvictControl(tpm2.TPMRHOwner, srk.ObjectHandle, persistent)
	})
	require.NoError(t, err)

	d, ok := c.handles.Disposition(persistent)
	require.True(t, ok)
	assert.Equal(t, handles.Close, d)

	name, err := c.TrGetName(persistent)
	require.NoError(t, err)
	assert.Equal(t, srk.Name.Buffer, name.Buffer)

	err = c.ExecuteWithSession(PasswordSession(nil), func(c *Context) error {
		return c.EvictControl(tpm2.TPMRHOwner, persistent, persistent)
	})
	require.NoError(t, err)
	assert.False(t, c.handles.Contains(persistent))
}

func TestSimulatorContextBlobs(t *testing.T) {
	fs := afero.NewMemMapFs()
	blobs := store.NewFileStore(logging.NewLogger(false), fs, "/contexts")
	c := openSimulator(t, WithBlobStore(blobs))
	defer func() { require.NoError(t, c.Close()) }()

	srk := createSRK(t, c)
	defer srk.Zeroize()

	require.NoError(t, c.SaveContextBlob(srk.ObjectHandle, "srk", false))
	require.NoError(t, c.FlushContext(srk.ObjectHandle))

	h, err := c.LoadContextBlob("srk")
	require.NoError(t, err)

	pub, err := c.ReadPublic(h)
	require.NoError(t, err)
	defer pub.Zeroize()
	assert.Equal(t, srk.Name.Buffer, pub.Name.Buffer)
	assert.True(t, c.handles.Contains(h))
}

func TestSimulatorPropertiesAndRandom(t *testing.T) {
	c := openSimulator(t)
	defer func() { require.NoError(t, c.Close()) }()

	v, ok, err := c.GetTPMProperty(tpm2.TPMPTManufacturer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotZero(t, v)

	sess, err := c.StartAuthSession(SessionHMAC, SessionOptions{Encryption: EncryptOut})
	require.NoError(t, err)
	defer func() { require.NoError(t, c.FlushContext(sess.Handle())) }()

	err = c.ExecuteWithSession(sess, func(c *Context) error {
		out, err := c.GetRandom(64)
		if err != nil {
			return err
		}
		assert.Len(t, out.Buffer, 64)
		out.Zeroize()
		return nil
	})
	require.NoError(t, err)
}
