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
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTPMPropertyCachesBatch(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, propertiesResponse(
		property{tpm2.TPMPTManufacturer, 0x49424D00},
		property{tpm2.TPMPTFirmwareVersion1, 0x53572020},
		property{tpm2.TPMPTInputBuffer, 0x2054504D},
	))

	v, ok, err := c.GetTPMProperty(tpm2.TPMPTManufacturer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x49424D00), v)

	v, ok, err = c.GetTPMProperty(tpm2.TPMPTManufacturer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x49424D00), v)

	v, ok, err = c.GetTPMProperty(tpm2.TPMPTInputBuffer)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x2054504D), v)

	assert.Equal(t, 1, m.count(tpm2.TPMCCGetCapability))
}

func TestGetTPMPropertyRunsWithoutSessions(t *testing.T) {
	c, m := newTestContext(t)
	slots := Sessions{PasswordSession(nil)}
	c.SetSessions(slots)
	m.push(tpm2.TPMCCGetCapability, propertiesResponse(property{tpm2.TPMPTMaxAuthFail, 0x322E3000}))

	_, ok, err := c.GetTPMProperty(tpm2.TPMPTMaxAuthFail)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, slots, c.Sessions())
}

func TestGetTPMPropertyMissing(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, propertiesResponse(property{tpm2.TPMPTLockoutInterval, 138}))

	_, ok, err := c.GetTPMProperty(tpm2.TPMPTLockoutRecovery)
	require.NoError(t, err)
	assert.False(t, ok)

	// neighbours returned by the batch are still cached
	v, ok, err := c.GetTPMProperty(tpm2.TPMPTLockoutInterval)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(138), v)
	assert.Equal(t, 1, m.count(tpm2.TPMCCGetCapability))
}

func TestGetTPMPropertyCacheIsNotOverwritten(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, propertiesResponse(property{tpm2.TPMPTLockoutInterval, 138}))
	m.push(tpm2.TPMCCGetCapability, propertiesResponse(
		property{tpm2.TPMPTLockoutRecovery, 0},
		property{tpm2.TPMPTLockoutInterval, 999},
	))

	_, _, err := c.GetTPMProperty(tpm2.TPMPTLockoutInterval)
	require.NoError(t, err)
	_, _, err = c.GetTPMProperty(tpm2.TPMPTLockoutRecovery)
	require.NoError(t, err)

	v, _, err := c.GetTPMProperty(tpm2.TPMPTLockoutInterval)
	require.NoError(t, err)
	assert.Equal(t, uint32(138), v)
}

func TestGetTPMPropertyWrongCapability(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, handlesResponse(0x80000001))

	_, _, err := c.GetTPMProperty(tpm2.TPMPTManufacturer)
	assert.ErrorIs(t, err, ErrWrongValueFromTpm)
	assert.Empty(t, c.props)
}

func TestGetTPMPropertyResponseCode(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, tpmResponse(tpm2.TPMRCFailure))

	_, _, err := c.GetTPMProperty(tpm2.TPMPTManufacturer)
	rc, ok := ResponseCode(err)
	require.True(t, ok)
	assert.Equal(t, tpm2.TPMRCFailure, rc)
}

func TestGetHandles(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCGetCapability, handlesResponse(0x81000001, 0x81010001))

	list, err := c.GetHandles(0x81000000, 16)
	require.NoError(t, err)
	assert.Equal(t, []tpm2.TPMHandle{0x81000001, 0x81010001}, list)

	m.push(tpm2.TPMCCGetCapability, propertiesResponse(property{tpm2.TPMPTLockoutInterval, 1}))
	_, err = c.GetHandles(0x81000000, 16)
	assert.ErrorIs(t, err, ErrWrongValueFromTpm)
}
