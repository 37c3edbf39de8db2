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
	"errors"
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
)

const testNVIndex tpm2.TPMHandle = 0x01500000

func TestCloseFlushesSessionsAndClosesNVIndices(t *testing.T) {
	c, m := newTestContext(t)
	m.push(tpm2.TPMCCNVReadPublic, nvReadPublicResponse(testNVIndex, 32))

	sess, err := c.StartAuthSession(SessionHMAC, SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, firstSessionHandle, sess.Handle())

	name, err := c.TrFromTPMPublic(testNVIndex)
	require.NoError(t, err)
	assert.Equal(t, nvName(testNVIndex), name.Buffer)

	assert.Equal(t, []handles.Entry{
		{Handle: testNVIndex, Disposition: handles.Close},
		{Handle: firstSessionHandle, Disposition: handles.Flush},
	}, c.Handles())

	calls := len(m.calls)
	require.NoError(t, c.Close())

	// one flush for the session, nothing for the NV index
	assert.Equal(t, []tpm2.TPMHandle{firstSessionHandle}, m.flushed)
	assert.Len(t, m.calls, calls+1)
	assert.False(t, c.HasOpenHandles())
	assert.Empty(t, c.resources)
	assert.True(t, m.closed)
}

func TestCloseFlushesInAscendingOrder(t *testing.T) {
	c, m := newTestContext(t)

	for i := 0; i < 3; i++ {
		_, err := c.StartAuthSession(SessionPolicy, SessionOptions{})
		require.NoError(t, err)
	}
	require.NoError(t, c.track(0x80000002, handles.Flush))
	require.NoError(t, c.track(0x80000001, handles.Flush))

	require.NoError(t, c.Close())
	assert.Equal(t, []tpm2.TPMHandle{
		firstSessionHandle,
		firstSessionHandle + 1,
		firstSessionHandle + 2,
		0x80000001,
		0x80000002,
	}, m.flushed)
}

func TestCloseReportsLeakedHandles(t *testing.T) {
	c, m := newTestContext(t)

	first, err := c.StartAuthSession(SessionHMAC, SessionOptions{})
	require.NoError(t, err)
	_, err = c.StartAuthSession(SessionHMAC, SessionOptions{})
	require.NoError(t, err)
	m.failFlush[first.Handle()] = tpm2.TPMRCFailure

	err = c.Close()
	assert.ErrorIs(t, err, ErrHandlesLeaked)
	rc, ok := ResponseCode(err)
	assert.True(t, ok)
	assert.Equal(t, tpm2.TPMRCFailure, rc)

	// the sweep continues past the failure
	assert.Equal(t, []tpm2.TPMHandle{firstSessionHandle, firstSessionHandle + 1}, m.flushed)
	assert.True(t, c.HasOpenHandles())
	assert.Equal(t, []handles.Entry{{Handle: first.Handle(), Disposition: handles.Flush}}, c.Handles())
	assert.True(t, m.closed)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, m := newTestContext(t)
	m.closeErr = errors.New("device busy")

	err := c.Close()
	assert.ErrorContains(t, err, "device busy")
	assert.NoError(t, c.Close())
}

func TestOperationsAfterClose(t *testing.T) {
	c, _ := newTestContext(t)
	require.NoError(t, c.Close())

	_, err := c.GetRandom(8)
	assert.ErrorIs(t, err, ErrContextClosed)

	_, err = c.StartAuthSession(SessionHMAC, SessionOptions{})
	assert.ErrorIs(t, err, ErrContextClosed)

	_, _, err = c.GetTPMProperty(tpm2.TPMPTManufacturer)
	assert.ErrorIs(t, err, ErrContextClosed)

	assert.ErrorIs(t, c.FlushContext(0x80000000), ErrContextClosed)
}
