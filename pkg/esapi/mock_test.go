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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-tpm/tpm2"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-esapi/pkg/logging"
)

const firstSessionHandle tpm2.TPMHandle = 0x02000000

// mockTPM implements transport.TPMCloser. Sessions and flushes are
// answered directly; every other command pops the next queued response
// for its command code.
type mockTPM struct {
	t *testing.T

	queue     map[tpm2.TPMCC][][]byte
	failFlush map[tpm2.TPMHandle]tpm2.TPMRC
	calls     []tpm2.TPMCC
	sent      map[tpm2.TPMCC][]byte // last command per code
	flushed   []tpm2.TPMHandle

	nextSession   tpm2.TPMHandle
	sessionHandle tpm2.TPMHandle // overrides nextSession when non-zero

	closed   bool
	closeErr error
}

func newMockTPM(t *testing.T) *mockTPM {
	return &mockTPM{
		t:           t,
		queue:       make(map[tpm2.TPMCC][][]byte),
		failFlush:   make(map[tpm2.TPMHandle]tpm2.TPMRC),
		sent:        make(map[tpm2.TPMCC][]byte),
		nextSession: firstSessionHandle,
	}
}

func (m *mockTPM) Send(cmd []byte) ([]byte, error) {
	if len(cmd) < 10 {
		return nil, errors.New("command too short")
	}
	cc := tpm2.TPMCC(binary.BigEndian.Uint32(cmd[6:10]))
	m.calls = append(m.calls, cc)
	m.sent[cc] = bytes.Clone(cmd)

	switch cc {
	case tpm2.TPMCCFlushContext:
		h := tpm2.TPMHandle(binary.BigEndian.Uint32(cmd[10:14]))
		m.flushed = append(m.flushed, h)
		if rc, ok := m.failFlush[h]; ok {
			return tpmResponse(rc), nil
		}
		return tpmResponse(tpm2.TPMRCSuccess), nil

	case tpm2.TPMCCStartAuthSession:
		h := m.sessionHandle
		if h == 0 {
			h = m.nextSession
			m.nextSession++
		}
		return tpmResponse(tpm2.TPMRCSuccess, u32(uint32(h)), b2(make([]byte, nonceSize))), nil
	}

	q := m.queue[cc]
	if len(q) == 0 {
		m.t.Errorf("unexpected command 0x%08x", uint32(cc))
		return tpmResponse(tpm2.TPMRCFailure), nil
	}
	m.queue[cc] = q[1:]
	return q[0], nil
}

func (m *mockTPM) Close() error {
	m.closed = true
	return m.closeErr
}

func (m *mockTPM) push(cc tpm2.TPMCC, rsp []byte) {
	m.queue[cc] = append(m.queue[cc], rsp)
}

func (m *mockTPM) count(cc tpm2.TPMCC) int {
	n := 0
	for _, c := range m.calls {
		if c == cc {
			n++
		}
	}
	return n
}

func newTestContext(t *testing.T) (*Context, *mockTPM) {
	t.Helper()
	m := newMockTPM(t)
	c, err := New(m, WithLogger(logging.NewLogger(false)), WithInstanceID("test-context"))
	require.NoError(t, err)
	return c, m
}

func tpmResponse(rc tpm2.TPMRC, body ...[]byte) []byte {
	var payload []byte
	if rc == tpm2.TPMRCSuccess {
		for _, b := range body {
			payload = append(payload, b...)
		}
	}
	out := make([]byte, 10, 10+len(payload))
	binary.BigEndian.PutUint16(out[0:2], 0x8001)
	binary.BigEndian.PutUint32(out[2:6], uint32(10+len(payload)))
	binary.BigEndian.PutUint32(out[6:10], uint32(rc))
	return append(out, payload...)
}

func u16(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func b2(b []byte) []byte {
	return append(u16(uint16(len(b))), b...)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type property struct {
	tag   tpm2.TPMPT
	value uint32
}

func propertiesResponse(props ...property) []byte {
	body := concat([]byte{0x00}, u32(uint32(tpm2.TPMCapTPMProperties)), u32(uint32(len(props))))
	for _, p := range props {
		body = concat(body, u32(uint32(p.tag)), u32(p.value))
	}
	return tpmResponse(tpm2.TPMRCSuccess, body)
}

func handlesResponse(handles ...tpm2.TPMHandle) []byte {
	body := concat([]byte{0x00}, u32(uint32(tpm2.TPMCapHandles)), u32(uint32(len(handles))))
	for _, h := range handles {
		body = concat(body, u32(uint32(h)))
	}
	return tpmResponse(tpm2.TPMRCSuccess, body)
}

func nvName(index tpm2.TPMHandle) []byte {
	name := make([]byte, 34)
	binary.BigEndian.PutUint16(name, uint16(tpm2.TPMAlgSHA256))
	binary.BigEndian.PutUint32(name[2:], uint32(index))
	return name
}

func nvReadPublicResponse(index tpm2.TPMHandle, dataSize uint16) []byte {
	public := concat(
		u32(uint32(index)),
		u16(uint16(tpm2.TPMAlgSHA256)),
		u32(0),
		b2(nil),
		u16(dataSize),
	)
	return tpmResponse(tpm2.TPMRCSuccess, b2(public), b2(nvName(index)))
}

func randomResponse(b []byte) []byte {
	return tpmResponse(tpm2.TPMRCSuccess, b2(b))
}
