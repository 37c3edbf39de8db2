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

// Package handles tracks every TPM handle created or imported through a
// context together with the discipline required to release it.
//
// Volatile resources (primary keys, loaded objects, sessions) are released
// with TPM2_FlushContext and must be registered with Flush. Persistent
// objects and NV indices outlive the context; only the local reference is
// dropped, so they are registered with Close.
//
// A Manager is not safe for concurrent use. The owning context serializes
// access.
package handles

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/google/go-tpm/tpm2"
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

var (
	// ErrDispositionConflict is returned when a handle is registered
	// again with a different disposition.
	ErrDispositionConflict = errors.New("handles: handle already registered with a different disposition")

	// ErrInvalidDisposition is returned for a zero or unknown disposition.
	ErrInvalidDisposition = errors.New("handles: invalid disposition")
)

// Disposition selects the release operation for a handle.
type Disposition uint8

const (
	// Flush tells the TPM to forget the resource entirely.
	Flush Disposition = iota + 1
	// Close releases only the local reference to a persistent resource.
	Close
)

func (d Disposition) String() string {
	switch d {
	case Flush:
		return "flush"
	case Close:
		return "close"
	default:
		return fmt.Sprintf("disposition(%d)", uint8(d))
	}
}

// Valid reports whether d is Flush or Close.
func (d Disposition) Valid() bool {
	return d == Flush || d == Close
}

// Entry is a registered handle and its disposition.
type Entry struct {
	Handle      tpm2.TPMHandle
	Disposition Disposition
}

// Manager is the registry of open handles.
type Manager struct {
	open map[tpm2.TPMHandle]Disposition
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{
		open: make(map[tpm2.TPMHandle]Disposition),
	}
}

// AddHandle registers a newly created handle. Registering the same handle
// twice with the same disposition is a no-op.
func (m *Manager) AddHandle(handle tpm2.TPMHandle, disposition Disposition) error {
	if !disposition.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDisposition, disposition)
	}
	if existing, ok := m.open[handle]; ok {
		if existing == disposition {
			return nil
		}
		return fmt.Errorf("%w: 0x%08x is %s, requested %s",
			ErrDispositionConflict, uint32(handle), existing, disposition)
	}
	m.open[handle] = disposition
	metrics.RecordHandleRegistered(disposition.String())
	return nil
}

// RemoveHandle drops a handle after it has been released. Removing a
// handle that is not registered does nothing.
func (m *Manager) RemoveHandle(handle tpm2.TPMHandle) {
	if _, ok := m.open[handle]; !ok {
		return
	}
	delete(m.open, handle)
	metrics.RecordHandleRemoved()
}

// Disposition returns the disposition a handle was registered with.
func (m *Manager) Disposition(handle tpm2.TPMHandle) (Disposition, bool) {
	d, ok := m.open[handle]
	return d, ok
}

// Contains reports whether a handle is registered.
func (m *Manager) Contains(handle tpm2.TPMHandle) bool {
	_, ok := m.open[handle]
	return ok
}

// HandlesToFlush returns the handles registered with Flush in ascending
// order.
func (m *Manager) HandlesToFlush() []tpm2.TPMHandle {
	return m.collect(Flush)
}

// HandlesToClose returns the handles registered with Close in ascending
// order.
func (m *Manager) HandlesToClose() []tpm2.TPMHandle {
	return m.collect(Close)
}

// Entries returns every registered handle in ascending order.
func (m *Manager) Entries() []Entry {
	entries := make([]Entry, 0, len(m.open))
	for h, d := range m.open {
		entries = append(entries, Entry{Handle: h, Disposition: d})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Handle, b.Handle)
	})
	return entries
}

// HasOpenHandles reports whether any handle is still registered. After a
// teardown sweep this means at least one release failed.
func (m *Manager) HasOpenHandles() bool {
	return len(m.open) > 0
}

// Len returns the number of registered handles.
func (m *Manager) Len() int {
	return len(m.open)
}

func (m *Manager) collect(disposition Disposition) []tpm2.TPMHandle {
	var out []tpm2.TPMHandle
	for h, d := range m.open {
		if d == disposition {
			out = append(out, h)
		}
	}
	slices.Sort(out)
	return out
}
