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

// Package sensitive models the TPM response structures that can carry key
// material, authorization values or derived secrets, and scrubs them before
// their memory is released.
//
// Every TPM union is an explicit Go sum type: an interface implemented only
// by the variant payload types. The discriminant is kept in its raw wire
// form and decoded through a lookup table into a safe enum before the
// payload is touched. Zeroization follows three rules:
//
//   - flat buffers clear their entire backing array, not just the logical
//     length, and are truncated to length zero;
//   - unions zeroize the payload only when the discriminant decodes and the
//     payload has the matching variant type, otherwise the payload is left
//     untouched;
//   - discriminants are zeroed last, after dispatch.
package sensitive

import (
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// Zeroizer is implemented by every structure that may hold secret
// material. Zeroize must be safe to call on a nil receiver and more than
// once.
type Zeroizer interface {
	Zeroize()
}

// Zeroize scrubs every value in order. Nil values are skipped.
func Zeroize(values ...Zeroizer) {
	for _, v := range values {
		if v != nil {
			v.Zeroize()
		}
	}
}

// Wipe clears the full capacity of buf. It is used for intermediate byte
// slices that never become one of the typed structures, such as marshalled
// command parameters.
func Wipe(buf []byte) {
	clear(buf[:cap(buf)])
}

// wipeBuffer clears the whole backing array of *buf and truncates it to
// length zero.
func wipeBuffer(buf *[]byte) {
	if *buf == nil {
		return
	}
	full := (*buf)[:cap(*buf)]
	clear(full)
	*buf = full[:0]
}

// zeroizeAs zeroizes payload only when it holds the variant T selected by
// the decoded discriminant.
func zeroizeAs[T Zeroizer](payload any) {
	if v, ok := payload.(T); ok {
		v.Zeroize()
	}
}

func record(structure string) {
	metrics.RecordZeroized(structure)
}
