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
	"fmt"

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

// GetRandom returns n bytes from the TPM random number generator. The TPM
// may return fewer bytes than requested, so the command is repeated until
// n bytes have been collected. Every non-empty slot is passed along, which
// allows an encrypt session to protect the output.
func (c *Context) GetRandom(n uint16) (*sensitive.TPM2BDigest, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	out := &sensitive.TPM2BDigest{Buffer: make([]byte, 0, n)}
	for len(out.Buffer) < int(n) {
		var rsp *tpm2.GetRandomResponse
		err := c.run("GetRandom", func() (err error) {
			rsp, err = tpm2.GetRandom{
				BytesRequested: n - uint16(len(out.Buffer)),
			}.Execute(c.tpm, c.optionalSessions(1)...)
			return err
		})
		if err == nil && len(rsp.RandomBytes.Buffer) == 0 {
			err = fmt.Errorf("%w: GetRandom returned no bytes", ErrWrongValueFromTpm)
		}
		if err != nil {
			out.Zeroize()
			c.logger.Error(err)
			return nil, err
		}
		chunk := rsp.RandomBytes.Buffer
		if room := int(n) - len(out.Buffer); len(chunk) > room {
			chunk = chunk[:room]
		}
		out.Buffer = append(out.Buffer, chunk...)
		sensitive.Wipe(rsp.RandomBytes.Buffer)
	}
	return out, nil
}
