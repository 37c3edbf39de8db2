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
	"fmt"

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

// ContextSave saves the context of a transient object or session and
// returns its marshalled TPMS_CONTEXT. Saving a session does not end its
// tracking.
func (c *Context) ContextSave(h tpm2.TPMHandle) ([]byte, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var rsp *tpm2.ContextSaveResponse
	err := c.run("ContextSave", func() (err error) {
		rsp, err = tpm2.ContextSave{SaveHandle: h}.Execute(c.tpm)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	blob := tpm2.Marshal(rsp.Context)
	sensitive.Wipe(rsp.Context.ContextBlob.Buffer)
	return blob, nil
}

// ContextLoad loads a context returned by ContextSave and tracks the new
// handle for flushing.
func (c *Context) ContextLoad(blob []byte) (tpm2.TPMHandle, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	saved, err := tpm2.Unmarshal[tpm2.TPMSContext](bytes.Clone(blob))
	if err != nil {
		return 0, fmt.Errorf("%w: saved context: %v", ErrInvalidParam, err)
	}

	var rsp *tpm2.ContextLoadResponse
	err = c.run("ContextLoad", func() (err error) {
		rsp, err = tpm2.ContextLoad{Context: *saved}.Execute(c.tpm)
		return err
	})
	sensitive.Wipe(saved.ContextBlob.Buffer)
	if err != nil {
		c.logger.Error(err)
		return 0, err
	}
	h := rsp.LoadedHandle
	if err := c.track(h, handles.Flush); err != nil {
		return 0, err
	}
	return h, nil
}

// SaveContextBlob saves the context of h to the blob store under name
func (c *Context) SaveContextBlob(h tpm2.TPMHandle, name string, overwrite bool) error {
	if c.blobs == nil {
		return ErrNoBlobStore
	}
	blob, err := c.ContextSave(h)
	if err != nil {
		return err
	}
	defer sensitive.Wipe(blob)
	if err := c.blobs.Save(name, blob, overwrite); err != nil {
		c.logger.Error(err)
		return err
	}
	return nil
}

// LoadContextBlob loads the context saved under name
func (c *Context) LoadContextBlob(name string) (tpm2.TPMHandle, error) {
	if c.blobs == nil {
		return 0, ErrNoBlobStore
	}
	blob, err := c.blobs.Get(name)
	if err != nil {
		c.logger.Error(err)
		return 0, err
	}
	defer sensitive.Wipe(blob)
	return c.ContextLoad(blob)
}
