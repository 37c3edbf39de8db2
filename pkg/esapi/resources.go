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
	"fmt"

	"github.com/google/go-tpm/tpm2"

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// Handle types, the most significant byte of a TPM handle.
const (
	htPCR           = 0x00
	htNVIndex       = 0x01
	htHMACSession   = 0x02
	htPolicySession = 0x03
	htPermanent     = 0x40
	htTransient     = 0x80
	htPersistent    = 0x81
)

func handleType(h tpm2.TPMHandle) uint8 {
	return uint8(h >> 24)
}

// resource is the local reference kept for a tracked object or NV index.
type resource struct {
	name     sensitive.TPM2BName
	public   *sensitive.TPM2BPublic
	nvPublic *tpm2.TPMSNVPublic
}

func (r *resource) Zeroize() {
	if r == nil {
		return
	}
	r.name.Zeroize()
	r.public.Zeroize()
	if r.nvPublic != nil {
		sensitive.Wipe(r.nvPublic.AuthPolicy.Buffer)
		*r.nvPublic = tpm2.TPMSNVPublic{}
		r.nvPublic = nil
	}
}

func (c *Context) addResource(h tpm2.TPMHandle, r *resource) {
	if old, ok := c.resources[h]; ok {
		old.Zeroize()
	}
	c.resources[h] = r
}

func (c *Context) dropResource(h tpm2.TPMHandle) {
	if r, ok := c.resources[h]; ok {
		r.Zeroize()
		delete(c.resources, h)
	}
}

func cloneName(b []byte) tpm2.TPM2BName {
	return tpm2.TPM2BName{Buffer: bytes.Clone(b)}
}

// handleName is the name of a handle whose name is its own value: PCRs,
// sessions and permanent handles.
func handleName(h tpm2.TPMHandle) tpm2.TPM2BName {
	return tpm2.TPM2BName{Buffer: binary.BigEndian.AppendUint32(nil, uint32(h))}
}

// nameOf returns the name used to authorize h. Tracked objects and NV
// indices answer from the resource table; untracked transient objects are
// read from the TPM.
func (c *Context) nameOf(h tpm2.TPMHandle) (tpm2.TPM2BName, error) {
	if r, ok := c.resources[h]; ok {
		return cloneName(r.name.Buffer), nil
	}
	switch handleType(h) {
	case htPCR, htHMACSession, htPolicySession, htPermanent:
		return handleName(h), nil
	case htTransient:
		pub, err := c.ReadPublic(h)
		if err != nil {
			return tpm2.TPM2BName{}, err
		}
		defer pub.Zeroize()
		name := cloneName(pub.Name.Buffer)
		if c.handles.Contains(h) {
			c.addResource(h, &resource{name: sensitive.TPM2BName{Buffer: bytes.Clone(name.Buffer)}})
		}
		return name, nil
	}
	return tpm2.TPM2BName{}, fmt.Errorf("%w: %s has no resource entry, call TrFromTPMPublic first",
		ErrInvalidHandle, handleString(h))
}

// TrFromTPMPublic creates the local reference for a persistent object or
// NV index: its public area is read, its name cached and the handle is
// tracked with the Close disposition.
func (c *Context) TrFromTPMPublic(h tpm2.TPMHandle) (tpm2.TPM2BName, error) {
	if err := c.checkOpen(); err != nil {
		return tpm2.TPM2BName{}, err
	}
	if r, ok := c.resources[h]; ok && c.handles.Contains(h) {
		return cloneName(r.name.Buffer), nil
	}

	r := &resource{}
	switch handleType(h) {
	case htPersistent:
		pub, err := c.ReadPublic(h)
		if err != nil {
			return tpm2.TPM2BName{}, err
		}
		pub.QualifiedName.Zeroize()
		r.name, r.public = pub.Name, pub.OutPublic
	case htNVIndex:
		nv, err := c.NVReadPublic(h)
		if err != nil {
			return tpm2.TPM2BName{}, err
		}
		r.name, r.nvPublic = nv.Name, &nv.NVPublic
	default:
		return tpm2.TPM2BName{}, fmt.Errorf("%w: %s is not a persistent object or NV index",
			ErrInvalidHandle, handleString(h))
	}

	if err := c.track(h, handles.Close); err != nil {
		r.Zeroize()
		return tpm2.TPM2BName{}, err
	}
	c.addResource(h, r)
	return cloneName(r.name.Buffer), nil
}

// TrGetName returns the name of a handle
func (c *Context) TrGetName(h tpm2.TPMHandle) (tpm2.TPM2BName, error) {
	if err := c.checkOpen(); err != nil {
		return tpm2.TPM2BName{}, err
	}
	return c.nameOf(h)
}

// TrClose releases the local reference to a persistent object or NV index.
// The TPM resource is left in place.
func (c *Context) TrClose(h tpm2.TPMHandle) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	d, ok := c.handles.Disposition(h)
	if !ok || d != handles.Close {
		return fmt.Errorf("%w: %s is not tracked for close", ErrInvalidHandle, handleString(h))
	}
	c.closeHandle(h)
	return nil
}

// closeHandle is the Close disposition release. It never talks to the TPM.
func (c *Context) closeHandle(h tpm2.TPMHandle) {
	c.dropResource(h)
	if !c.handles.Contains(h) {
		return
	}
	c.handles.RemoveHandle(h)
	metrics.RecordHandleReleased(handles.Close.String(), nil)
	c.logger.Debug("esapi: closed handle", "handle", handleString(h))
}
