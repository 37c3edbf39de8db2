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

	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/sensitive"
)

// NVDefineSpace defines an NV index. Slot 1 authorizes auth, usually
// TPM_RH_OWNER. The index is tracked with the Close disposition and its
// name is returned.
func (c *Context) NVDefineSpace(auth tpm2.TPMHandle, authValue []byte, public tpm2.TPMSNVPublic) (tpm2.TPM2BName, error) {
	if err := c.checkOpen(); err != nil {
		return tpm2.TPM2BName{}, err
	}
	if handleType(public.NVIndex) != htNVIndex {
		return tpm2.TPM2BName{}, fmt.Errorf("%w: %s is not an NV index",
			ErrInvalidParam, handleString(public.NVIndex))
	}
	sess, err := c.requiredSession(1)
	if err != nil {
		return tpm2.TPM2BName{}, err
	}
	name, err := tpm2.NVName(&public)
	if err != nil {
		return tpm2.TPM2BName{}, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}

	err = c.run("NVDefineSpace", func() error {
		_, err := tpm2.NVDefineSpace{
			AuthHandle: tpm2.AuthHandle{
				Handle: auth,
				Name:   handleName(auth),
				Auth:   sess,
			},
			Auth:       tpm2.TPM2BAuth{Buffer: authValue},
			PublicInfo: tpm2.New2B(public),
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return tpm2.TPM2BName{}, err
	}

	if err := c.track(public.NVIndex, handles.Close); err != nil {
		return tpm2.TPM2BName{}, err
	}
	nvPublic := public
	nvPublic.AuthPolicy = tpm2.TPM2BDigest{Buffer: cloneName(public.AuthPolicy.Buffer).Buffer}
	c.addResource(public.NVIndex, &resource{
		name:     sensitive.TPM2BName{Buffer: cloneName(name.Buffer).Buffer},
		nvPublic: &nvPublic,
	})
	return *name, nil
}

// NVUndefineSpace deletes an NV index and stops tracking it. Slot 1
// authorizes auth.
func (c *Context) NVUndefineSpace(auth, nvIndex tpm2.TPMHandle) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	sess, err := c.requiredSession(1)
	if err != nil {
		return err
	}
	name, err := c.nameOf(nvIndex)
	if err != nil {
		return err
	}

	err = c.run("NVUndefineSpace", func() error {
		_, err := tpm2.NVUndefineSpace{
			AuthHandle: tpm2.AuthHandle{
				Handle: auth,
				Name:   handleName(auth),
				Auth:   sess,
			},
			NVIndex: tpm2.NamedHandle{Handle: nvIndex, Name: name},
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return err
	}
	c.closeHandle(nvIndex)
	return nil
}

// NVWrite writes data at offset. Slot 1 authorizes auth, which is the
// index itself or its owner hierarchy.
func (c *Context) NVWrite(auth, nvIndex tpm2.TPMHandle, data *sensitive.TPM2BMaxNVBuffer, offset uint16) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: nil data", ErrInvalidParam)
	}
	authHandle, index, err := c.nvHandles(auth, nvIndex)
	if err != nil {
		return err
	}

	err = c.run("NVWrite", func() error {
		_, err := tpm2.NVWrite{
			AuthHandle: authHandle,
			NVIndex:    index,
			Data:       tpm2.TPM2BMaxNVBuffer{Buffer: data.Buffer},
			Offset:     offset,
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
	}
	return err
}

// NVRead reads size bytes from offset. Slot 1 authorizes auth.
func (c *Context) NVRead(auth, nvIndex tpm2.TPMHandle, size, offset uint16) (*sensitive.TPM2BMaxNVBuffer, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	authHandle, index, err := c.nvHandles(auth, nvIndex)
	if err != nil {
		return nil, err
	}

	var rsp *tpm2.NVReadResponse
	err = c.run("NVRead", func() (err error) {
		rsp, err = tpm2.NVRead{
			AuthHandle: authHandle,
			NVIndex:    index,
			Size:       size,
			Offset:     offset,
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	out := &sensitive.TPM2BMaxNVBuffer{Buffer: take(&rsp.Data.Buffer)}
	if len(out.Buffer) != int(size) {
		out.Zeroize()
		return nil, fmt.Errorf("%w: NVRead returned %d bytes, want %d",
			ErrWrongValueFromTpm, len(out.Buffer), size)
	}
	return out, nil
}

func (c *Context) nvHandles(auth, nvIndex tpm2.TPMHandle) (tpm2.AuthHandle, tpm2.NamedHandle, error) {
	sess, err := c.requiredSession(1)
	if err != nil {
		return tpm2.AuthHandle{}, tpm2.NamedHandle{}, err
	}
	indexName, err := c.nameOf(nvIndex)
	if err != nil {
		return tpm2.AuthHandle{}, tpm2.NamedHandle{}, err
	}
	authName := indexName
	if auth != nvIndex {
		if authName, err = c.nameOf(auth); err != nil {
			return tpm2.AuthHandle{}, tpm2.NamedHandle{}, err
		}
	}
	return tpm2.AuthHandle{Handle: auth, Name: authName, Auth: sess},
		tpm2.NamedHandle{Handle: nvIndex, Name: indexName}, nil
}

// NVReadPublic returns the public area and name of an NV index
func (c *Context) NVReadPublic(nvIndex tpm2.TPMHandle) (*NVPublicResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var rsp *tpm2.NVReadPublicResponse
	err := c.run("NVReadPublic", func() (err error) {
		rsp, err = tpm2.NVReadPublic{NVIndex: nvIndex}.Execute(c.tpm, c.optionalSessions(1)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	public, err := rsp.NVPublic.Contents()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongValueFromTpm, err)
	}
	if public.NVIndex != nvIndex {
		return nil, fmt.Errorf("%w: NVReadPublic returned index %s",
			ErrWrongValueFromTpm, handleString(public.NVIndex))
	}
	return &NVPublicResult{NVPublic: *public, Name: takeName(&rsp.NVName)}, nil
}
