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

func sensitiveCreate(in *sensitive.TPM2BSensitiveCreate) tpm2.TPM2BSensitiveCreate {
	out := &tpm2.TPMSSensitiveCreate{}
	if in != nil {
		out.UserAuth = tpm2.TPM2BAuth{Buffer: in.Sensitive.UserAuth.Buffer}
		if len(in.Sensitive.Data.Buffer) > 0 {
			out.Data = tpm2.NewTPMUSensitiveCreate(
				&tpm2.TPM2BSensitiveData{Buffer: in.Sensitive.Data.Buffer})
		}
	}
	return tpm2.TPM2BSensitiveCreate{Sensitive: out}
}

func publicBlob(in *sensitive.TPM2BPublic) (tpm2.TPM2BPublic, []byte, error) {
	if in == nil {
		return tpm2.TPM2BPublic{}, nil, fmt.Errorf("%w: nil public area", ErrInvalidParam)
	}
	raw, err := in.PublicArea.Marshal()
	if err != nil {
		return tpm2.TPM2BPublic{}, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
	}
	return tpm2.BytesAs2B[tpm2.TPMTPublic](raw), raw, nil
}

// CreatePrimary creates a primary object under a hierarchy. Slot 1
// authorizes the hierarchy. The new object is tracked for flushing.
func (c *Context) CreatePrimary(
	primary tpm2.TPMHandle,
	in *sensitive.TPM2BSensitiveCreate,
	template tpm2.TPMTPublic) (*CreatePrimaryResult, error) {

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	auth, err := c.requiredSession(1)
	if err != nil {
		return nil, err
	}

	var rsp *tpm2.CreatePrimaryResponse
	err = c.run("CreatePrimary", func() (err error) {
		rsp, err = tpm2.CreatePrimary{
			PrimaryHandle: tpm2.AuthHandle{
				Handle: primary,
				Name:   handleName(primary),
				Auth:   auth,
			},
			InSensitive: sensitiveCreate(in),
			InPublic:    tpm2.New2B(template),
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	if err := c.track(rsp.ObjectHandle, handles.Flush); err != nil {
		return nil, err
	}

	result := &CreatePrimaryResult{
		ObjectHandle:   rsp.ObjectHandle,
		CreationHash:   takeDigest(&rsp.CreationHash),
		CreationTicket: takeTicket(&rsp.CreationTicket),
		Name:           takeName(&rsp.Name),
	}
	if result.OutPublic, err = takePublic(&rsp.OutPublic); err == nil {
		result.CreationData, err = takeCreationData(&rsp.CreationData)
	}
	if err != nil {
		result.Zeroize()
		return nil, err
	}
	c.addResource(result.ObjectHandle, &resource{name: cloneSensitiveName(result.Name)})
	return result, nil
}

// Create creates an ordinary object under a loaded parent. Slot 1
// authorizes the parent. Nothing is loaded so no handle is tracked.
func (c *Context) Create(
	parent tpm2.TPMHandle,
	in *sensitive.TPM2BSensitiveCreate,
	template tpm2.TPMTPublic) (*CreateResult, error) {

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	auth, err := c.requiredSession(1)
	if err != nil {
		return nil, err
	}
	name, err := c.nameOf(parent)
	if err != nil {
		return nil, err
	}

	var rsp *tpm2.CreateResponse
	err = c.run("Create", func() (err error) {
		rsp, err = tpm2.Create{
			ParentHandle: tpm2.AuthHandle{Handle: parent, Name: name, Auth: auth},
			InSensitive:  sensitiveCreate(in),
			InPublic:     tpm2.New2B(template),
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}

	result := &CreateResult{
		OutPrivate:     sensitive.TPM2BPrivate{Buffer: take(&rsp.OutPrivate.Buffer)},
		CreationHash:   takeDigest(&rsp.CreationHash),
		CreationTicket: takeTicket(&rsp.CreationTicket),
	}
	if result.OutPublic, err = takePublic(&rsp.OutPublic); err == nil {
		result.CreationData, err = takeCreationData(&rsp.CreationData)
	}
	if err != nil {
		result.Zeroize()
		return nil, err
	}
	return result, nil
}

// Load loads an object created by Create under its parent. Slot 1
// authorizes the parent.
func (c *Context) Load(
	parent tpm2.TPMHandle,
	inPrivate *sensitive.TPM2BPrivate,
	inPublic *sensitive.TPM2BPublic) (*LoadResult, error) {

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if inPrivate == nil {
		return nil, fmt.Errorf("%w: nil private area", ErrInvalidParam)
	}
	auth, err := c.requiredSession(1)
	if err != nil {
		return nil, err
	}
	name, err := c.nameOf(parent)
	if err != nil {
		return nil, err
	}
	pub, raw, err := publicBlob(inPublic)
	if err != nil {
		return nil, err
	}
	defer sensitive.Wipe(raw)

	var rsp *tpm2.LoadResponse
	err = c.run("Load", func() (err error) {
		rsp, err = tpm2.Load{
			ParentHandle: tpm2.AuthHandle{Handle: parent, Name: name, Auth: auth},
			InPrivate:    tpm2.TPM2BPrivate{Buffer: inPrivate.Buffer},
			InPublic:     pub,
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	return c.loaded(rsp.ObjectHandle, &rsp.Name)
}

// LoadExternal loads an object that is not protected by the TPM. inPrivate
// is optional; when given, its encoding is wiped once the command has been
// sent. Every non-empty slot is used as an audit or encryption session.
func (c *Context) LoadExternal(
	inPrivate *sensitive.TPMTSensitive,
	inPublic *sensitive.TPM2BPublic,
	hierarchy tpm2.TPMHandle) (*LoadResult, error) {

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	pub, raw, err := publicBlob(inPublic)
	if err != nil {
		return nil, err
	}
	defer sensitive.Wipe(raw)

	var priv tpm2.TPM2BSensitive
	if inPrivate != nil {
		secret, err := inPrivate.Marshal()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		defer sensitive.Wipe(secret)
		priv = tpm2.BytesAs2B[tpm2.TPMTSensitive](secret)
	}

	var rsp *tpm2.LoadExternalResponse
	err = c.run("LoadExternal", func() (err error) {
		rsp, err = tpm2.LoadExternal{
			InPrivate: priv,
			InPublic:  pub,
			Hierarchy: hierarchy,
		}.Execute(c.tpm, c.optionalSessions(1)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	return c.loaded(rsp.ObjectHandle, &rsp.Name)
}

func (c *Context) loaded(h tpm2.TPMHandle, name *tpm2.TPM2BName) (*LoadResult, error) {
	if err := c.track(h, handles.Flush); err != nil {
		return nil, err
	}
	result := &LoadResult{ObjectHandle: h, Name: takeName(name)}
	c.addResource(h, &resource{name: cloneSensitiveName(result.Name)})
	return result, nil
}

// ReadPublic returns the public area and names of a loaded object
func (c *Context) ReadPublic(h tpm2.TPMHandle) (*ReadPublicResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var rsp *tpm2.ReadPublicResponse
	err := c.run("ReadPublic", func() (err error) {
		rsp, err = tpm2.ReadPublic{ObjectHandle: h}.Execute(c.tpm, c.optionalSessions(1)...)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &ReadPublicResult{
		Name:          takeName(&rsp.Name),
		QualifiedName: takeName(&rsp.QualifiedName),
	}
	if result.OutPublic, err = takePublic(&rsp.OutPublic); err != nil {
		result.Zeroize()
		return nil, err
	}
	return result, nil
}

// Unseal returns the data sealed in a keyed hash object. Slot 1 authorizes
// the object. Use an encrypt session to keep the data off the wire in the
// clear.
func (c *Context) Unseal(item tpm2.TPMHandle) (*sensitive.TPM2BSensitiveData, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	auth, err := c.requiredSession(1)
	if err != nil {
		return nil, err
	}
	name, err := c.nameOf(item)
	if err != nil {
		return nil, err
	}

	var rsp *tpm2.UnsealResponse
	err = c.run("Unseal", func() (err error) {
		rsp, err = tpm2.Unseal{
			ItemHandle: tpm2.AuthHandle{Handle: item, Name: name, Auth: auth},
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return nil, err
	}
	return &sensitive.TPM2BSensitiveData{Buffer: take(&rsp.OutData.Buffer)}, nil
}

// EvictControl makes a transient object persistent at persistent, or
// evicts a persistent object when object is itself persistent. Slot 1
// authorizes auth. A new persistent handle is tracked with the Close
// disposition; an evicted one stops being tracked.
func (c *Context) EvictControl(auth, object, persistent tpm2.TPMHandle) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	sess, err := c.requiredSession(1)
	if err != nil {
		return err
	}
	name, err := c.nameOf(object)
	if err != nil {
		return err
	}

	err = c.run("EvictControl", func() error {
		_, err := tpm2.EvictControl{
			Auth: tpm2.AuthHandle{
				Handle: auth,
				Name:   handleName(auth),
				Auth:   sess,
			},
			ObjectHandle: &tpm2.NamedHandle{
				Handle: object,
				Name:   name,
			},
			PersistentHandle: persistent,
		}.Execute(c.tpm, c.optionalSessions(2)...)
		return err
	})
	if err != nil {
		c.logger.Error(err)
		return err
	}

	if handleType(object) == htPersistent {
		c.closeHandle(object)
		return nil
	}
	if err := c.track(persistent, handles.Close); err != nil {
		return err
	}
	c.addResource(persistent, &resource{name: sensitive.TPM2BName{Buffer: name.Buffer}})
	return nil
}

func cloneSensitiveName(n sensitive.TPM2BName) sensitive.TPM2BName {
	return sensitive.TPM2BName{Buffer: cloneName(n.Buffer).Buffer}
}
