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

	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// propertyBatch is the number of properties requested per cache miss.
// Neighbouring fixed properties are usually read together.
const propertyBatch = 4

// GetTPMProperty returns a TPM_PT property value. Values are cached for the
// life of the context; a miss fetches propertyBatch properties starting at
// tag and caches all of them. ok is false when the TPM has no value for
// tag.
func (c *Context) GetTPMProperty(tag tpm2.TPMPT) (value uint32, ok bool, err error) {
	if err := c.checkOpen(); err != nil {
		return 0, false, err
	}
	if v, hit := c.props[tag]; hit {
		metrics.RecordPropertyLookup(true)
		return v, true, nil
	}
	metrics.RecordPropertyLookup(false)

	var props *tpm2.TPMLTaggedTPMProperty
	err = c.ExecuteWithoutSession(func(c *Context) error {
		rsp, err := c.GetCapability(tpm2.TPMCapTPMProperties, uint32(tag), propertyBatch)
		if err != nil {
			return err
		}
		props, err = rsp.CapabilityData.Data.TPMProperties()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrongValueFromTpm, err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	for _, p := range props.TPMProperty {
		if _, cached := c.props[p.Property]; !cached {
			c.props[p.Property] = p.Value
		}
	}
	value, ok = c.props[tag]
	return value, ok, nil
}

// GetCapability issues TPM2_GetCapability with the current slots as
// optional sessions.
func (c *Context) GetCapability(capability tpm2.TPMCap, property, count uint32) (*tpm2.GetCapabilityResponse, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	var rsp *tpm2.GetCapabilityResponse
	err := c.run("GetCapability", func() (err error) {
		rsp, err = tpm2.GetCapability{
			Capability:    capability,
			Property:      property,
			PropertyCount: count,
		}.Execute(c.tpm, c.optionalSessions(1)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

// GetHandles lists the handles of one range (transient, persistent, NV,
// sessions) starting at first.
func (c *Context) GetHandles(first tpm2.TPMHandle, count uint32) ([]tpm2.TPMHandle, error) {
	rsp, err := c.GetCapability(tpm2.TPMCapHandles, uint32(first), count)
	if err != nil {
		return nil, err
	}
	list, err := rsp.CapabilityData.Data.Handles()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongValueFromTpm, err)
	}
	return list.Handle, nil
}
