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
	"fmt"

	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

// Close tears the context down. Every handle tracked for flushing is
// flushed, then every handle tracked for closing is closed, both in
// ascending handle order. A failed flush is logged, returned and the sweep
// continues. Handles still tracked after the sweep are reported as leaked
// with ErrHandlesLeaked. Cached resources, sessions and properties are then
// dropped and the channel is closed. Calling Close again returns nil.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return nil
	}
	c.state = stateTearingDown
	c.mu.Unlock()

	var errs []error
	for _, h := range c.handles.HandlesToFlush() {
		if err := c.flush(h); err != nil {
			c.logger.Error(err, "handle", handleString(h))
			errs = append(errs, err)
		}
	}
	for _, h := range c.handles.HandlesToClose() {
		c.closeHandle(h)
	}

	if leaked := c.handles.Entries(); len(leaked) > 0 {
		for _, e := range leaked {
			c.logger.Warn("esapi: handle leaked",
				"handle", handleString(e.Handle), "disposition", e.Disposition.String())
		}
		metrics.RecordHandlesLeaked(len(leaked))
		errs = append(errs, fmt.Errorf("%w: %d handle(s)", ErrHandlesLeaked, len(leaked)))
	}

	for h, r := range c.resources {
		r.Zeroize()
		delete(c.resources, h)
	}
	clear(c.props)
	c.sessions = Sessions{}

	if err := c.tpm.Close(); err != nil {
		c.logger.Error(err)
		errs = append(errs, fmt.Errorf("esapi: closing channel: %w", err))
	}

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()
	c.logger.Debug("esapi: context closed")
	return errors.Join(errs...)
}

// HasOpenHandles reports whether any handle is still tracked
func (c *Context) HasOpenHandles() bool {
	return c.handles.HasOpenHandles()
}
