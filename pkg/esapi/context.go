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

// Package esapi is a safety layer over a TPM 2.0 channel. A Context owns
// the channel, the three authorization session slots, the registry of every
// handle created through it and a cache of fixed TPM properties. Closing a
// Context flushes or closes every tracked handle before the channel itself
// is released, and every response structure that can carry secrets is
// handed back as a pkg/esapi/sensitive type so it can be scrubbed.
//
// A Context is not safe for concurrent use.
package esapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-esapi/pkg/correlation"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/handles"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/store"
	"github.com/jeremyhahn/go-esapi/pkg/esapi/tcti"
	"github.com/jeremyhahn/go-esapi/pkg/logging"
	"github.com/jeremyhahn/go-esapi/pkg/metrics"
)

type state uint8

const (
	stateOpen state = iota
	stateTearingDown
	stateClosed
)

// Context mediates every command sent to one TPM channel.
type Context struct {
	mu    sync.Mutex
	state state

	id          string
	tpm         transport.TPMCloser
	logger      *logging.Logger
	blobs       store.BlobStore
	sessionHash tpm2.TPMIAlgHash

	handles   *handles.Manager
	sessions  Sessions
	props     map[tpm2.TPMPT]uint32
	resources map[tpm2.TPMHandle]*resource
}

// Option configures a Context
type Option func(*Context)

// WithLogger sets the logger. The context id is attached to every record.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Context) { c.logger = logger }
}

// WithBlobStore enables the saved context helpers
func WithBlobStore(blobs store.BlobStore) Option {
	return func(c *Context) { c.blobs = blobs }
}

// WithInstanceID overrides the generated context id
func WithInstanceID(id string) Option {
	return func(c *Context) { c.id = id }
}

// WithSessionHash sets the digest used by sessions started without an
// explicit hash
func WithSessionHash(alg tpm2.TPMIAlgHash) Option {
	return func(c *Context) { c.sessionHash = alg }
}

// New takes ownership of an initialized channel. The channel is closed by
// Close, or immediately if New fails.
func New(t transport.TPMCloser, opts ...Option) (*Context, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParam)
	}
	c := &Context{
		tpm:         t,
		sessionHash: tpm2.TPMAlgSHA256,
		handles:     handles.NewManager(),
		props:       make(map[tpm2.TPMPT]uint32),
		resources:   make(map[tpm2.TPMHandle]*resource),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = correlation.NewID()
	}
	if c.logger == nil {
		c.logger = logging.DefaultLogger()
	}
	c.logger = c.logger.With("context_id", correlation.Short(c.id))
	c.logger.Debug("esapi: context opened")
	return c, nil
}

// Open validates cfg, opens the configured channel and returns a Context
// that owns it.
func Open(cfg *Config, opts ...Option) (*Context, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Debug)
	defaults := []Option{WithLogger(logger), WithSessionHash(cfg.HashAlg())}
	if cfg.BlobDir != "" {
		defaults = append(defaults, WithBlobStore(
			store.NewFileStore(logger, afero.NewOsFs(), cfg.BlobDir)))
	}

	t, err := tcti.Open(logger, cfg.Device, cfg.UseSimulator)
	if err != nil {
		return nil, err
	}
	return New(t, append(defaults, opts...)...)
}

// ID returns the context instance id
func (c *Context) ID() string {
	return c.id
}

// Transport returns the underlying channel. Commands sent directly on it
// bypass handle tracking.
func (c *Context) Transport() transport.TPM {
	return c.tpm
}

// Handles returns a snapshot of every tracked handle
func (c *Context) Handles() []handles.Entry {
	return c.handles.Entries()
}

func (c *Context) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateOpen {
		return ErrContextClosed
	}
	return nil
}

// run executes one native call, records its metrics and translates the
// error.
func (c *Context) run(command string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordCommand(command, time.Since(start).Seconds(), err)
	return translate(command, err)
}

// track registers a handle created by a command. A disposition conflict
// means the registry and the TPM disagree, which callers cannot recover
// from.
func (c *Context) track(h tpm2.TPMHandle, d handles.Disposition) error {
	if err := c.handles.AddHandle(h, d); err != nil {
		c.logger.Error(err, "handle", handleString(h))
		return err
	}
	c.logger.Debug("esapi: tracking handle", "handle", handleString(h), "disposition", d.String())
	return nil
}

func handleString(h tpm2.TPMHandle) string {
	return fmt.Sprintf("0x%08x", uint32(h))
}
