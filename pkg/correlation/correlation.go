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

// Package correlation issues identifiers that tie log records, metrics and
// saved artifacts to the TPM context that produced them.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// InstanceIDKey is the context key for storing a TPM context instance ID
const InstanceIDKey contextKey = "esapi-instance-id"

// WithID attaches an instance ID to ctx. A nil ctx is treated as
// context.Background().
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, InstanceIDKey, id)
}

// FromContext returns the instance ID stored in ctx, or an empty string.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(InstanceIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 instance ID.
func NewID() string {
	return uuid.New().String()
}

// GetOrGenerate returns the ID stored in ctx or a fresh one.
func GetOrGenerate(ctx context.Context) string {
	if id := FromContext(ctx); id != "" {
		return id
	}
	return NewID()
}

// Valid reports whether id parses as a UUID.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Short returns the first eight characters of id for compact log output.
func Short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
