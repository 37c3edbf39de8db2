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

package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "background context", ctx: context.Background(), id: "instance-1"},
		{name: "nil context", ctx: nil, id: "instance-2"},
		{name: "empty id", ctx: context.Background(), id: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithID(tt.ctx, tt.id)
			assert.NotNil(t, ctx)
			assert.Equal(t, tt.id, FromContext(ctx))
		})
	}
}

func TestFromContextMissing(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Empty(t, FromContext(nil))
}

func TestGetOrGenerate(t *testing.T) {
	ctx := WithID(context.Background(), "existing")
	assert.Equal(t, "existing", GetOrGenerate(ctx))

	generated := GetOrGenerate(context.Background())
	assert.True(t, Valid(generated))
	assert.NotEqual(t, generated, GetOrGenerate(context.Background()))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "01234567", Short("0123456789"))
	assert.False(t, Valid("not-a-uuid"))
}
