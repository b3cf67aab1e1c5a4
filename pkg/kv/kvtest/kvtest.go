// Package kvtest holds the behavior every kv.Backend must share.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-builder/pkg/kv"
)

// Run exercises a fresh backend returned by open per subtest.
func Run(t *testing.T, open func(t *testing.T) kv.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		b := open(t)
		_, ok, err := b.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put bumps version", func(t *testing.T) {
		b := open(t)
		v1, err := b.Put(ctx, "k", []byte(`[1]`), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v1)

		v2, err := b.Put(ctx, "k", []byte(`[1,2]`), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), v2)

		rec, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `[1,2]`, string(rec.Value))
		assert.Equal(t, int64(2), rec.Version)
	})

	t.Run("compare and swap", func(t *testing.T) {
		b := open(t)
		_, err := b.Put(ctx, "k", []byte(`{}`), 1)
		require.ErrorIs(t, err, kv.ErrVersionMismatch)

		v, err := b.Put(ctx, "k", []byte(`{}`), 0)
		require.NoError(t, err)
		_, err = b.Put(ctx, "k", []byte(`{"a":1}`), v+1)
		require.ErrorIs(t, err, kv.ErrVersionMismatch)

		next, err := b.Put(ctx, "k", []byte(`{"a":2}`), v)
		require.NoError(t, err)
		assert.Equal(t, v+1, next)
	})

	t.Run("stale writer loses", func(t *testing.T) {
		b := open(t)
		v, err := b.Put(ctx, "k", []byte(`[]`), 0)
		require.NoError(t, err)
		_, err = b.Put(ctx, "k", []byte(`["first"]`), v)
		require.NoError(t, err)
		_, err = b.Put(ctx, "k", []byte(`["second"]`), v)
		require.ErrorIs(t, err, kv.ErrVersionMismatch)

		rec, _, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.JSONEq(t, `["first"]`, string(rec.Value))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		b := open(t)
		_, err := b.Put(ctx, "k", []byte(`"x"`), 0)
		require.NoError(t, err)
		require.NoError(t, b.Delete(ctx, "k"))
		require.NoError(t, b.Delete(ctx, "k"))
		_, ok, err := b.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
