package store

import (
	"context"
	"testing"
	"time"

	"github.com/sicko7947/hrflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every hrflow.Store must share.
// advance moves the backend clock forward.
func runStoreContract(t *testing.T, s hrflow.Store, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, hrflow.ErrKeyNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "workflow:w1", []byte(`{"a":1}`), 0))

		got, err := s.Get(ctx, "workflow:w1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))

		ok, err := s.Exists(ctx, "workflow:w1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "workflow:w2", []byte(`1`), 0))
		require.NoError(t, s.Set(ctx, "workflow:w2", []byte(`2`), 0))

		got, err := s.Get(ctx, "workflow:w2")
		require.NoError(t, err)
		assert.Equal(t, "2", string(got))
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "agent:heartbeat:a1", []byte(`"alive"`), 90*time.Second))

		_, err := s.Get(ctx, "agent:heartbeat:a1")
		require.NoError(t, err)

		advance(2 * time.Minute)

		_, err = s.Get(ctx, "agent:heartbeat:a1")
		assert.ErrorIs(t, err, hrflow.ErrKeyNotFound)

		ok, err := s.Exists(ctx, "agent:heartbeat:a1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "company:c1", []byte(`{}`), 0))
		require.NoError(t, s.Delete(ctx, "company:c1"))

		_, err := s.Get(ctx, "company:c1")
		assert.ErrorIs(t, err, hrflow.ErrKeyNotFound)

		// Deleting an absent key is not an error
		assert.NoError(t, s.Delete(ctx, "company:c1"))
	})

	t.Run("set membership", func(t *testing.T) {
		key := hrflow.HITLPendingKey("c1")

		members, err := s.Members(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, members)

		require.NoError(t, s.AddMember(ctx, key, "r2"))
		require.NoError(t, s.AddMember(ctx, key, "r1"))
		require.NoError(t, s.AddMember(ctx, key, "r1"))

		members, err = s.Members(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r2"}, members)

		ok, err := s.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.RemoveMember(ctx, key, "r1"))
		require.NoError(t, s.RemoveMember(ctx, key, "absent"))

		members, err = s.Members(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []string{"r2"}, members)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
