package playground

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGetExpire(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewStore(nil, testSettings(), 10*time.Minute)
	store.now = func() time.Time { return now }

	sess := store.Create()
	require.NotEmpty(t, sess.ID)

	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	now = now.Add(9 * time.Minute)
	_, ok = store.Get(sess.ID)
	require.True(t, ok, "access refreshes the idle timer")

	now = now.Add(11 * time.Minute)
	_, ok = store.Get(sess.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())

	_, ok = store.Get("unknown")
	assert.False(t, ok)
}

func TestStore_Sweep(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := NewStore(nil, testSettings(), time.Minute)
	store.now = func() time.Time { return now }

	stale := store.Create()
	now = now.Add(50 * time.Second)
	fresh := store.Create()
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, store.Sweep())
	_, ok := store.Get(stale.ID)
	assert.False(t, ok)
	_, ok = store.Get(fresh.ID)
	assert.True(t, ok)
}
