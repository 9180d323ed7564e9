package kvstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("otp:alice", []byte("123456"), time.Minute))

	got, err := store.Get("otp:alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("123456"), got)

	require.NoError(t, store.Delete("otp:alice"))
	_, err = store.Get("otp:alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntriesExpire(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("otp:bob", []byte("654321"), time.Second))
	time.Sleep(2100 * time.Millisecond)

	_, err := store.Get("otp:bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncr(t *testing.T) {
	store := newStore(t)

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr("login:alice", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, store.Delete("login:alice"))
	got, err := store.Incr("login:alice", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestIncrConcurrent(t *testing.T) {
	store := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Incr("login:carol", time.Hour)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	raw, err := store.Get("login:carol")
	require.NoError(t, err)
	assert.Len(t, raw, 8)
}
