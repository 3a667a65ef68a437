package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/rollup/account"
)

func newKey(b byte) account.Key {
	var k account.Key
	k[0] = b

	return k
}

func TestNew_SeedsWellKnownAccounts(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()

	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	for _, key := range []account.Key{vm.LoaderProgramKey, vm.TokenProgramKey, vm.SystemProgramKey} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "well-known key %s must be seeded", key)
	}

	_, ok := cache.Get(account.Key{}) // not a well-known key
	assert.False(t, ok)
}

func TestCache_GetIsPureCacheRead(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	key := newKey(1)
	client.Seed(key, account.Snapshot{Lamports: 5})

	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	_, ok := cache.Get(key)
	assert.False(t, ok, "Get must not fall through to RPC on a cache miss")
}

func TestCache_FetchInstallsOnMiss(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	key := newKey(2)
	client.Seed(key, account.Snapshot{Lamports: 42})

	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	snap, err := cache.Fetch(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Lamports)

	cached, ok := cache.Get(key)
	require.True(t, ok, "Fetch must install the result into the cache")
	assert.Equal(t, uint64(42), cached.Lamports)
}

func TestCache_PutOverwrites(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	key := newKey(3)
	cache.Put(key, account.Snapshot{Lamports: 1})
	cache.Put(key, account.Snapshot{Lamports: 2})

	snap, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.Lamports)
}

func TestCache_OwnersContain_ReturnsOwnerIndex(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	owner := newKey(4)
	acct := newKey(5)
	cache.Put(acct, account.Snapshot{Owner: owner})

	candidates := []account.Key{newKey(1), newKey(2), owner}

	idx, ok := cache.OwnersContain(acct, candidates)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestCache_OwnersContain_AbsentWhenOwnerNotInList(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	acct := newKey(5)
	cache.Put(acct, account.Snapshot{Owner: newKey(4)})

	_, ok := cache.OwnersContain(acct, []account.Key{newKey(1), newKey(2)})
	assert.False(t, ok)
}

func TestCache_OwnersContain_AbsentWhenAccountUncached(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()
	cache, err := New(context.Background(), client)
	require.NoError(t, err)

	_, ok := cache.OwnersContain(newKey(9), []account.Key{newKey(1)})
	assert.False(t, ok)
}
