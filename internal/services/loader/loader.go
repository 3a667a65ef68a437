// Package loader implements the Account Loader/Cache (spec.md §4.A): a
// read-through cache in front of the base-chain RPC that the Sequencer
// consults before, and installs into after, every transaction execution.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/rollup/account"
)

// Cache is the in-memory account store the Sequencer reads from and
// writes to around each transaction's execution (spec.md §4.A:
// "get(key) -> Option<snapshot>", "put(key, snapshot)",
// "owners_contain(key, owners) -> Option<index>").
type Cache struct {
	mu       sync.RWMutex
	rpc      rpc.Client
	accounts map[account.Key]account.Snapshot
}

// New constructs a Cache seeded with three well-known program snapshots:
// the loader program and the token program spec.md §4.A requires at
// startup, plus the system program. A failure to fetch any of them is
// fatal — the Sequencer cannot run without a resolvable program owner set.
func New(ctx context.Context, client rpc.Client) (*Cache, error) {
	c := &Cache{rpc: client, accounts: make(map[account.Key]account.Snapshot)}

	for _, key := range []account.Key{vm.LoaderProgramKey, vm.TokenProgramKey, vm.SystemProgramKey} {
		snap, _, err := client.GetAccount(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("loader: seed well-known account %s: %w", key, err)
		}

		c.accounts[key] = snap
	}

	return c, nil
}

// Get implements vm.Loader: a pure cache lookup. A miss reports absence
// and never reaches the base-chain RPC; Fetch is the read-through form.
func (c *Cache) Get(key account.Key) (account.Snapshot, bool) {
	c.mu.RLock()
	snap, ok := c.accounts[key]
	c.mu.RUnlock()

	if ok {
		return snap, true
	}

	return account.Snapshot{}, false
}

// Fetch performs the same lookup as Get but falls through to the base
// chain RPC on a miss and installs the result into the cache, matching
// spec.md §4.A's read-through contract for cold accounts referenced by an
// incoming transaction.
func (c *Cache) Fetch(ctx context.Context, key account.Key) (account.Snapshot, error) {
	if snap, ok := c.Get(key); ok {
		return snap, nil
	}

	snap, exists, err := c.rpc.GetAccount(ctx, key)
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("loader: fetch %s: %w", key, err)
	}

	if !exists {
		snap = account.Snapshot{}
	}

	c.Put(key, snap)

	return snap, nil
}

// Put installs or overwrites an account snapshot in the cache — used by
// the Sequencer to commit post-execution state (spec.md §4.E step 6).
func (c *Cache) Put(key account.Key, snap account.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accounts[key] = snap.Clone()
}

// OwnersContain reports the position of key's account's owner within
// owners, or absence if the account is uncached or its owner does not
// appear in owners (spec.md §4.A: "owners_contain(key, owners) ->
// Option<index>"), used by the VM to validate that an account referenced
// as a token account is actually owned by the token program.
func (c *Cache) OwnersContain(key account.Key, owners []account.Key) (int, bool) {
	c.mu.RLock()
	snap, ok := c.accounts[key]
	c.mu.RUnlock()

	if !ok {
		return 0, false
	}

	for i, owner := range owners {
		if owner == snap.Owner {
			return i, true
		}
	}

	return 0, false
}

// WarmAll fetches every key not already cached, so the Sequencer can
// hydrate a transaction's full account set before execution in a single
// batch rather than one RPC round-trip per instruction.
func (c *Cache) WarmAll(ctx context.Context, keys []account.Key) error {
	for _, key := range keys {
		if _, err := c.Fetch(ctx, key); err != nil {
			return err
		}
	}

	return nil
}
