package rpc

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// FakeClient is an in-memory Client used by tests and local development; it
// never talks to a real base chain. Accounts can be seeded with Seed.
type FakeClient struct {
	mu       sync.RWMutex
	accounts map[account.Key]account.Snapshot
	blockhash [32]byte

	// Submitted records every transaction handed to
	// SendAndConfirmTransaction, in order, for test assertions.
	Submitted []*tx.Transaction

	// FailNextSend, when > 0, makes the next N SendAndConfirmTransaction
	// calls return an error, decrementing by one per call.
	FailNextSend int
}

// NewFakeClient returns an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{accounts: make(map[account.Key]account.Snapshot)}
}

// Seed installs an account snapshot as if it had been read from the base
// chain.
func (f *FakeClient) Seed(key account.Key, snap account.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.accounts[key] = snap
}

func (f *FakeClient) GetAccount(_ context.Context, key account.Key) (account.Snapshot, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap, ok := f.accounts[key]

	return snap, ok, nil
}

func (f *FakeClient) GetLatestBlockhash(_ context.Context) ([32]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, _ = rand.Read(f.blockhash[:])

	return f.blockhash, nil
}

func (f *FakeClient) SendAndConfirmTransaction(_ context.Context, t *tx.Transaction) (Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNextSend > 0 {
		f.FailNextSend--
		return Signature{}, fmt.Errorf("rpc: fake send failure")
	}

	f.Submitted = append(f.Submitted, t)

	var sig Signature

	_, _ = rand.Read(sig[:])

	return sig, nil
}

func (f *FakeClient) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	return size * 1000, nil
}
