// Package rpc defines the base-chain RPC contract (spec.md §6) and a
// circuit-breaker-wrapped client, grounding the spec's RPCUnavailable
// error kind (spec.md §7) in a concrete reliability policy.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/based-rollup/sequencer/internal/apperr"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// Signature is an opaque base-chain transaction signature.
type Signature [64]byte

// Client is the base-chain RPC contract spec.md §6 depends on — the only
// four operations the rollup needs from the remote ledger.
type Client interface {
	GetAccount(ctx context.Context, key account.Key) (account.Snapshot, bool, error)
	GetLatestBlockhash(ctx context.Context) ([32]byte, error)
	SendAndConfirmTransaction(ctx context.Context, t *tx.Transaction) (Signature, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// BreakerClient wraps a Client with a circuit breaker so that a run of
// RPCUnavailable failures trips open instead of the caller hot-looping
// against a dead endpoint — the concrete shape of spec.md §7's "bounded
// retry, then reject" policy for the Sequencer's own RPC calls.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps inner with a circuit breaker named name.
func NewBreakerClient(name string, inner Client) *BreakerClient {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &BreakerClient{inner: inner, breaker: gobreaker.NewCircuitBreaker(st)}
}

func (c *BreakerClient) GetAccount(ctx context.Context, key account.Key) (account.Snapshot, bool, error) {
	type result struct {
		snap   account.Snapshot
		exists bool
	}

	r, err := c.breaker.Execute(func() (any, error) {
		snap, exists, err := c.inner.GetAccount(ctx, key)
		if err != nil {
			return nil, err
		}

		return result{snap: snap, exists: exists}, nil
	})
	if err != nil {
		return account.Snapshot{}, false, wrapUnavailable("get_account", err)
	}

	res := r.(result)

	return res.snap, res.exists, nil
}

func (c *BreakerClient) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	r, err := c.breaker.Execute(func() (any, error) {
		return c.inner.GetLatestBlockhash(ctx)
	})
	if err != nil {
		return [32]byte{}, wrapUnavailable("get_latest_blockhash", err)
	}

	return r.([32]byte), nil
}

func (c *BreakerClient) SendAndConfirmTransaction(ctx context.Context, t *tx.Transaction) (Signature, error) {
	r, err := c.breaker.Execute(func() (any, error) {
		return c.inner.SendAndConfirmTransaction(ctx, t)
	})
	if err != nil {
		return Signature{}, wrapUnavailable("send_and_confirm_transaction", err)
	}

	return r.(Signature), nil
}

func (c *BreakerClient) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	r, err := c.breaker.Execute(func() (any, error) {
		return c.inner.GetMinimumBalanceForRentExemption(ctx, size)
	})
	if err != nil {
		return 0, wrapUnavailable("get_minimum_balance_for_rent_exemption", err)
	}

	return r.(uint64), nil
}

func wrapUnavailable(op string, err error) error {
	return apperr.NewRPCUnavailable(fmt.Sprintf("rpc: %s unavailable", op), err)
}
