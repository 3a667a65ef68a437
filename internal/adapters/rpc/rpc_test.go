package rpc

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/apperr"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

type alwaysFailClient struct{}

func (alwaysFailClient) GetAccount(context.Context, account.Key) (account.Snapshot, bool, error) {
	return account.Snapshot{}, false, errors.New("down")
}

func (alwaysFailClient) GetLatestBlockhash(context.Context) ([32]byte, error) {
	return [32]byte{}, errors.New("down")
}

func (alwaysFailClient) SendAndConfirmTransaction(context.Context, *tx.Transaction) (Signature, error) {
	return Signature{}, errors.New("down")
}

func (alwaysFailClient) GetMinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 0, errors.New("down")
}

func TestBreakerClient_PassesThroughSuccess(t *testing.T) {
	t.Parallel()

	inner := NewFakeClient()
	key := account.Key{}
	inner.Seed(key, account.Snapshot{Lamports: 9})

	client := NewBreakerClient("test", inner)

	snap, ok, err := client.GetAccount(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), snap.Lamports)
}

func TestBreakerClient_WrapsFailureAsRPCUnavailable(t *testing.T) {
	t.Parallel()

	client := NewBreakerClient("test-fail", alwaysFailClient{})

	_, _, err := client.GetAccount(context.Background(), account.Key{})
	require.Error(t, err)
	assert.IsType(t, apperr.RPCUnavailableError{}, err)
}

func TestBreakerClient_TripsOpenAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	client := NewBreakerClient("test-trip", alwaysFailClient{})

	var lastErr error

	for i := 0; i < 10; i++ {
		_, lastErr = client.GetLatestBlockhash(context.Background())
	}

	require.Error(t, lastErr)
	assert.IsType(t, apperr.RPCUnavailableError{}, lastErr)
	assert.ErrorIs(t, lastErr, gobreaker.ErrOpenState, "the breaker must be open after ten consecutive failures")
}

func TestFakeClient_SeedAndGetAccount(t *testing.T) {
	t.Parallel()

	client := NewFakeClient()
	key := account.Key{}
	key[0] = 1

	client.Seed(key, account.Snapshot{Lamports: 42})

	snap, ok, err := client.GetAccount(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), snap.Lamports)
}

func TestFakeClient_FailNextSendDecrements(t *testing.T) {
	t.Parallel()

	client := NewFakeClient()
	client.FailNextSend = 1

	txn := &tx.Transaction{}

	_, err := client.SendAndConfirmTransaction(context.Background(), txn)
	assert.Error(t, err)

	_, err = client.SendAndConfirmTransaction(context.Background(), txn)
	require.NoError(t, err)
	assert.Len(t, client.Submitted, 1)
}
