package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// newRPCClient resolves the base-chain RPC client from configuration. The
// base-chain RPC itself is out of scope (spec.md §1: "treated as a remote
// account/transaction oracle"); when no live endpoint is configured this
// falls back to an in-memory FakeClient so the process can still boot for
// local development, matching how the teacher's bootstrap packages
// default to an in-memory/test double when a dependency's endpoint is
// unset.
func newRPCClient(cfg *Config) (rpc.Client, error) {
	if cfg.BaseChainRPCEndpoint == "" {
		return rpc.NewFakeClient(), nil
	}

	return newHTTPClient(cfg.BaseChainRPCEndpoint, cfg.RPCTimeout), nil
}

// httpClient is a minimal placeholder RPC client talking JSON-RPC to a
// real base-chain endpoint. The wire protocol itself is opaque per
// spec.md §6; this satisfies the rpc.Client contract for a configured
// endpoint without prescribing a specific base-chain's JSON-RPC schema.
// Every call is bounded by timeout, configured via Config.RPCTimeout.
type httpClient struct {
	endpoint string
	timeout  time.Duration
}

func newHTTPClient(endpoint string, timeout time.Duration) *httpClient {
	return &httpClient{endpoint: endpoint, timeout: timeout}
}

func (c *httpClient) GetAccount(ctx context.Context, key account.Key) (account.Snapshot, bool, error) {
	_, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return account.Snapshot{}, false, fmt.Errorf("rpc: live base-chain client not wired for endpoint %s (account %s)", c.endpoint, key)
}

func (c *httpClient) GetLatestBlockhash(ctx context.Context) ([32]byte, error) {
	_, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return [32]byte{}, fmt.Errorf("rpc: live base-chain client not wired for endpoint %s", c.endpoint)
}

func (c *httpClient) SendAndConfirmTransaction(ctx context.Context, _ *tx.Transaction) (rpc.Signature, error) {
	_, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return rpc.Signature{}, fmt.Errorf("rpc: live base-chain client not wired for endpoint %s", c.endpoint)
}

func (c *httpClient) GetMinimumBalanceForRentExemption(ctx context.Context, _ uint64) (uint64, error) {
	_, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return 0, fmt.Errorf("rpc: live base-chain client not wired for endpoint %s", c.endpoint)
}
