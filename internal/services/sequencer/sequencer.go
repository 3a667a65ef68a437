// Package sequencer implements the Sequencer (spec.md §4.E): the
// orchestration loop driving each transaction through delegation
// admission, account locking, VM execution, commit, and periodic
// settlement.
package sequencer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/apperr"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
	"github.com/based-rollup/sequencer/internal/rollupctx"
	"github.com/based-rollup/sequencer/internal/services/bundler"
	"github.com/based-rollup/sequencer/internal/services/delegation"
	"github.com/based-rollup/sequencer/internal/services/loader"
	"github.com/based-rollup/sequencer/internal/services/rollupdb"
)

// defaultLockPollInterval is the bounded backoff between IsLocked polls
// (spec.md §4.E step 2: "implementation target: ~500 ms"), used when
// Config.LockPollInterval is unset.
const defaultLockPollInterval = 500 * time.Millisecond

// defaultSettlementThreshold is the number of committed transactions
// between settlement triggers (spec.md §4.E step 6: "current value: 10"),
// used when Config.SettlementThreshold is unset.
const defaultSettlementThreshold = 10

// defaultRequiredDelegationAmount is the fixed transaction-cost estimate
// used for delegation admission (spec.md §9 Open Question #1 — the
// source's fixed constant, now exposed as Config.RequiredDelegationAmount
// so deployments can override it; deriving it from the submitted
// transaction's declared transfer amount remains unresolved).
const defaultRequiredDelegationAmount = 1_000_000

// Publisher hands the settlement instruction vector off to whatever
// submits it to the base chain (spec.md §9 Open Question #3: the
// settlement helper is wired as a required piece of the implementation).
type Publisher interface {
	Publish(ctx context.Context, instructions []bundler.Instruction) error
}

// SubmitRequest is one transaction handed to the Sequencer's inbound
// channel by the HTTP ingress layer.
type SubmitRequest struct {
	Tx    *tx.Transaction
	Reply chan<- SubmitResult
}

// SubmitResult is the Sequencer's answer to a SubmitRequest. Err, when
// non-nil, is a rejection (MalformedTransaction, DelegationInsufficient),
// an RPCUnavailableError from waiting for or acquiring account locks, or
// a non-fatal VMExecutionError reported alongside a transaction that was
// still committed (spec.md §7).
type SubmitResult struct {
	Message string
	Err     error
}

// Sequencer is the orchestration loop of spec.md §4.E.
type Sequencer struct {
	logger     mlog.Logger
	store      *rollupdb.Store
	cache      *loader.Cache
	delegation *delegation.Service
	rpc        rpc.Client
	settlement Publisher

	requiredDelegationAmount uint64
	settlementThreshold      int
	lockPollInterval         time.Duration

	inbound chan SubmitRequest
	counter int
}

// Params configures the tunable values spec.md §9 Open Question #1 and
// §4.E leave as constants in the source but which Config now exposes as
// per-deployment overrides. A zero value in any field falls back to the
// source's fixed default.
type Params struct {
	RequiredDelegationAmount uint64
	SettlementThreshold      int
	LockPollInterval         time.Duration
}

// New constructs a Sequencer wired to its collaborators.
func New(logger mlog.Logger, store *rollupdb.Store, cache *loader.Cache, delegationSvc *delegation.Service, rpcClient rpc.Client, settlement Publisher, params Params) *Sequencer {
	requiredDelegationAmount := params.RequiredDelegationAmount
	if requiredDelegationAmount == 0 {
		requiredDelegationAmount = defaultRequiredDelegationAmount
	}

	settlementThreshold := params.SettlementThreshold
	if settlementThreshold == 0 {
		settlementThreshold = defaultSettlementThreshold
	}

	lockPollInterval := params.LockPollInterval
	if lockPollInterval == 0 {
		lockPollInterval = defaultLockPollInterval
	}

	return &Sequencer{
		logger:                   logger,
		store:                    store,
		cache:                    cache,
		delegation:               delegationSvc,
		rpc:                      rpcClient,
		settlement:               settlement,
		requiredDelegationAmount: requiredDelegationAmount,
		settlementThreshold:      settlementThreshold,
		lockPollInterval:         lockPollInterval,
		inbound:                  make(chan SubmitRequest, 256),
	}
}

// Submit hands t to the Sequencer and blocks for its result, matching the
// ingress-scope/sequencer-scope channel boundary of spec.md §5.
func (s *Sequencer) Submit(t *tx.Transaction) SubmitResult {
	reply := make(chan SubmitResult, 1)
	s.inbound <- SubmitRequest{Tx: t, Reply: reply}

	return <-reply
}

// Run is the Sequencer's single long-lived loop. It blocks until ctx is
// canceled.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.inbound:
			req.Reply <- s.process(ctx, req.Tx)
		}
	}
}

// process drives a single transaction through Received -> DelegationPending?
// -> AwaitingLock -> Executing -> Committed (spec.md §4.E "State machine").
func (s *Sequencer) process(ctx context.Context, t *tx.Transaction) SubmitResult {
	if err := tx.Sanitize(t); err != nil {
		return SubmitResult{Err: apperr.NewMalformed("sequencer: failed sanitization", err)}
	}

	payer, err := t.FeePayer()
	if err != nil {
		return SubmitResult{Err: apperr.NewMalformed("sequencer: cannot resolve fee payer", err)}
	}

	tracer := rollupctx.TracerFromContext(ctx)

	admitCtx, admitSpan := tracer.Start(ctx, "sequencer.admit_delegation")
	err = s.admitDelegation(admitCtx, payer)
	admitSpan.End()

	if err != nil {
		return SubmitResult{Err: err}
	}

	keys := t.Message.AccountKeys

	lockCtx, lockSpan := tracer.Start(ctx, "sequencer.wait_unlocked")
	err = s.waitUnlocked(lockCtx, keys)
	lockSpan.End()

	if err != nil {
		return SubmitResult{Err: err}
	}

	_, acquireSpan := tracer.Start(ctx, "sequencer.lock_acquire")
	lockResp := s.store.Lock(keys)
	acquireSpan.End()

	if lockResp.Err != nil {
		return SubmitResult{Err: apperr.NewRPCUnavailable("sequencer: lock acquisition", lockResp.Err)}
	}

	for i, key := range keys {
		s.cache.Put(key, lockResp.Snapshots[i])
	}

	_, execSpan := tracer.Start(ctx, "sequencer.vm_execute")
	result := vm.Execute(s.cache, t, vm.DefaultEnvironment())
	execSpan.End()

	_, commitSpan := tracer.Start(ctx, "sequencer.commit")
	commitErr := s.store.Commit(t, result.PostSnapshots)
	commitSpan.End()

	if commitErr != nil {
		s.logger.Errorf("sequencer: commit failed for tx %s: %v", t.Hash(), commitErr)
	}

	for key, snap := range result.PostSnapshots {
		s.cache.Put(key, snap)
	}

	settleCtx, settleSpan := tracer.Start(ctx, "sequencer.maybe_settle")
	s.maybeSettle(settleCtx)
	settleSpan.End()

	if result.Err != nil {
		return SubmitResult{Message: "committed with execution error", Err: result.Err}
	}

	return SubmitResult{Message: "Success"}
}

// admitDelegation implements spec.md §4.E step 1.
func (s *Sequencer) admitDelegation(ctx context.Context, payer account.Key) error {
	if _, ok := s.delegation.Verify(payer, s.requiredDelegationAmount); ok {
		return nil
	}

	depositTx, err := s.delegation.BuildDepositTx(ctx, payer, s.requiredDelegationAmount)
	if err != nil {
		return apperr.NewDelegationInsufficient("sequencer: cannot build deposit transaction", err)
	}

	// A failed deposit submission is retried with bounded backoff before
	// the transaction is rejected.
	send := func() error {
		_, err := s.rpc.SendAndConfirmTransaction(ctx, depositTx)
		return err
	}

	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(send, retry); err != nil {
		return apperr.NewDelegationInsufficient("sequencer: deposit submission failed", err)
	}

	if _, _, err := s.delegation.FetchEscrow(ctx, payer); err != nil {
		return apperr.NewDelegationInsufficient("sequencer: cannot refresh escrow after deposit", err)
	}

	if _, ok := s.delegation.Verify(payer, s.requiredDelegationAmount); !ok {
		return apperr.NewDelegationInsufficient("sequencer: escrow still insufficient after deposit", nil)
	}

	return nil
}

// waitUnlocked implements spec.md §4.E step 2's poll loop.
func (s *Sequencer) waitUnlocked(ctx context.Context, keys []account.Key) error {
	for _, key := range keys {
		b := backoff.WithContext(backoff.NewConstantBackOff(s.lockPollInterval), ctx)

		err := backoff.Retry(func() error {
			if s.store.IsLocked(key) {
				return errStillLocked
			}

			return nil
		}, b)
		if err != nil {
			return apperr.NewRPCUnavailable("sequencer: timed out waiting for lock", err)
		}
	}

	return nil
}

// maybeSettle implements spec.md §4.E step 6.
func (s *Sequencer) maybeSettle(ctx context.Context) {
	s.counter++

	if s.counter < s.settlementThreshold {
		return
	}

	s.counter = 0

	instructions, err := s.store.Bundle()
	if err != nil {
		s.logger.Errorf("sequencer: bundle failed: %v", err)
		return
	}

	if err := s.settlement.Publish(ctx, instructions); err != nil {
		s.logger.Errorf("sequencer: settlement publish failed: %v", err)
	}
}
