// Package rollupdb implements the State Store (spec.md §4.D): the single
// long-lived loop that owns the authoritative active/locked account maps
// and the transaction log, serving Lock/IsLocked/Commit/GetTx/Bundle over
// one inbound command channel (spec.md §9 Open Question #2: "any
// implementation must pick one [command shape] and document it" — this
// package implements exactly the five variants spec.md §4.D's table
// enumerates, no more).
package rollupdb

import (
	"context"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
	"github.com/based-rollup/sequencer/internal/services/bundler"
)

// LockRequest asks the store to move keys from active into locked,
// hydrating from RPC on a miss, and answers with one snapshot per key in
// request order (spec.md §4.D: Lock).
type LockRequest struct {
	Keys  []account.Key
	Reply chan<- LockResponse
}

// LockResponse carries the hydrated snapshots for a LockRequest. The
// store never sets Err: an RPC failure during hydration panics instead
// (see handleLock).
type LockResponse struct {
	Snapshots []account.Snapshot
	Err       error
}

// IsLockedRequest asks whether key is currently held in locked (spec.md
// §4.D: IsLocked).
type IsLockedRequest struct {
	Key   account.Key
	Reply chan<- bool
}

// CommitRequest releases every key in tx's account list from locked into
// active under its corresponding new snapshot, and appends tx to the log
// (spec.md §4.D: Commit).
type CommitRequest struct {
	Tx           *tx.Transaction
	NewSnapshots map[account.Key]account.Snapshot
	Done         chan<- error
}

// GetTxRequest looks the transaction up by hash in the log (spec.md §4.D:
// GetTx).
type GetTxRequest struct {
	Hash  tx.Hash
	Reply chan<- GetTxResponse
}

// GetTxResponse carries the looked-up transaction, or Found=false if
// hash isn't in the log.
type GetTxResponse struct {
	Tx    *tx.Transaction
	Found bool
}

// BundleRequest asks the store to run the Transfer Bundler over the
// entire log, clear it, and return the generated instruction vector
// (spec.md §4.D: Bundle).
type BundleRequest struct {
	Reply chan<- BundleResponse
}

// BundleResponse carries the settlement instruction vector produced by a
// Bundle command.
type BundleResponse struct {
	Instructions []bundler.Instruction
	Err          error
}

// Store is the State Store. It must only ever be driven from its own
// Run loop goroutine — every exported method sends a command and blocks
// for the reply, matching spec.md §5's "never holds a lock across an
// await; all shared mutation happens inside the loop".
type Store struct {
	logger mlog.Logger
	rpc    rpc.Client

	commands chan any

	active map[account.Key]account.Snapshot
	locked map[account.Key]account.Snapshot
	log    map[tx.Hash]*tx.Transaction
	order  []tx.Hash
}

// New constructs a Store. Call Run in its own goroutine before sending it
// any commands.
func New(logger mlog.Logger, client rpc.Client) *Store {
	return &Store{
		logger:   logger,
		rpc:      client,
		commands: make(chan any, 256),
		active:   make(map[account.Key]account.Snapshot),
		locked:   make(map[account.Key]account.Snapshot),
		log:      make(map[tx.Hash]*tx.Transaction),
	}
}

// Run is the State Store's single long-lived loop (spec.md §4.D, §5). It
// blocks until ctx is canceled.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.commands:
			s.handle(ctx, cmd)
		}
	}
}

func (s *Store) handle(ctx context.Context, cmd any) {
	switch c := cmd.(type) {
	case LockRequest:
		s.handleLock(ctx, c)
	case IsLockedRequest:
		_, locked := s.locked[c.Key]
		c.Reply <- locked
	case CommitRequest:
		c.Done <- s.handleCommit(c)
	case GetTxRequest:
		t, ok := s.log[c.Hash]
		c.Reply <- GetTxResponse{Tx: t, Found: ok}
	case BundleRequest:
		c.Reply <- s.handleBundle()
	default:
		s.logger.Errorf("rollupdb: unknown command type %T", cmd)
	}
}

// handleLock implements spec.md §4.D's Lock effect. An RPC failure here
// is fatal — per spec.md §7: "State Store: panic, since a missing
// account during lock cannot be reconciled".
func (s *Store) handleLock(ctx context.Context, req LockRequest) {
	snapshots := make([]account.Snapshot, len(req.Keys))

	for i, key := range req.Keys {
		if snap, ok := s.active[key]; ok {
			delete(s.active, key)
			s.locked[key] = snap
			snapshots[i] = snap

			continue
		}

		snap, exists, err := s.rpc.GetAccount(ctx, key)
		if err != nil {
			panic("rollupdb: RPC unavailable while locking account " + key.String() + ": " + err.Error())
		}

		if !exists {
			snap = account.Snapshot{}
		}

		s.locked[key] = snap
		snapshots[i] = snap
	}

	req.Reply <- LockResponse{Snapshots: snapshots}
}

func (s *Store) handleCommit(req CommitRequest) error {
	keys, err := accountKeys(req.Tx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if _, ok := s.locked[key]; !ok {
			return errNotLocked(key)
		}
	}

	for key, snap := range req.NewSnapshots {
		delete(s.locked, key)
		s.active[key] = snap
	}

	// Keys referenced by tx but absent from new_snapshots (a hard VM
	// failure restores the pre-hydrated snapshot unchanged) still move
	// from locked to active, preserving invariant I2.
	for _, key := range keys {
		if _, handled := req.NewSnapshots[key]; handled {
			continue
		}

		if snap, ok := s.locked[key]; ok {
			delete(s.locked, key)
			s.active[key] = snap
		}
	}

	h := req.Tx.Hash()
	if _, exists := s.log[h]; !exists {
		s.order = append(s.order, h)
	}

	s.log[h] = req.Tx

	return nil
}

func (s *Store) handleBundle() BundleResponse {
	ordered := make([]*tx.Transaction, 0, len(s.order))
	for _, h := range s.order {
		ordered = append(ordered, s.log[h])
	}

	instructions, err := bundler.Bundle(s.logger, ordered, cacheLoader{active: s.active})
	if err != nil {
		return BundleResponse{Err: err}
	}

	s.log = make(map[tx.Hash]*tx.Transaction)
	s.order = nil

	return BundleResponse{Instructions: instructions}
}

// cacheLoader adapts the Store's active map to bundler.Loader for asset
// resolution (spec.md §4.B: resolving a token Transfer's source mint).
type cacheLoader struct {
	active map[account.Key]account.Snapshot
}

func (c cacheLoader) Get(key account.Key) (account.Snapshot, bool) {
	snap, ok := c.active[key]
	return snap, ok
}

func accountKeys(t *tx.Transaction) ([]account.Key, error) {
	if t == nil {
		return nil, errNilTransaction
	}

	return t.Message.AccountKeys, nil
}

// send submits cmd onto the store's inbound channel. Per spec.md §7's
// general rule, a failed channel send is fatal for the caller's task.
func (s *Store) send(cmd any) {
	s.commands <- cmd
}

// Lock requests the store lock every key, blocking for the hydrated
// snapshots.
func (s *Store) Lock(keys []account.Key) LockResponse {
	reply := make(chan LockResponse, 1)
	s.send(LockRequest{Keys: keys, Reply: reply})

	return <-reply
}

// IsLocked reports whether key is currently held in locked.
func (s *Store) IsLocked(key account.Key) bool {
	reply := make(chan bool, 1)
	s.send(IsLockedRequest{Key: key, Reply: reply})

	return <-reply
}

// Commit releases tx's locked keys into active under newSnapshots and
// appends tx to the log.
func (s *Store) Commit(t *tx.Transaction, newSnapshots map[account.Key]account.Snapshot) error {
	done := make(chan error, 1)
	s.send(CommitRequest{Tx: t, NewSnapshots: newSnapshots, Done: done})

	return <-done
}

// GetTx looks a transaction up by hash.
func (s *Store) GetTx(hash tx.Hash) (*tx.Transaction, bool) {
	reply := make(chan GetTxResponse, 1)
	s.send(GetTxRequest{Hash: hash, Reply: reply})

	resp := <-reply

	return resp.Tx, resp.Found
}

// Bundle runs the Transfer Bundler across the entire log and clears it.
func (s *Store) Bundle() ([]bundler.Instruction, error) {
	reply := make(chan BundleResponse, 1)
	s.send(BundleRequest{Reply: reply})

	resp := <-reply

	return resp.Instructions, resp.Err
}
