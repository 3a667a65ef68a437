// Package delegation implements the Delegation Service (spec.md §4.C):
// the off-chain custodian of escrow records deciding whether a submitted
// transaction is backed by sufficient delegated balance, and the builder
// of escrow-management transactions.
package delegation

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/apperr"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/escrow"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// Signer holds the signing material registered for one user (spec.md
// §4.C: "a map user_key -> signing_material").
type Signer struct {
	PublicKey  account.Key
	PrivateKey ed25519.PrivateKey
}

// Service is the Delegation Service: an RPC handle, an escrow cache, and
// the registered signer map, guarded by a single read-write lock per
// spec.md §5's "reader-writer discipline... writes are rare".
type Service struct {
	mu         sync.RWMutex
	rpc        rpc.Client
	escrows    map[account.Key]escrow.Record
	signers    map[account.Key]Signer
	programKey account.Key
}

// New constructs an empty Delegation Service bound to client, using
// escrow.ProgramKey as the escrow program address. Use NewWithProgramKey
// to override it (spec.md §6's "fixed program key", now configurable via
// Config.EscrowProgramKey).
func New(client rpc.Client) *Service {
	return NewWithProgramKey(client, escrow.ProgramKey)
}

// NewWithProgramKey constructs a Delegation Service whose escrow PDAs are
// derived against programKey instead of the package default.
func NewWithProgramKey(client rpc.Client, programKey account.Key) *Service {
	return &Service{
		rpc:        client,
		escrows:    make(map[account.Key]escrow.Record),
		signers:    make(map[account.Key]Signer),
		programKey: programKey,
	}
}

// DeriveEscrow returns the deterministic escrow PDA for user (spec.md
// §4.C: derive_escrow, D1).
func (s *Service) DeriveEscrow(user account.Key) (account.Key, uint8) {
	return escrow.DeriveEscrow(user, s.programKey)
}

// FetchEscrow RPC-reads the derived escrow address for user, populating
// or evicting the local cache (spec.md §4.C: fetch_escrow).
func (s *Service) FetchEscrow(ctx context.Context, user account.Key) (escrow.Record, bool, error) {
	escrowKey, _ := s.DeriveEscrow(user)

	snap, exists, err := s.rpc.GetAccount(ctx, escrowKey)
	if err != nil {
		s.evict(user)
		return escrow.Record{}, false, fmt.Errorf("delegation: fetch escrow for %s: %w", user, err)
	}

	if !exists || len(snap.Data) <= 8 {
		s.evict(user)
		return escrow.Record{}, false, nil
	}

	rec, err := escrow.DecodeRecord(snap.Data)
	if err != nil {
		s.evict(user)
		return escrow.Record{}, false, fmt.Errorf("delegation: decode escrow for %s: %w", user, err)
	}

	s.mu.Lock()
	s.escrows[user] = rec
	s.mu.Unlock()

	return rec, true, nil
}

func (s *Service) evict(user account.Key) {
	s.mu.Lock()
	delete(s.escrows, user)
	s.mu.Unlock()
}

func (s *Service) cached(user account.Key) (escrow.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.escrows[user]

	return rec, ok
}

// Verify returns the escrow key iff an escrow exists for user with
// delegated_amount >= required (spec.md §4.C: verify, D2).
func (s *Service) Verify(user account.Key, required uint64) (account.Key, bool) {
	rec, ok := s.cached(user)
	if !ok || rec.DelegatedAmount < required {
		return account.Key{}, false
	}

	escrowKey, _ := s.DeriveEscrow(user)

	return escrowKey, true
}

// RegisterSigner adds or replaces the signer for the derived owner key
// (spec.md §4.C: register_signer).
func (s *Service) RegisterSigner(signer Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signers[signer.PublicKey] = signer
}

func (s *Service) signerFor(user account.Key) (Signer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	signer, ok := s.signers[user]

	return signer, ok
}

// BuildDepositTx builds an initialize_delegate(amount) instruction if
// user has no escrow yet, or a top_up(amount) instruction if one already
// exists (spec.md §4.C: build_deposit_tx, D3).
func (s *Service) BuildDepositTx(ctx context.Context, user account.Key, amount uint64) (*tx.Transaction, error) {
	signer, ok := s.signerFor(user)
	if !ok {
		return nil, apperr.NoSignerRegisteredError{User: user.String()}
	}

	escrowKey, bump := s.DeriveEscrow(user)
	_ = bump

	method := escrow.MethodInitializeDelegate
	if _, exists := s.cached(user); exists {
		method = escrow.MethodTopUp
	}

	data := escrow.EncodeAmountInstruction(method, amount)
	accounts := escrow.InitializeOrTopUpAccounts(user, escrowKey, vm.SystemProgramKey)

	return s.buildTransaction(ctx, signer, accounts, data)
}

// BuildWithdrawTx builds a withdraw(amount) instruction signed by owner
// (spec.md §4.C: build_withdraw_tx).
func (s *Service) BuildWithdrawTx(ctx context.Context, owner, escrowKey account.Key, amount uint64) (*tx.Transaction, error) {
	signer, ok := s.signerFor(owner)
	if !ok {
		return nil, apperr.NoSignerRegisteredError{User: owner.String()}
	}

	data := escrow.EncodeAmountInstruction(escrow.MethodWithdraw, amount)
	accounts := escrow.WithdrawAccounts(owner, escrowKey, vm.SystemProgramKey)

	return s.buildTransaction(ctx, signer, accounts, data)
}

func (s *Service) buildTransaction(ctx context.Context, signer Signer, accounts []escrow.AccountMeta, data []byte) (*tx.Transaction, error) {
	blockhash, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, apperr.NewRPCUnavailable("delegation: fetch recent blockhash", err)
	}

	keys := make([]account.Key, len(accounts)+1)
	for i, a := range accounts {
		keys[i] = a.Key
	}

	programIndex := uint8(len(accounts))
	keys[programIndex] = s.programKey

	accountIndexes := make([]uint8, len(accounts))
	for i := range accounts {
		accountIndexes[i] = uint8(i)
	}

	message := tx.Message{
		AccountKeys:     keys,
		RecentBlockhash: blockhash,
		Instructions: []tx.CompiledInstruction{
			{ProgramIDIndex: programIndex, AccountIndexes: accountIndexes, Data: data},
		},
	}

	built := &tx.Transaction{Message: message}

	sig := ed25519.Sign(signer.PrivateKey, message.Serialize())

	var sigArray [64]byte

	copy(sigArray[:], sig)
	built.Signatures = append(built.Signatures, sigArray)

	return built, nil
}
