// Package vm is the embedded virtual machine the Sequencer invokes to
// execute a single sanitized transaction. spec.md §1 treats it as a pure
// function `(accounts_snapshot, transaction) -> (result, new_accounts_snapshot)`
// and explicitly out of scope for this specification; this package
// supplies a small deterministic reference implementation recognizing
// exactly the instruction shapes spec.md §4.B's bundler also understands
// (system transfer, token Transfer, token TransferChecked), so that the
// rest of the rollup has something concrete to drive end to end.
package vm

import (
	"encoding/binary"

	"github.com/based-rollup/sequencer/internal/apperr"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// Loader is the read-through callback the VM uses to resolve accounts
// during execution (spec.md §4.A: get(key) -> Option<snapshot>,
// owners_contain(key, owners) -> Option<index>).
type Loader interface {
	Get(key account.Key) (account.Snapshot, bool)
	OwnersContain(key account.Key, owners []account.Key) (int, bool)
}

// Environment bundles the per-transaction execution context spec.md §4.E.4
// names: "fresh fee structure with lamports_per_signature = 0, default
// compute budget, all-features-enabled feature set, mocked fork graph,
// default rent collector, zeroed block hash".
type Environment struct {
	LamportsPerSignature uint64
	ComputeBudget        uint64
	BlockHash            [32]byte
}

// DefaultEnvironment returns the environment spec.md §4.E.4 describes for
// every transaction execution.
func DefaultEnvironment() Environment {
	return Environment{
		LamportsPerSignature: 0,
		ComputeBudget:        1_400_000,
	}
}

// Result is the outcome of executing one transaction.
type Result struct {
	Err           error
	PostSnapshots map[account.Key]account.Snapshot
}

// Execute runs t against the accounts resolvable through loader and
// returns the post-execution snapshots for every account t references.
// It always returns a PostSnapshots map — on failure, populated with the
// pre-execution snapshots unchanged, matching spec.md §4.E's "on hard
// failure... restores the pre-hydrated snapshots" rule.
func Execute(loader Loader, t *tx.Transaction, _ Environment) Result {
	pre := make(map[account.Key]account.Snapshot, len(t.Message.AccountKeys))

	for _, key := range t.Message.AccountKeys {
		if snap, ok := loader.Get(key); ok {
			pre[key] = snap.Clone()
		} else {
			pre[key] = account.Snapshot{}
		}
	}

	post := cloneAll(pre)

	for i, ix := range t.Message.Instructions {
		programKey, err := t.ResolveAccount(ix.ProgramIDIndex)
		if err != nil {
			return Result{Err: apperr.NewVMExecution("vm: bad program index", err), PostSnapshots: pre}
		}

		switch programKey {
		case SystemProgramKey:
			if err := execSystemTransfer(t, ix, post); err != nil {
				return Result{Err: apperr.NewVMExecution("vm: instruction failed", err), PostSnapshots: pre}
			}
		case TokenProgramKey:
			if err := execTokenInstruction(loader, t, ix, post); err != nil {
				return Result{Err: apperr.NewVMExecution("vm: instruction failed", err), PostSnapshots: pre}
			}
		default:
			// Unknown/non-transfer program instructions (e.g. create_account)
			// are accepted and have no modeled balance effect — spec.md §8
			// scenario 4 requires these to commit normally.
			_ = i
		}
	}

	return Result{PostSnapshots: post}
}

func cloneAll(m map[account.Key]account.Snapshot) map[account.Key]account.Snapshot {
	out := make(map[account.Key]account.Snapshot, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}

	return out
}

func execSystemTransfer(t *tx.Transaction, ix tx.CompiledInstruction, post map[account.Key]account.Snapshot) error {
	if len(ix.AccountIndexes) < 2 || len(ix.Data) < 12 {
		return nil
	}

	from, err := t.ResolveAccount(ix.AccountIndexes[0])
	if err != nil {
		return err
	}

	to, err := t.ResolveAccount(ix.AccountIndexes[1])
	if err != nil {
		return err
	}

	amount := binary.LittleEndian.Uint64(ix.Data[4:12])

	fromSnap := post[from]
	if fromSnap.Lamports < amount {
		return errInsufficientFunds
	}

	fromSnap.Lamports -= amount
	post[from] = fromSnap

	toSnap := post[to]
	toSnap.Lamports += amount
	post[to] = toSnap

	return nil
}

func execTokenInstruction(loader Loader, t *tx.Transaction, ix tx.CompiledInstruction, post map[account.Key]account.Snapshot) error {
	if len(ix.Data) < 1 {
		return nil
	}

	opcode := ix.Data[0]

	switch opcode {
	case 3: // Transfer
		if len(ix.AccountIndexes) < 2 || len(ix.Data) < 9 {
			return nil
		}

		src, err := t.ResolveAccount(ix.AccountIndexes[0])
		if err != nil {
			return err
		}

		dst, err := t.ResolveAccount(ix.AccountIndexes[1])
		if err != nil {
			return err
		}

		if _, ok := loader.OwnersContain(src, []account.Key{TokenProgramKey}); !ok {
			return errNotATokenAccount
		}

		amount := binary.LittleEndian.Uint64(ix.Data[1:9])

		return moveTokenBalance(post, src, dst, amount)
	case 12: // TransferChecked
		if len(ix.AccountIndexes) < 3 || len(ix.Data) < 9 {
			return nil
		}

		src, err := t.ResolveAccount(ix.AccountIndexes[0])
		if err != nil {
			return err
		}

		dst, err := t.ResolveAccount(ix.AccountIndexes[2])
		if err != nil {
			return err
		}

		if _, ok := loader.OwnersContain(src, []account.Key{TokenProgramKey}); !ok {
			return errNotATokenAccount
		}

		amount := binary.LittleEndian.Uint64(ix.Data[1:9])

		return moveTokenBalance(post, src, dst, amount)
	default:
		return nil
	}
}

func moveTokenBalance(post map[account.Key]account.Snapshot, src, dst account.Key, amount uint64) error {
	srcSnap := post[src]
	if len(srcSnap.Data) < TokenAccountSize {
		return errMalformedTokenAccount
	}

	srcBal := binary.LittleEndian.Uint64(srcSnap.Data[tokenAmountOffset : tokenAmountOffset+8])
	if srcBal < amount {
		return errInsufficientFunds
	}

	srcData := append([]byte(nil), srcSnap.Data...)
	binary.LittleEndian.PutUint64(srcData[tokenAmountOffset:tokenAmountOffset+8], srcBal-amount)
	srcSnap.Data = srcData
	post[src] = srcSnap

	dstSnap := post[dst]
	if len(dstSnap.Data) < TokenAccountSize {
		dstSnap.Data = make([]byte, TokenAccountSize)
		copy(dstSnap.Data[tokenMintOffset:tokenMintOffset+32], srcData[tokenMintOffset:tokenMintOffset+32])
	}

	dstData := append([]byte(nil), dstSnap.Data...)
	dstBal := binary.LittleEndian.Uint64(dstData[tokenAmountOffset : tokenAmountOffset+8])
	binary.LittleEndian.PutUint64(dstData[tokenAmountOffset:tokenAmountOffset+8], dstBal+amount)
	dstSnap.Data = dstData
	post[dst] = dstSnap

	return nil
}
