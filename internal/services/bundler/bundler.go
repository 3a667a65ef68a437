// Package bundler implements the Transfer Bundler (spec.md §4.B): it
// collapses the State Store's transaction log into the smallest
// equivalent set of token-transfer instructions that reproduces the same
// net balance change per participant-pair-per-asset.
package bundler

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// nativeAsset is the sentinel asset key for a plain lamport transfer
// (spec.md §4.B: "asset = 'native' sentinel").
var nativeAsset = account.Key{}

// key is the canonical TransferBundlerKey (spec.md §3): a sorted pair
// plus an asset, so that (A,B) and (B,A) collide.
type key struct {
	pair  [2]account.Key
	asset account.Key
}

// Loader resolves a token account's mint, needed to determine a token
// Transfer (opcode 3) instruction's asset (spec.md §4.B).
type Loader interface {
	Get(k account.Key) (account.Snapshot, bool)
}

// Instruction is the emitted settlement instruction: a net transfer of
// amount units of asset from From to To, to be signed by Authority.
type Instruction struct {
	From      account.Key
	To        account.Key
	Asset     account.Key
	Amount    uint64
	Authority account.Key
}

// int128Min/Max bound the signed 128-bit range spec.md §3 requires
// NetTransferTable's cumulative sums to stay representable within.
var (
	int128Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	int128Min = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

type entry struct {
	sum       decimal.Decimal
	authority account.Key
	hasAuth   bool
}

// Bundle runs the Transfer Bundler over log, in order, returning the
// deterministic (sorted by pair, then asset) settlement instruction
// vector (spec.md §4.B Emission, §4.D Bundle command, §8 scenario 3, 6).
func Bundle(logger mlog.Logger, log []*tx.Transaction, loader Loader) ([]Instruction, error) {
	table := make(map[key]*entry)

	for _, t := range log {
		for i, ix := range t.Message.Instructions {
			triple, ok, err := parse(t, ix, loader)
			if err != nil {
				logger.Warnf("bundler: skipping malformed instruction %d in tx %s: %v", i, t.Hash(), err)
				continue
			}

			if !ok {
				continue
			}

			if err := accumulate(table, triple); err != nil {
				return nil, err
			}
		}
	}

	return emit(table), nil
}

// transferTriple is the parsed (from, to, asset, amount, authority)
// shape spec.md §4.B's classification step produces.
type transferTriple struct {
	from      account.Key
	to        account.Key
	asset     account.Key
	amount    uint64
	authority account.Key
}

// parse classifies a single compiled instruction, returning ok=false for
// any non-transfer instruction (spec.md §4.B Instruction classification)
// and an error only for a recognized-but-malformed transfer instruction.
func parse(t *tx.Transaction, ix tx.CompiledInstruction, loader Loader) (transferTriple, bool, error) {
	programKey, err := t.ResolveAccount(ix.ProgramIDIndex)
	if err != nil {
		return transferTriple{}, false, fmt.Errorf("bundler: bad program index: %w", err)
	}

	switch programKey {
	case vm.SystemProgramKey:
		return parseSystemTransfer(t, ix)
	case vm.TokenProgramKey:
		return parseTokenInstruction(t, ix, loader)
	default:
		return transferTriple{}, false, nil
	}
}

func parseSystemTransfer(t *tx.Transaction, ix tx.CompiledInstruction) (transferTriple, bool, error) {
	if len(ix.AccountIndexes) < 2 || len(ix.Data) < 12 {
		return transferTriple{}, false, fmt.Errorf("system transfer: need 2 accounts and 12 data bytes, have %d accounts %d bytes", len(ix.AccountIndexes), len(ix.Data))
	}

	from, err := t.ResolveAccount(ix.AccountIndexes[0])
	if err != nil {
		return transferTriple{}, false, err
	}

	to, err := t.ResolveAccount(ix.AccountIndexes[1])
	if err != nil {
		return transferTriple{}, false, err
	}

	amount := binary.LittleEndian.Uint64(ix.Data[4:12])

	return transferTriple{from: from, to: to, asset: nativeAsset, amount: amount, authority: from}, true, nil
}

func parseTokenInstruction(t *tx.Transaction, ix tx.CompiledInstruction, loader Loader) (transferTriple, bool, error) {
	if len(ix.Data) < 1 {
		return transferTriple{}, false, fmt.Errorf("token instruction: empty data")
	}

	switch ix.Data[0] {
	case 3: // Transfer
		if len(ix.AccountIndexes) < 3 || len(ix.Data) < 9 {
			return transferTriple{}, false, fmt.Errorf("token transfer: need 3 accounts and 9 data bytes, have %d accounts %d bytes", len(ix.AccountIndexes), len(ix.Data))
		}

		src, err := t.ResolveAccount(ix.AccountIndexes[0])
		if err != nil {
			return transferTriple{}, false, err
		}

		dst, err := t.ResolveAccount(ix.AccountIndexes[1])
		if err != nil {
			return transferTriple{}, false, err
		}

		authority, err := t.ResolveAccount(ix.AccountIndexes[2])
		if err != nil {
			return transferTriple{}, false, err
		}

		amount := binary.LittleEndian.Uint64(ix.Data[1:9])

		asset, err := resolveMint(loader, src)
		if err != nil {
			return transferTriple{}, false, err
		}

		return transferTriple{from: src, to: dst, asset: asset, amount: amount, authority: authority}, true, nil
	case 12: // TransferChecked
		if len(ix.AccountIndexes) < 4 || len(ix.Data) < 9 {
			return transferTriple{}, false, fmt.Errorf("token transfer-checked: need 4 accounts and 9 data bytes, have %d accounts %d bytes", len(ix.AccountIndexes), len(ix.Data))
		}

		src, err := t.ResolveAccount(ix.AccountIndexes[0])
		if err != nil {
			return transferTriple{}, false, err
		}

		mint, err := t.ResolveAccount(ix.AccountIndexes[1])
		if err != nil {
			return transferTriple{}, false, err
		}

		dst, err := t.ResolveAccount(ix.AccountIndexes[2])
		if err != nil {
			return transferTriple{}, false, err
		}

		authority, err := t.ResolveAccount(ix.AccountIndexes[3])
		if err != nil {
			return transferTriple{}, false, err
		}

		amount := binary.LittleEndian.Uint64(ix.Data[1:9])

		return transferTriple{from: src, to: dst, asset: mint, amount: amount, authority: authority}, true, nil
	default:
		return transferTriple{}, false, nil
	}
}

// tokenMintOffset mirrors internal/adapters/vm's simplified token account
// layout (mint is the first 32 bytes).
const tokenMintOffset = 0

func resolveMint(loader Loader, tokenAccount account.Key) (account.Key, error) {
	snap, ok := loader.Get(tokenAccount)
	if !ok || len(snap.Data) < tokenMintOffset+32 {
		return account.Key{}, fmt.Errorf("cannot resolve mint for token account %s", tokenAccount)
	}

	var mint account.Key

	copy(mint[:], snap.Data[tokenMintOffset:tokenMintOffset+32])

	return mint, nil
}

func accumulate(table map[key]*entry, t transferTriple) error {
	pair := [2]account.Key{t.from, t.to}
	if t.to.Less(t.from) {
		pair = [2]account.Key{t.to, t.from}
	}

	k := key{pair: pair, asset: t.asset}

	e, ok := table[k]
	if !ok {
		e = &entry{sum: decimal.Zero}
		table[k] = e
	}

	delta := decimal.NewFromBigInt(new(big.Int).SetUint64(t.amount), 0)
	if t.from != pair[0] {
		delta = delta.Neg()
	}

	newSum := e.sum.Add(delta)

	sumInt := newSum.BigInt()
	if sumInt.Cmp(int128Max) > 0 || sumInt.Cmp(int128Min) < 0 {
		return fmt.Errorf("bundler: net transfer for pair %s/%s asset %s overflows signed 128-bit range", pair[0], pair[1], k.asset)
	}

	e.sum = newSum

	if !e.hasAuth {
		e.authority = t.authority
		e.hasAuth = true
	}

	return nil
}

func emit(table map[key]*entry) []Instruction {
	keys := make([]key, 0, len(table))

	for k := range table {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pair[0] != keys[j].pair[0] {
			return keys[i].pair[0].Less(keys[j].pair[0])
		}

		if keys[i].pair[1] != keys[j].pair[1] {
			return keys[i].pair[1].Less(keys[j].pair[1])
		}

		return keys[i].asset.Less(keys[j].asset)
	})

	out := make([]Instruction, 0, len(keys))

	for _, k := range keys {
		e := table[k]
		if e.sum.IsZero() {
			continue
		}

		from, to := k.pair[0], k.pair[1]
		if e.sum.Sign() < 0 {
			from, to = k.pair[1], k.pair[0]
		}

		amount := e.sum.Abs().BigInt().Uint64()

		out = append(out, Instruction{From: from, To: to, Asset: k.asset, Amount: amount, Authority: e.authority})
	}

	return out
}
