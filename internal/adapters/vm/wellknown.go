package vm

import "github.com/based-rollup/sequencer/internal/rollup/account"

// Well-known program keys the VM and bundler both need to resolve
// (spec.md §4.A: "two well-known program snapshots (the loader program
// and the token program)"; spec.md §4.B: "system-transfer program or the
// token-transfer program").
var (
	SystemProgramKey = wellKnown("Sys1111111111111111111111111111111111111")
	TokenProgramKey  = wellKnown("Tok1111111111111111111111111111111111111")
	LoaderProgramKey = wellKnown("BPFLoader11111111111111111111111111111111")
)

func wellKnown(label string) account.Key {
	var k account.Key

	copy(k[:], label)

	return k
}

// The token* offsets and TokenAccountSize describe the simplified SPL-token-style account
// data layout the reference VM and bundler both understand: the fields a
// real mint/owner/amount token account carries, trimmed to what spec.md
// §4.B's parsing rules need (mint resolution, balance mutation).
const (
	tokenMintOffset   = 0
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
	TokenAccountSize  = 72
)
