// Package tx defines the rollup's wire-level transaction representation
// (spec.md §3: Transaction, TransactionHash, compiled instructions) and
// its sanitization step (spec.md GLOSSARY: "Sanitized transaction").
package tx

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/based-rollup/sequencer/internal/rollup/account"
)

// Hash is a deterministic digest of a transaction's message, used as the
// transaction log key (spec.md §3: TransactionHash).
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

// CompiledInstruction references the program by index into the parent
// transaction's AccountKeys, plus the account indexes it touches and its
// opaque instruction data.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// Message is the signable body of a Transaction.
type Message struct {
	// AccountKeys is ordered; index 0 is always the fee payer (spec.md §3).
	AccountKeys    []account.Key
	RecentBlockhash [32]byte
	Instructions    []CompiledInstruction
}

// Transaction is an opaque, canonically-serializable record. Once
// received it is treated as immutable by every component (spec.md §3).
type Transaction struct {
	Message    Message
	Signatures [][64]byte
}

// FeePayer returns the transaction's fee payer, account-key index 0.
func (t *Transaction) FeePayer() (account.Key, error) {
	if len(t.Message.AccountKeys) == 0 {
		return account.Key{}, fmt.Errorf("tx: message has no account keys")
	}

	return t.Message.AccountKeys[0], nil
}

// Serialize produces the canonical byte encoding of the message, used as
// the input to Hash and to signature verification.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(m.AccountKeys)))
	buf.Write(n[:])

	for _, k := range m.AccountKeys {
		buf.Write(k[:])
	}

	buf.Write(m.RecentBlockhash[:])

	binary.LittleEndian.PutUint64(n[:], uint64(len(m.Instructions)))
	buf.Write(n[:])

	for _, ix := range m.Instructions {
		buf.WriteByte(ix.ProgramIDIndex)

		binary.LittleEndian.PutUint64(n[:], uint64(len(ix.AccountIndexes)))
		buf.Write(n[:])
		buf.Write(ix.AccountIndexes)

		binary.LittleEndian.PutUint64(n[:], uint64(len(ix.Data)))
		buf.Write(n[:])
		buf.Write(ix.Data)
	}

	return buf.Bytes()
}

// Hash returns the deterministic digest of the transaction's message.
func (t *Transaction) Hash() Hash {
	return sha256.Sum256(t.Message.Serialize())
}

// ResolveAccount returns the account key at instruction-account-index i,
// translated through the parent transaction's AccountKeys.
func (t *Transaction) ResolveAccount(index uint8) (account.Key, error) {
	if int(index) >= len(t.Message.AccountKeys) {
		return account.Key{}, fmt.Errorf("tx: account index %d out of range (have %d keys)", index, len(t.Message.AccountKeys))
	}

	return t.Message.AccountKeys[index], nil
}

// Sanitize checks the structural preconditions of spec.md's GLOSSARY
// definition: non-empty signature count, no duplicate account keys, and
// every instruction's program/account indexes resolve within range.
func Sanitize(t *Transaction) error {
	if len(t.Message.AccountKeys) == 0 {
		return fmt.Errorf("tx: no account keys")
	}

	if len(t.Signatures) == 0 {
		return fmt.Errorf("tx: no signatures")
	}

	seen := make(map[account.Key]struct{}, len(t.Message.AccountKeys))

	for _, k := range t.Message.AccountKeys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("tx: duplicate account key %s", k)
		}

		seen[k] = struct{}{}
	}

	nKeys := len(t.Message.AccountKeys)

	for i, ix := range t.Message.Instructions {
		if int(ix.ProgramIDIndex) >= nKeys {
			return fmt.Errorf("tx: instruction %d program index %d out of range", i, ix.ProgramIDIndex)
		}

		for _, a := range ix.AccountIndexes {
			if int(a) >= nKeys {
				return fmt.Errorf("tx: instruction %d account index %d out of range", i, a)
			}
		}
	}

	return nil
}
