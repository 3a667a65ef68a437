// Package mmodel holds the wire-level request/response DTOs for the
// HTTP surface (spec.md §6), separate from the internal rollup/tx and
// rollup/account domain types.
package mmodel

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

// SubmitTransactionRequest is the body of POST /submit_transaction
// (spec.md §6).
type SubmitTransactionRequest struct {
	Sender         string             `json:"sender" validate:"required"`
	SolTransaction WireTransaction    `json:"sol_transaction" validate:"required"`
}

// WireTransaction is the JSON form of an internal tx.Transaction: account
// keys as base-58 strings, instruction data as base64.
type WireTransaction struct {
	AccountKeys     []string            `json:"account_keys" validate:"required,min=1"`
	RecentBlockhash string              `json:"recent_blockhash"`
	Instructions    []WireInstruction   `json:"instructions"`
	Signatures      []string            `json:"signatures" validate:"required,min=1"`
}

// WireInstruction is the JSON form of a tx.CompiledInstruction.
type WireInstruction struct {
	ProgramIDIndex uint8   `json:"program_id_index"`
	AccountIndexes []uint8 `json:"account_indexes"`
	Data           string  `json:"data"` // base64
}

// ToTransaction decodes the wire form into the internal representation.
func (w WireTransaction) ToTransaction() (*tx.Transaction, error) {
	keys := make([]account.Key, len(w.AccountKeys))

	for i, s := range w.AccountKeys {
		k, err := account.ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("mmodel: account key %d: %w", i, err)
		}

		keys[i] = k
	}

	var blockhash [32]byte

	if w.RecentBlockhash != "" {
		raw, err := hex.DecodeString(w.RecentBlockhash)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("mmodel: recent_blockhash must be 32 hex bytes")
		}

		copy(blockhash[:], raw)
	}

	instructions := make([]tx.CompiledInstruction, len(w.Instructions))

	for i, wi := range w.Instructions {
		data, err := base64.StdEncoding.DecodeString(wi.Data)
		if err != nil {
			return nil, fmt.Errorf("mmodel: instruction %d data: %w", i, err)
		}

		instructions[i] = tx.CompiledInstruction{
			ProgramIDIndex: wi.ProgramIDIndex,
			AccountIndexes: wi.AccountIndexes,
			Data:           data,
		}
	}

	signatures := make([][64]byte, len(w.Signatures))

	for i, s := range w.Signatures {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil || len(raw) != 64 {
			return nil, fmt.Errorf("mmodel: signature %d must be 64 base64 bytes", i)
		}

		copy(signatures[i][:], raw)
	}

	return &tx.Transaction{
		Message: tx.Message{
			AccountKeys:     keys,
			RecentBlockhash: blockhash,
			Instructions:    instructions,
		},
		Signatures: signatures,
	}, nil
}

// GetTransactionRequest is the body of POST /get_transaction (spec.md §6).
type GetTransactionRequest struct {
	GetTx string `json:"get_tx" validate:"required"`
}

// SubmitTransactionResponse is the data payload for a submit response.
type SubmitTransactionResponse struct {
	Message string `json:"message"`
}
