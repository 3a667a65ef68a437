package mmodel

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/rollup/account"
)

func keyString(b byte) string {
	var k account.Key
	k[0] = b

	return k.String()
}

func TestWireTransaction_ToTransaction_HappyPath(t *testing.T) {
	t.Parallel()

	sig := make([]byte, 64)
	sig[0] = 9

	w := WireTransaction{
		AccountKeys:     []string{keyString(1), keyString(2)},
		RecentBlockhash: "aa" + strings.Repeat("00", 31),
		Instructions: []WireInstruction{
			{ProgramIDIndex: 0, AccountIndexes: []uint8{0, 1}, Data: base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
		},
		Signatures: []string{base64.StdEncoding.EncodeToString(sig)},
	}

	got, err := w.ToTransaction()
	require.NoError(t, err)
	assert.Len(t, got.Message.AccountKeys, 2)
	assert.Len(t, got.Message.Instructions, 1)
	assert.Equal(t, []byte{1, 2, 3}, got.Message.Instructions[0].Data)
	require.Len(t, got.Signatures, 1)
	assert.Equal(t, byte(9), got.Signatures[0][0])
}

func TestWireTransaction_ToTransaction_BadAccountKey(t *testing.T) {
	t.Parallel()

	w := WireTransaction{
		AccountKeys: []string{"not-a-valid-base58-key!!"},
		Signatures:  []string{base64.StdEncoding.EncodeToString(make([]byte, 64))},
	}

	_, err := w.ToTransaction()
	assert.Error(t, err)
}

func TestWireTransaction_ToTransaction_BadSignatureLength(t *testing.T) {
	t.Parallel()

	w := WireTransaction{
		AccountKeys: []string{keyString(1)},
		Signatures:  []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
	}

	_, err := w.ToTransaction()
	assert.Error(t, err)
}

func TestWireTransaction_ToTransaction_BadInstructionData(t *testing.T) {
	t.Parallel()

	w := WireTransaction{
		AccountKeys:  []string{keyString(1)},
		Instructions: []WireInstruction{{Data: "not-valid-base64!!"}},
		Signatures:   []string{base64.StdEncoding.EncodeToString(make([]byte, 64))},
	}

	_, err := w.ToTransaction()
	assert.Error(t, err)
}

func TestWireTransaction_ToTransaction_EmptyBlockhashIsZeroed(t *testing.T) {
	t.Parallel()

	w := WireTransaction{
		AccountKeys: []string{keyString(1)},
		Signatures:  []string{base64.StdEncoding.EncodeToString(make([]byte, 64))},
	}

	got, err := w.ToTransaction()
	require.NoError(t, err)
	assert.Equal(t, [32]byte{}, got.Message.RecentBlockhash)
}
