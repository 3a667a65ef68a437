package bundler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
)

type fakeLoader map[account.Key]account.Snapshot

func (f fakeLoader) Get(k account.Key) (account.Snapshot, bool) {
	snap, ok := f[k]
	return snap, ok
}

func newKey(b byte) account.Key {
	var k account.Key
	k[0] = b

	return k
}

func systemTransferTx(from, to account.Key, amount uint64) *tx.Transaction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint64(data[4:12], amount)

	return &tx.Transaction{
		Message: tx.Message{
			AccountKeys: []account.Key{from, to, vm.SystemProgramKey},
			Instructions: []tx.CompiledInstruction{
				{ProgramIDIndex: 2, AccountIndexes: []uint8{0, 1}, Data: data},
			},
		},
		Signatures: [][64]byte{{}},
	}
}

func TestBundle_NetsOppositeTransfersOnSamePair(t *testing.T) {
	t.Parallel()

	a, b := newKey(1), newKey(2)

	log := []*tx.Transaction{
		systemTransferTx(a, b, 10),
		systemTransferTx(b, a, 3),
	}

	out, err := Bundle(&mlog.NoneLogger{}, log, fakeLoader{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, a, out[0].From)
	assert.Equal(t, b, out[0].To)
	assert.Equal(t, uint64(7), out[0].Amount)
	assert.Equal(t, a, out[0].Authority, "authority must be the first-parsed instruction's authority")
}

func TestBundle_ZeroNetDropsInstruction(t *testing.T) {
	t.Parallel()

	a, b := newKey(1), newKey(2)

	log := []*tx.Transaction{
		systemTransferTx(a, b, 10),
		systemTransferTx(b, a, 10),
	}

	out, err := Bundle(&mlog.NoneLogger{}, log, fakeLoader{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBundle_SkipsMalformedInstructionWithoutFailingBatch(t *testing.T) {
	t.Parallel()

	a, b := newKey(1), newKey(2)

	malformed := &tx.Transaction{
		Message: tx.Message{
			AccountKeys: []account.Key{a, vm.SystemProgramKey},
			Instructions: []tx.CompiledInstruction{
				{ProgramIDIndex: 1, AccountIndexes: []uint8{0}, Data: []byte{1}},
			},
		},
		Signatures: [][64]byte{{}},
	}

	log := []*tx.Transaction{malformed, systemTransferTx(a, b, 5)}

	out, err := Bundle(&mlog.NoneLogger{}, log, fakeLoader{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(5), out[0].Amount)
}

func TestBundle_NonTransferInstructionContributesNothing(t *testing.T) {
	t.Parallel()

	a := newKey(1)
	loaderProgram := newKey(50)

	// spec.md §8 scenario 4: a create_account-style instruction against an
	// unrecognized program must commit cleanly and be absent from the
	// bundle output.
	createAccount := &tx.Transaction{
		Message: tx.Message{
			AccountKeys: []account.Key{a, loaderProgram},
			Instructions: []tx.CompiledInstruction{
				{ProgramIDIndex: 1, AccountIndexes: []uint8{0}, Data: []byte{0xff}},
			},
		},
		Signatures: [][64]byte{{}},
	}

	out, err := Bundle(&mlog.NoneLogger{}, []*tx.Transaction{createAccount}, fakeLoader{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBundle_TokenTransferResolvesMintAsAsset(t *testing.T) {
	t.Parallel()

	mint := newKey(9)
	src, dst := newKey(1), newKey(2)

	loader := fakeLoader{
		src: {Data: append(append([]byte{}, mint[:]...), make([]byte, 40)...)},
	}

	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], 25)

	txn := &tx.Transaction{
		Message: tx.Message{
			AccountKeys: []account.Key{src, dst, src, vm.TokenProgramKey},
			Instructions: []tx.CompiledInstruction{
				{ProgramIDIndex: 3, AccountIndexes: []uint8{0, 1, 2}, Data: data},
			},
		},
		Signatures: [][64]byte{{}},
	}

	out, err := Bundle(&mlog.NoneLogger{}, []*tx.Transaction{txn}, loader)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, mint, out[0].Asset)
	assert.Equal(t, uint64(25), out[0].Amount)
}
