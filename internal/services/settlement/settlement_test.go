package settlement

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/adapters/rabbitmq"
	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/services/bundler"
)

func newKey(b byte) account.Key {
	var k account.Key
	k[0] = b

	return k
}

func TestQueuePublisher_Publish_EmptyInstructionsIsNoop(t *testing.T) {
	t.Parallel()

	pub := NewQueuePublisher(nil)
	assert.NoError(t, pub.Publish(context.Background(), nil))
}

func TestWorker_BuildTransaction_DedupesRepeatedKeys(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var operatorPub account.Key

	copy(operatorPub[:], pub)

	worker := NewWorker(&mlog.NoneLogger{}, nil, client, priv, operatorPub)

	from, to := newKey(1), newKey(2)

	msg := rabbitmq.SettlementMessage{
		Instructions: []rabbitmq.SettlementInstruction{
			{From: from.String(), To: to.String(), Authority: from.String(), Amount: 10},
			{From: from.String(), To: to.String(), Authority: from.String(), Amount: 5},
		},
	}

	txn, err := worker.buildTransaction(context.Background(), msg)
	require.NoError(t, err)

	// operatorPub, TokenProgramKey, from, to — no duplicate entries even
	// though both instructions reference the same from/to/authority.
	assert.Len(t, txn.Message.AccountKeys, 4)
	assert.Equal(t, operatorPub, txn.Message.AccountKeys[0])
	assert.Equal(t, vm.TokenProgramKey, txn.Message.AccountKeys[1])

	require.Len(t, txn.Message.Instructions, 2)
	assert.Equal(t, byte(3), txn.Message.Instructions[0].Data[0], "opcode 3 (Transfer) must be used on the wire")
	assert.Len(t, txn.Signatures, 1)
}

func TestWorker_Submit_SendsBuiltTransaction(t *testing.T) {
	t.Parallel()

	client := rpc.NewFakeClient()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var operatorPub account.Key

	copy(operatorPub[:], pub)

	worker := NewWorker(&mlog.NoneLogger{}, nil, client, priv, operatorPub)

	from, to := newKey(1), newKey(2)
	msg := rabbitmq.SettlementMessage{
		Instructions: []rabbitmq.SettlementInstruction{
			{From: from.String(), To: to.String(), Authority: from.String(), Amount: 7},
		},
	}

	require.NoError(t, worker.submit(context.Background(), msg))
	assert.Len(t, client.Submitted, 1)
}

func TestIndexFor_DedupesAcrossCalls(t *testing.T) {
	t.Parallel()

	keys := []account.Key{}
	index := map[account.Key]uint8{}

	a := newKey(1)

	i1 := indexFor(&keys, index, a)
	i2 := indexFor(&keys, index, a)

	assert.Equal(t, i1, i2)
	assert.Len(t, keys, 1)

	_ = bundler.Instruction{}
}
