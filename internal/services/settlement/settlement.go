// Package settlement publishes the Sequencer's periodic bundle trigger
// onto the settlement queue and runs the worker that signs and submits
// the resulting compact instruction vector to the base chain as a single
// transaction (spec.md §9 Open Question #3: "Treat the wiring as a
// required piece of the implementation").
package settlement

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/based-rollup/sequencer/internal/adapters/rabbitmq"
	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/vm"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
	"github.com/based-rollup/sequencer/internal/services/bundler"
)

// QueuePublisher implements sequencer.Publisher by enqueueing the
// instruction vector onto the rabbitmq settlement queue, decoupling the
// Sequencer's trigger from the actual on-chain submission.
type QueuePublisher struct {
	queue *rabbitmq.Queue
}

// NewQueuePublisher wraps queue as a sequencer.Publisher.
func NewQueuePublisher(queue *rabbitmq.Queue) *QueuePublisher {
	return &QueuePublisher{queue: queue}
}

// Publish converts instructions to their wire form and enqueues them.
func (p *QueuePublisher) Publish(ctx context.Context, instructions []bundler.Instruction) error {
	if len(instructions) == 0 {
		return nil
	}

	wire := make([]rabbitmq.SettlementInstruction, len(instructions))
	for i, ix := range instructions {
		wire[i] = rabbitmq.SettlementInstruction{
			From:      ix.From.String(),
			To:        ix.To.String(),
			Asset:     ix.Asset.String(),
			Amount:    ix.Amount,
			Authority: ix.Authority.String(),
		}
	}

	return p.queue.Publish(ctx, rabbitmq.SettlementMessage{Instructions: wire})
}

// Worker drains the settlement queue and submits each batch to the base
// chain as a single transaction signed by the sequencer's operator key.
type Worker struct {
	logger      mlog.Logger
	queue       *rabbitmq.Queue
	rpc         rpc.Client
	operatorKey ed25519.PrivateKey
	operatorPub account.Key
}

// NewWorker constructs a settlement Worker.
func NewWorker(logger mlog.Logger, queue *rabbitmq.Queue, client rpc.Client, operatorKey ed25519.PrivateKey, operatorPub account.Key) *Worker {
	return &Worker{logger: logger, queue: queue, rpc: client, operatorKey: operatorKey, operatorPub: operatorPub}
}

// Run consumes the settlement queue until ctx is canceled, submitting
// each received batch as a single on-chain transaction.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("settlement: consume queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}

			if err := w.submit(ctx, msg); err != nil {
				w.logger.Errorf("settlement: submit batch failed: %v", err)
			}
		}
	}
}

func (w *Worker) submit(ctx context.Context, msg rabbitmq.SettlementMessage) error {
	t, err := w.buildTransaction(ctx, msg)
	if err != nil {
		return err
	}

	if _, err := w.rpc.SendAndConfirmTransaction(ctx, t); err != nil {
		return fmt.Errorf("settlement: send batch: %w", err)
	}

	return nil
}

func (w *Worker) buildTransaction(ctx context.Context, msg rabbitmq.SettlementMessage) (*tx.Transaction, error) {
	blockhash, err := w.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement: fetch blockhash: %w", err)
	}

	keyIndex := map[account.Key]uint8{}
	keys := []account.Key{w.operatorPub}
	keyIndex[w.operatorPub] = 0

	keys = append(keys, vm.TokenProgramKey)
	keyIndex[vm.TokenProgramKey] = uint8(len(keys) - 1)

	instructions := make([]tx.CompiledInstruction, 0, len(msg.Instructions))

	for _, ix := range msg.Instructions {
		from, err := account.ParseKey(ix.From)
		if err != nil {
			return nil, fmt.Errorf("settlement: parse from key: %w", err)
		}

		to, err := account.ParseKey(ix.To)
		if err != nil {
			return nil, fmt.Errorf("settlement: parse to key: %w", err)
		}

		authority, err := account.ParseKey(ix.Authority)
		if err != nil {
			return nil, fmt.Errorf("settlement: parse authority key: %w", err)
		}

		fromIdx := indexFor(&keys, keyIndex, from)
		toIdx := indexFor(&keys, keyIndex, to)
		authIdx := indexFor(&keys, keyIndex, authority)

		// opcode 3 (Transfer) || amount[8] LE, the same wire shape the
		// bundler itself parses (spec.md §4.B).
		data := make([]byte, 9)
		data[0] = 3
		binary.LittleEndian.PutUint64(data[1:9], ix.Amount)

		instructions = append(instructions, tx.CompiledInstruction{
			ProgramIDIndex: keyIndex[vm.TokenProgramKey],
			AccountIndexes: []uint8{fromIdx, toIdx, authIdx},
			Data:           data,
		})
	}

	message := tx.Message{AccountKeys: keys, RecentBlockhash: blockhash, Instructions: instructions}

	built := &tx.Transaction{Message: message}

	sig := ed25519.Sign(w.operatorKey, message.Serialize())

	var sigArray [64]byte

	copy(sigArray[:], sig)
	built.Signatures = append(built.Signatures, sigArray)

	return built, nil
}

func indexFor(keys *[]account.Key, index map[account.Key]uint8, key account.Key) uint8 {
	if i, ok := index[key]; ok {
		return i
	}

	*keys = append(*keys, key)
	i := uint8(len(*keys) - 1)
	index[key] = i

	return i
}
