// Package rabbitmq wraps the settlement queue connection, adapted from
// the teacher's common/mrabbitmq connection-singleton pattern but
// carrying the sequencer's settlement payload instead of a generic
// message.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/based-rollup/sequencer/internal/mlog"
)

const (
	settlementQueueName = "rollup.settlement"
	healthCheckQueue    = "rollup.health_check"
)

// Connection is a singleton-style hub around one rabbitmq channel,
// mirroring the teacher's RabbitMQConnection.
type Connection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
}

// Connect dials rabbitmq and opens a channel, declaring the settlement
// queue durable so a restart doesn't drop pending settlement payloads.
func (c *Connection) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Logger.Info("rabbitmq: connecting...")

	conn, err := amqp.Dial(c.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(settlementQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare settlement queue: %w", err)
	}

	if !c.healthCheck(ch) {
		return errUnhealthy
	}

	c.conn = conn
	c.channel = ch
	c.connected = true

	c.Logger.Info("rabbitmq: connected")

	return nil
}

func (c *Connection) healthCheck(ch *amqp.Channel) bool {
	_, err := ch.QueueDeclarePassive(healthCheckQueue, true, false, false, false, nil)
	if err != nil {
		// The health-check queue not existing yet is expected on first
		// boot; declare it instead of failing the connection.
		_, err = ch.QueueDeclare(healthCheckQueue, true, false, false, false, nil)
		return err == nil
	}

	return true
}

// GetChannel returns the open channel, connecting lazily if necessary.
func (c *Connection) GetChannel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.channel, nil
}

var errUnhealthy = errors.New("rabbitmq: health check failed")

// SettlementMessage is the wire payload carried on the settlement queue,
// decoupling the Sequencer's periodic Bundle trigger from the actual
// on-chain submission (spec.md §9 Open Question #3).
type SettlementMessage struct {
	Instructions []SettlementInstruction `json:"instructions"`
}

// SettlementInstruction mirrors bundler.Instruction in wire form.
type SettlementInstruction struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Asset     string `json:"asset"`
	Amount    uint64 `json:"amount"`
	Authority string `json:"authority"`
}

// Queue publishes and consumes SettlementMessage payloads on the
// settlement queue.
type Queue struct {
	conn *Connection
}

// NewQueue wraps conn for settlement-queue use.
func NewQueue(conn *Connection) *Queue {
	return &Queue{conn: conn}
}

// Publish enqueues msg for later settlement-worker consumption.
func (q *Queue) Publish(ctx context.Context, msg SettlementMessage) error {
	ch, err := q.conn.GetChannel(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal settlement message: %w", err)
	}

	return ch.PublishWithContext(ctx, "", settlementQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume returns a channel of decoded SettlementMessage deliveries, for
// the settlement worker to range over.
func (q *Queue) Consume(ctx context.Context) (<-chan SettlementMessage, error) {
	ch, err := q.conn.GetChannel(ctx)
	if err != nil {
		return nil, err
	}

	deliveries, err := ch.Consume(settlementQueueName, "", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume settlement queue: %w", err)
	}

	out := make(chan SettlementMessage)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var msg SettlementMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					q.conn.Logger.Errorf("rabbitmq: malformed settlement message: %v", err)
					continue
				}

				out <- msg
			}
		}
	}()

	return out, nil
}
