//go:build integration

package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/based-rollup/sequencer/internal/mlog"
)

func startRabbitMQContainer(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return "amqp://guest:guest@" + host + ":" + port.Port() + "/"
}

func TestIntegration_Queue_PublishConsume(t *testing.T) {
	url := startRabbitMQContainer(t)

	conn := &Connection{ConnectionStringSource: url, Logger: &mlog.NoneLogger{}}
	queue := NewQueue(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deliveries, err := queue.Consume(ctx)
	require.NoError(t, err)

	msg := SettlementMessage{
		Instructions: []SettlementInstruction{
			{From: "alice", To: "bob", Asset: "usdc-mint", Authority: "alice", Amount: 42},
		},
	}

	require.NoError(t, queue.Publish(ctx, msg))

	select {
	case got := <-deliveries:
		require.Equal(t, msg, got)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for published settlement message to be consumed")
	}
}
