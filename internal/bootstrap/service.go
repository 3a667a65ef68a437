package bootstrap

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/based-rollup/sequencer/internal/adapters/http"
	"github.com/based-rollup/sequencer/internal/adapters/http/in"
	"github.com/based-rollup/sequencer/internal/adapters/rabbitmq"
	"github.com/based-rollup/sequencer/internal/adapters/redis"
	"github.com/based-rollup/sequencer/internal/adapters/rpc"
	"github.com/based-rollup/sequencer/internal/adapters/secretsloader"
	"github.com/based-rollup/sequencer/internal/launcher"
	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollupctx"
	"github.com/based-rollup/sequencer/internal/services/delegation"
	"github.com/based-rollup/sequencer/internal/services/loader"
	"github.com/based-rollup/sequencer/internal/services/rollupdb"
	"github.com/based-rollup/sequencer/internal/services/sequencer"
	"github.com/based-rollup/sequencer/internal/services/settlement"
)

// Service composes every component spec.md §2 names into one process,
// mirroring the teacher's bootstrap.Service shape but driven by this
// package's own Launcher instead of lib-commons'.
type Service struct {
	Logger   mlog.Logger
	Launcher *launcher.Launcher
}

// storeApp and sequencerApp adapt the state store and sequencer loops to
// launcher.App (their Run methods take a context.Context, not a
// *launcher.Launcher).
type storeApp struct{ store *rollupdb.Store }

func (a storeApp) Run(_ *launcher.Launcher) error { return a.store.Run(context.Background()) }

type sequencerApp struct{ seq *sequencer.Sequencer }

func (a sequencerApp) Run(_ *launcher.Launcher) error {
	ctx := rollupctx.WithTracer(context.Background(), otel.Tracer("sequencer"))

	return a.seq.Run(ctx)
}

type settlementApp struct{ worker *settlement.Worker }

func (a settlementApp) Run(_ *launcher.Launcher) error { return a.worker.Run(context.Background()) }

// InitService reads configuration, constructs every component, and
// returns a Service ready to Run.
func InitService(ctx context.Context, cfg *Config) (*Service, error) {
	logger, err := mlog.InitializeLogger()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: initialize logger: %w", err)
	}

	rpcClient, err := newRPCClient(cfg)
	if err != nil {
		return nil, err
	}

	breakerClient := rpc.NewBreakerClient("base-chain-rpc", rpcClient)

	accountCache, err := loader.New(ctx, breakerClient)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: seed account loader: %w", err)
	}

	store := rollupdb.New(logger, breakerClient)
	delegationSvc := delegation.NewWithProgramKey(breakerClient, cfg.EscrowProgramKey)

	operatorKey, err := secretsloader.LoadOperatorKey(ctx, cfg.AWSSecretsRegion, cfg.AWSSignerSecretID, cfg.OperatorSigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load operator signing key: %w", err)
	}

	var operatorPub account.Key
	copy(operatorPub[:], operatorKey.Public().(ed25519.PublicKey))

	rmqConn := &rabbitmq.Connection{ConnectionStringSource: cfg.RabbitMQURL, Logger: logger}
	settlementQueue := rabbitmq.NewQueue(rmqConn)

	publisher := settlement.NewQueuePublisher(settlementQueue)
	worker := settlement.NewWorker(logger, settlementQueue, breakerClient, operatorKey, operatorPub)

	seq := sequencer.New(logger, store, accountCache, delegationSvc, breakerClient, publisher, sequencer.Params{
		RequiredDelegationAmount: cfg.RequiredDelegationAmount,
		SettlementThreshold:      cfg.SettlementThreshold,
		LockPollInterval:         cfg.LockPollInterval,
	})

	redisConn := &redis.Connection{ConnectionStringSource: "redis://" + cfg.RedisAddr, Logger: logger}
	idempotency := redis.NewIdempotencyCache(redisConn, 10*time.Minute)

	handlers := &in.Handlers{Sequencer: seq, Delegation: delegationSvc, Store: store, Idempotency: idempotency}
	server := http.NewServer(logger, cfg.ServerAddress, handlers)

	l := launcher.New(
		launcher.WithLogger(logger),
		launcher.RunApp("state_store", storeApp{store: store}),
		launcher.RunApp("sequencer", sequencerApp{seq: seq}),
		launcher.RunApp("settlement_worker", settlementApp{worker: worker}),
		launcher.RunApp("http_server", server),
	)

	return &Service{Logger: logger, Launcher: l}, nil
}

// Run starts every component and blocks until they all return.
func (s *Service) Run() {
	s.Launcher.Run()
}
