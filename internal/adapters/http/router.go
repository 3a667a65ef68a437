package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/based-rollup/sequencer/internal/adapters/http/in"
	"github.com/based-rollup/sequencer/internal/launcher"
	"github.com/based-rollup/sequencer/internal/mlog"
)

// Server is the ingress scope of spec.md §5: the HTTP endpoint and its
// request handlers, registered as a launcher.App.
type Server struct {
	logger   mlog.Logger
	addr     string
	app      *fiber.App
	handlers *in.Handlers
}

// NewServer builds the fiber app and registers the five spec.md §6 routes.
func NewServer(logger mlog.Logger, addr string, handlers *in.Handlers) *Server {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(WithCorrelationID())
	app.Use(WithCORS())
	app.Use(WithLogger(logger))

	app.Get("/", handlers.Ping)
	app.Post("/submit_transaction", handlers.SubmitTransaction)
	app.Post("/get_transaction", handlers.GetTransaction)
	app.Post("/init_delegation_service", handlers.InitDelegationService)
	app.Post("/add_delegation_signer", handlers.AddDelegationSigner)

	return &Server{logger: logger, addr: addr, app: app, handlers: handlers}
}

// Run implements launcher.App, serving until ctx is canceled.
func (s *Server) Run(l *launcher.Launcher) error {
	_ = l

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.addr)
	}()

	return <-errCh
}

// Shutdown gracefully stops the fiber app.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
