package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"github.com/based-rollup/sequencer/internal/mlog"
	"github.com/based-rollup/sequencer/internal/rollupctx"
)

const headerCorrelationID = "X-Correlation-ID"

// WithCORS mirrors the teacher's common/net/http.WithCORS — permissive
// defaults suitable for a local ingress endpoint.
func WithCORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "POST, GET, OPTIONS",
		AllowHeaders:     "Accept, Content-Type, Content-Length, Authorization",
		AllowCredentials: true,
	})
}

// WithCorrelationID stamps every request with a correlation id, mirroring
// the teacher's common/net/http.WithCorrelationID.
func WithCorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := uuid.NewString()
		c.Request().Header.Set(headerCorrelationID, cid)
		c.Set(headerCorrelationID, cid)

		return c.Next()
	}
}

// WithLogger installs a per-request logger (tagged with the correlation
// id) onto the fiber user context, mirroring the teacher's
// common/net/http.WithHTTPLogging context-carrying half.
func WithLogger(base mlog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cid := c.Get(headerCorrelationID)
		logger := base.WithFields("correlation_id", cid)

		ctx := rollupctx.WithLogger(c.UserContext(), logger)
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()

		logger.Infof("%s %s -> %d (%s)", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start))

		return err
	}
}
