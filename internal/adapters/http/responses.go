// Package http hosts the fiber ingress: middleware, routing, and the
// request/response envelope shared by every route in spec.md §6,
// adapted from the teacher's common/net/http package.
package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/based-rollup/sequencer/internal/apperr"
)

// Envelope is the `{ status, data }` response shape spec.md §6 specifies
// for /submit_transaction and /get_transaction.
type Envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

func success(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Status: "Success", Data: data})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Status: "Error", Data: fiber.Map{"message": message}})
}

// WithError maps the closed apperr error-kind set (spec.md §7) onto an
// HTTP status and the `{status:"Error", ...}` envelope.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case apperr.MalformedTransactionError:
		return failure(c, fiber.StatusBadRequest, e.Message)
	case apperr.DelegationInsufficientError:
		return failure(c, fiber.StatusPaymentRequired, e.Message)
	case apperr.VMExecutionError:
		// Still committed — reported as a 200 with the error surfaced in
		// the payload, per spec.md §7.
		return success(c, fiber.Map{"message": e.Message})
	case apperr.RPCUnavailableError:
		return failure(c, fiber.StatusServiceUnavailable, e.Message)
	case apperr.NoSignerRegisteredError:
		return failure(c, fiber.StatusUnprocessableEntity, e.Error())
	default:
		// Every other error reaching this point originates from request
		// decoding/validation, not from the rollup engine itself.
		return failure(c, fiber.StatusBadRequest, err.Error())
	}
}
