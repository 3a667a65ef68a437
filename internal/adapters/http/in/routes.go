// Package in holds the fiber route handlers for spec.md §6's HTTP
// surface, adapted from the teacher's
// components/ledger/internal/adapters/http/in handler style.
package in

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"
	validatorpkg "gopkg.in/go-playground/validator.v9"

	"github.com/gofiber/fiber/v2"

	httpadapter "github.com/based-rollup/sequencer/internal/adapters/http"
	redisadapter "github.com/based-rollup/sequencer/internal/adapters/redis"
	"github.com/based-rollup/sequencer/internal/mmodel"
	"github.com/based-rollup/sequencer/internal/rollup/account"
	"github.com/based-rollup/sequencer/internal/rollup/tx"
	"github.com/based-rollup/sequencer/internal/rollupctx"
	"github.com/based-rollup/sequencer/internal/services/delegation"
	"github.com/based-rollup/sequencer/internal/services/rollupdb"
	"github.com/based-rollup/sequencer/internal/services/sequencer"
)

var validate = func() *validatorpkg.Validate {
	v := validatorpkg.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ := uni.GetTranslator("en")

	_ = entranslations.RegisterDefaultTranslations(v, translator)

	return v
}()

// Handlers bundles the Sequencer and Delegation Service the routes call
// into.
type Handlers struct {
	Sequencer   *sequencer.Sequencer
	Delegation  *delegation.Service
	Store       *rollupdb.Store
	Idempotency *redisadapter.IdempotencyCache
}

// Ping answers GET / (spec.md §6: liveness probe).
func (h *Handlers) Ping(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"test": "success"})
}

// SubmitTransaction answers POST /submit_transaction (spec.md §6).
func (h *Handlers) SubmitTransaction(c *fiber.Ctx) error {
	var req mmodel.SubmitTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return httpadapter.WithError(c, err)
	}

	if err := validate.Struct(req); err != nil {
		return httpadapter.WithError(c, err)
	}

	t, err := req.SolTransaction.ToTransaction()
	if err != nil {
		return httpadapter.WithError(c, err)
	}

	logger := rollupctx.LoggerFromContext(c.UserContext())
	logger.Infof("http: submit_transaction sender=%s", req.Sender)

	if h.Idempotency != nil {
		dup, err := h.Idempotency.SeenBefore(c.UserContext(), t.Hash().String())
		if err == nil && dup {
			return c.Status(fiber.StatusOK).JSON(httpadapter.Envelope{
				Status: "Success",
				Data:   mmodel.SubmitTransactionResponse{Message: "already submitted"},
			})
		}
	}

	result := h.Sequencer.Submit(t)
	if result.Err != nil {
		return httpadapter.WithError(c, result.Err)
	}

	return c.Status(fiber.StatusOK).JSON(httpadapter.Envelope{
		Status: "Success",
		Data:   mmodel.SubmitTransactionResponse{Message: result.Message},
	})
}

// GetTransaction answers POST /get_transaction (spec.md §6).
func (h *Handlers) GetTransaction(c *fiber.Ctx) error {
	var req mmodel.GetTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return httpadapter.WithError(c, err)
	}

	if err := validate.Struct(req); err != nil {
		return httpadapter.WithError(c, err)
	}

	raw, err := hex.DecodeString(req.GetTx)
	if err != nil || len(raw) != 32 {
		return c.Status(fiber.StatusBadRequest).JSON(httpadapter.Envelope{
			Status: "Error",
			Data:   fiber.Map{"message": "get_tx must be a 32-byte hex transaction hash"},
		})
	}

	var hash tx.Hash

	copy(hash[:], raw)

	found, ok := h.Store.GetTx(hash)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(httpadapter.Envelope{
			Status: "Error",
			Data:   fiber.Map{"message": "transaction not found"},
		})
	}

	return c.Status(fiber.StatusOK).JSON(httpadapter.Envelope{
		Status: "Success",
		Data:   fiber.Map{"hash": found.Hash().String(), "account_keys": len(found.Message.AccountKeys)},
	})
}

// InitDelegationService answers POST /init_delegation_service (spec.md
// §6): registers the raw 64-byte signing-material blob in the request
// body exactly as AddDelegationSigner does. Signers registered earlier
// under other public keys stay registered.
func (h *Handlers) InitDelegationService(c *fiber.Ctx) error {
	return h.registerSigner(c)
}

// AddDelegationSigner answers POST /add_delegation_signer (spec.md §6).
func (h *Handlers) AddDelegationSigner(c *fiber.Ctx) error {
	return h.registerSigner(c)
}

func (h *Handlers) registerSigner(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) != 64 {
		return httpadapter.WithError(c, errBadSigningMaterial)
	}

	priv := ed25519.PrivateKey(append([]byte(nil), body...))
	pub := priv.Public().(ed25519.PublicKey)

	var pubKey account.Key

	copy(pubKey[:], pub)

	h.Delegation.RegisterSigner(delegation.Signer{PublicKey: pubKey, PrivateKey: priv})

	return c.SendStatus(fiber.StatusOK)
}
