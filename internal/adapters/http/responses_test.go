package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/based-rollup/sequencer/internal/apperr"
)

func newTestApp(err error) *fiber.App {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return WithError(c, err) })

	return app
}

func doRequest(t *testing.T, app *fiber.App) (int, Envelope) {
	t.Helper()

	resp, reqErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, reqErr)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))

	return resp.StatusCode, env
}

func TestWithError_MalformedTransaction_Returns400(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(apperr.NewMalformed("bad tx", nil)))

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Error", env.Status)
}

func TestWithError_DelegationInsufficient_Returns402(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(apperr.NewDelegationInsufficient("insufficient", nil)))

	assert.Equal(t, fiber.StatusPaymentRequired, status)
	assert.Equal(t, "Error", env.Status)
}

func TestWithError_VMExecution_ReturnsSuccessWithMessage(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(apperr.NewVMExecution("trapped", nil)))

	assert.Equal(t, fiber.StatusOK, status, "a committed-but-failed execution must still report 200")
	assert.Equal(t, "Success", env.Status)
}

func TestWithError_RPCUnavailable_Returns503(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(apperr.NewRPCUnavailable("rpc down", nil)))

	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "Error", env.Status)
}

func TestWithError_NoSignerRegistered_Returns422(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(apperr.NoSignerRegisteredError{User: "abc"}))

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "Error", env.Status)
}

func TestWithError_UnknownError_Returns400(t *testing.T) {
	t.Parallel()

	status, env := doRequest(t, newTestApp(errors.New("decode failure")))

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Error", env.Status)
}
