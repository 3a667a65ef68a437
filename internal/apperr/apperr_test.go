package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMalformed_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := NewMalformed("bad transaction", cause)

	assert.Equal(t, "bad transaction", err.Error())
	assert.Equal(t, "MALFORMED_TRANSACTION", err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestNewDelegationInsufficient_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("no escrow")
	err := NewDelegationInsufficient("insufficient delegation", cause)

	assert.Equal(t, "insufficient delegation", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNewVMExecution_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("vm trap")
	err := NewVMExecution("execution failed", cause)

	assert.Equal(t, "execution failed", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNewRPCUnavailable_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: timeout")
	err := NewRPCUnavailable("rpc unavailable", cause)

	assert.Equal(t, "rpc unavailable", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNoSignerRegisteredError_MessageIncludesUser(t *testing.T) {
	t.Parallel()

	err := NoSignerRegisteredError{User: "abc123"}
	assert.Contains(t, err.Error(), "abc123")
}
