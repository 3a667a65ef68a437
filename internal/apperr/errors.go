// Package apperr defines the closed set of error kinds from spec.md §7,
// in the shape of the teacher's common/errors.go typed-error pattern.
package apperr

import "fmt"

// MalformedTransactionError — failed sanitization, unknown programs, or
// decode failure. Reported to the client; the transaction is never
// logged and no locks are acquired.
type MalformedTransactionError struct {
	Code    string
	Title   string
	Message string
	Err     error
}

func (e MalformedTransactionError) Error() string { return e.Message }
func (e MalformedTransactionError) Unwrap() error  { return e.Err }

// DelegationInsufficientError — a deposit attempt failed or was declined.
// Surfaced to the client; the transaction is never logged.
type DelegationInsufficientError struct {
	Code    string
	Title   string
	Message string
	Err     error
}

func (e DelegationInsufficientError) Error() string { return e.Message }
func (e DelegationInsufficientError) Unwrap() error  { return e.Err }

// VMExecutionError — a runtime error during instruction processing. Per
// spec.md §7 the transaction is still committed with the snapshots
// untouched; this error is only ever reported alongside a successful
// submit-response, never used to reject admission.
type VMExecutionError struct {
	Code    string
	Title   string
	Message string
	Err     error
}

func (e VMExecutionError) Error() string { return e.Message }
func (e VMExecutionError) Unwrap() error  { return e.Err }

// RPCUnavailableError — the base-chain RPC did not respond. The State
// Store panics on this (see rollupdb); the Sequencer retries a failed
// deposit submission with bounded backoff and then rejects the
// transaction with a DelegationInsufficientError wrapping this error.
type RPCUnavailableError struct {
	Code    string
	Title   string
	Message string
	Err     error
}

func (e RPCUnavailableError) Error() string { return e.Message }
func (e RPCUnavailableError) Unwrap() error  { return e.Err }

// NoSignerRegisteredError — delegation was asked to build a transaction
// for a user with no registered signing material. Never retried.
type NoSignerRegisteredError struct {
	User string
}

func (e NoSignerRegisteredError) Error() string {
	return fmt.Sprintf("no signer registered for user %s", e.User)
}

// NewMalformed is a constructor convenience, mirroring the teacher's
// Wrap*/New* helpers in common/errors.go.
func NewMalformed(message string, err error) MalformedTransactionError {
	return MalformedTransactionError{Code: "MALFORMED_TRANSACTION", Title: "Malformed Transaction", Message: message, Err: err}
}

func NewDelegationInsufficient(message string, err error) DelegationInsufficientError {
	return DelegationInsufficientError{Code: "DELEGATION_INSUFFICIENT", Title: "Delegation Insufficient", Message: message, Err: err}
}

func NewVMExecution(message string, err error) VMExecutionError {
	return VMExecutionError{Code: "VM_EXECUTION_FAILURE", Title: "VM Execution Failure", Message: message, Err: err}
}

func NewRPCUnavailable(message string, err error) RPCUnavailableError {
	return RPCUnavailableError{Code: "RPC_UNAVAILABLE", Title: "RPC Unavailable", Message: message, Err: err}
}
