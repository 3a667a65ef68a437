package vm

import "errors"

var (
	errInsufficientFunds     = errors.New("vm: insufficient funds")
	errMalformedTokenAccount = errors.New("vm: malformed token account")
	errNotATokenAccount      = errors.New("vm: source account is not owned by the token program")
)
