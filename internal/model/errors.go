package model

import "errors"

// Failure classes. Package-specific errors wrap one of these so callers and
// metrics can classify a rejection with errors.Is.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPolicyViolation     = errors.New("policy violation")
	ErrTimelock            = errors.New("outside valid time window")
)

// ErrorClass maps an error to a short label for logs and metrics.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrPolicyViolation):
		return "policy"
	case errors.Is(err, ErrTimelock):
		return "timelock"
	default:
		return "error"
	}
}
