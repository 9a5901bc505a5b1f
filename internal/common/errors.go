// Package common defines shared constants and sentinel errors used across
// PackSmith components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// User-input errors; handlers re-prompt the current flow step.
	ErrorValidation = errors.New("validation error")

	// Quota guard tripped; the current attempt stops, flow state stays put.
	ErrorQuotaExceeded = errors.New("quota exceeded")

	// The remote pack API rejected a call or was unreachable.
	ErrorRemote = errors.New("remote pack service error")

	// Local ledger write failed after a successful remote mutation.
	// Logged and swallowed: remote success is user-visible success.
	ErrorLedgerWrite = errors.New("ledger write error")

	// A callback referenced flow state that no longer exists.
	ErrorStateExpired = errors.New("state expired")
)
