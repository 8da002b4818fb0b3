package ledger

import "errors"

// Sentinel errors returned by Ledger mutators (spec.md §5, Design
// Notes §9: explicit typed errors, not string-matched error messages
// like the teacher's internal/database/repository.go).
var (
	ErrInsufficientCash = errors.New("ledger: insufficient cash")
	ErrUnknownPosition  = errors.New("ledger: unknown position")
	ErrMarginBreach     = errors.New("ledger: margin requirement breached")
)
