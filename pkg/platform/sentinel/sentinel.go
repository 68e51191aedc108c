package sentinel

import "errors"

// Stores return these facts, optionally wrapped with %w; services decide what
// they mean for the caller. Input validation errors belong in pkg/domain-errors.
//
//   - ErrNotFound: no row for the key
//   - ErrConflict: a unique constraint rejected the write
//   - ErrInvalidState: the row exists but cannot take the requested transition
//   - ErrUnavailable: the backend failed; the transaction was rolled back
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
