package domainerrors

import (
	"errors"

	"alumnus/pkg/platform/sentinel"
)

// Translate maps a store error to a coded error. Errors that already carry a
// code pass through unchanged so translation can happen at any layer.
func Translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Wrap(err, CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return Wrap(err, CodeConflict, msg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return Wrap(err, CodeInvariantViolation, msg)
	default:
		return Wrap(err, CodeStorage, msg)
	}
}
