package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input or a request the order's state does not allow.
	ErrValidation = errors.New("validation error")

	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
	ErrAlreadyRequested  = fmt.Errorf("%w: cancellation already requested", ErrValidation)
	ErrNoRequestPending  = fmt.Errorf("%w: no cancellation request pending", ErrValidation)

	ErrNotFound         = errors.New("order not found")
	ErrForbidden        = errors.New("order belongs to another account")
	ErrConflict         = errors.New("order was modified concurrently")
	ErrStoreUnavailable = errors.New("order store unavailable")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
