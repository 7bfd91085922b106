package commission

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSaleAmount     = errors.New("invalid sale amount")
	ErrCustomRateOutOfRange  = errors.New("custom commission rate out of range")
	ErrCreatorRateBelowFloor = errors.New("creator rate below sustainable floor")
	ErrInvalidRefundAmount   = errors.New("invalid refund amount")
	ErrInvalidTierTable      = errors.New("invalid commission tier table")
)

// ValidationError is returned for inputs the engine refuses to price.
// Callers must not retry it.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...interface{}) error {
	return &ValidationError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
