package ukf

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNonPositiveDefinite = errors.New("covariance is not positive semi-definite")
	ErrMeanDidNotConverge  = errors.New("rotation mean did not converge")
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrUnconfiguredNoise   = errors.New("measurement noise not configured")
	ErrInactiveField       = errors.New("field is not active")
	ErrInvalidParams       = errors.New("invalid transform parameters")
	ErrMissingPredictor    = errors.New("missing prediction function")
	ErrInvalidSchema       = errors.New("invalid schema")
)

// FieldError reports a field accessed through a vector whose layout does not
// carry it.
type FieldError struct {
	Schema string
	Label  string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Schema, e.Label, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
