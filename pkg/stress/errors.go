package stress

import (
	"errors"
	"fmt"
)

// ErrUndefinedFeature is returned when a statistic the score depends on has
// no data, e.g. no voiced frames were found.
var ErrUndefinedFeature = errors.New("undefined feature")

// ComputationError wraps an unexpected numeric failure during scoring.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("stress computation failed in %s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
