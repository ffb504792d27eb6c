package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError reports NaN or Inf values produced by a
// caller-supplied computation, such as a custom objective's gradients.
type NumericalInstabilityError struct {
	Operation string    // where the values came from, e.g. "custom_objective.gradient"
	Values    []float64 // first offending values
	Index     int       // position of the first offending value
	Iteration int       // boosting round, -1 if not applicable
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("xgboost: numerical instability detected in %s at iteration %d, index %d. Values: [%s]",
		e.Operation, e.Iteration, e.Index, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, index, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Index:     index,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// CheckFinite32 returns a NumericalInstabilityError if values contain NaN or Inf.
// At most ten offending values are collected.
func CheckFinite32(operation string, values []float32, iteration int) error {
	var bad []float64
	first := -1
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if first < 0 {
				first = i
			}
			bad = append(bad, f)
			if len(bad) >= 10 {
				break
			}
		}
	}
	if first >= 0 {
		return NewNumericalInstabilityError(operation, bad, first, iteration)
	}
	return nil
}
