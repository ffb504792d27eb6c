package parameters

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Interval is a range of real numbers whose bounds may be open or closed.
// Use math.Inf for unbounded ends.
type Interval struct {
	Min, Max                   float64
	MinInclusive, MaxInclusive bool
}

// NewClosedClosed returns [min, max].
func NewClosedClosed(min, max float64) Interval {
	return Interval{Min: min, Max: max, MinInclusive: true, MaxInclusive: true}
}

// NewOpenClosed returns (min, max].
func NewOpenClosed(min, max float64) Interval {
	return Interval{Min: min, Max: max, MaxInclusive: true}
}

// NewClosedOpen returns [min, max).
func NewClosedOpen(min, max float64) Interval {
	return Interval{Min: min, Max: max, MinInclusive: true}
}

// NewOpenOpen returns (min, max).
func NewOpenOpen(min, max float64) Interval {
	return Interval{Min: min, Max: max}
}

var (
	unitClosed   = NewClosedClosed(0, 1)
	unitOpenLow  = NewOpenClosed(0, 1)
	unitOpen     = NewOpenOpen(0, 1)
	nonNegative  = NewClosedOpen(0, math.Inf(1))
	tweedieRange = NewOpenOpen(1, 2)
)

// Contains reports whether v lies in the interval. NaN is never contained.
func (i Interval) Contains(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	lowOK := v > i.Min || (i.MinInclusive && v == i.Min)
	highOK := v < i.Max || (i.MaxInclusive && v == i.Max)
	return lowOK && highOK
}

// String renders the interval in bracket notation, e.g. "[0.0, 1.0]".
func (i Interval) String() string {
	open, closeB := "(", ")"
	if i.MinInclusive {
		open = "["
	}
	if i.MaxInclusive {
		closeB = "]"
	}
	return open + formatBound(i.Min) + ", " + formatBound(i.Max) + closeB
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	d := decimal.NewFromFloat(v)
	if d.Exponent() >= 0 {
		return d.StringFixed(1)
	}
	return d.String()
}

// Validate returns a ValidationError naming the parameter when value is
// outside the interval.
func (i Interval) Validate(value float64, name string) error {
	if i.Contains(value) {
		return nil
	}
	return errors.NewValidationError(name, "must be within "+i.String(), value)
}

func (i Interval) validate32(value float32, name string) error {
	if i.Contains(float64(value)) {
		return nil
	}
	return errors.NewValidationError(name, "must be within "+i.String(), value)
}
