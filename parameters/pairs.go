// Package parameters holds validated, immutable booster configurations and
// their translation into the string key/value pairs the engine accepts.
//
// Every group is produced by a builder whose Build method checks all fields
// at once:
//
//	tree, err := parameters.NewTreeBoosterParametersBuilder().
//	    Eta(0.1).
//	    MaxDepth(4).
//	    Build()
//
// Numbers are rendered as the shortest exact decimal of the float32 value and
// enums as fixed lowercase tokens, so AsStringPairs is deterministic.
package parameters

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Pair is one engine parameter.
type Pair struct {
	Key   string
	Value string
}

// formatFloat falls back to strconv for NaN and infinities, which decimal
// cannot represent.
func formatFloat(v float32) string {
	if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 32)
	}
	return decimal.NewFromFloat32(v).String()
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func oneOf[T ~string](name string, v T, allowed ...T) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	tokens := make([]string, len(allowed))
	for i, a := range allowed {
		tokens[i] = string(a)
	}
	return newEnumError(name, string(v), tokens)
}

func newEnumError(name, value string, allowed []string) error {
	return errors.NewValidationError(name, "must be one of "+strings.Join(allowed, "|"), value)
}
