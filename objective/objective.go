// Package objective provides gradient functions for custom boosting
// objectives. Adapt them with booster.LabelObjective.
package objective

import (
	"math"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

func check(op string, preds, labels []float32) error {
	if len(preds) == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(preds) != len(labels) {
		return errors.NewDimensionError(op, len(preds), len(labels), 0)
	}
	return nil
}

// SquaredError returns the gradients of 1/2 (pred - label)^2.
func SquaredError(preds, labels []float32) (grad, hess []float32, err error) {
	if err := check("SquaredError", preds, labels); err != nil {
		return nil, nil, err
	}
	grad = make([]float32, len(preds))
	hess = make([]float32, len(preds))
	for i, p := range preds {
		grad[i] = p - labels[i]
		hess[i] = 1
	}
	return grad, hess, nil
}

// Logistic returns the gradients of the binary log loss. preds are the
// model's probabilities; they are clamped away from 0 and 1 so the hessian
// stays positive.
func Logistic(preds, labels []float32) (grad, hess []float32, err error) {
	if err := check("Logistic", preds, labels); err != nil {
		return nil, nil, err
	}
	const eps = 1e-16
	grad = make([]float32, len(preds))
	hess = make([]float32, len(preds))
	for i, p := range preds {
		q := math.Min(math.Max(float64(p), eps), 1-eps)
		grad[i] = float32(q - float64(labels[i]))
		hess[i] = float32(math.Max(q*(1-q), eps))
	}
	return grad, hess, nil
}
