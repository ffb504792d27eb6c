package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// toVec converts v to a float64 vector, applying fn to each element when set.
// An empty slice yields nil.
func toVec(v []float32, fn func(float64) float64) *mat.VecDense {
	if len(v) == 0 {
		return nil
	}
	data := make([]float64, len(v))
	for i, x := range v {
		data[i] = float64(x)
		if fn != nil {
			data[i] = fn(data[i])
		}
	}
	return mat.NewVecDense(len(data), data)
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// RMSEMargin scores raw regression margins against labels.
func RMSEMargin(margin, labels []float32) (float64, error) {
	return RMSE(toVec(labels, nil), toVec(margin, nil))
}

// MAEMargin scores raw regression margins against labels.
func MAEMargin(margin, labels []float32) (float64, error) {
	return MAE(toVec(labels, nil), toVec(margin, nil))
}

// LogLossMargin applies the logistic transform to margins and returns the
// binary log loss.
func LogLossMargin(margin, labels []float32) (float64, error) {
	return BinaryLogLoss(toVec(labels, nil), toVec(margin, sigmoid))
}

// ErrorRateMargin counts a row as positive when its margin is above zero,
// which matches a probability threshold of 0.5.
func ErrorRateMargin(margin, labels []float32) (float64, error) {
	return ErrorRate(toVec(labels, nil), toVec(margin, sigmoid), 0.5)
}
