package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// logLossEps は log(0) を避けるためのクリッピング幅
const logLossEps = 1e-15

// BinaryLogLoss は 0/1 ラベルと陽性確率から二値交差エントロピーを計算する
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yProb)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		if y != 0 && y != 1 {
			return 0, errors.NewValidationError("labels", "must be 0 or 1", y)
		}
		p := math.Min(math.Max(yProb.AtVec(i), logLossEps), 1-logLossEps)
		sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return sum / float64(n), nil
}

// ErrorRate は確率が threshold を超えた行を陽性とみなしたときの誤分類率を計算する
func ErrorRate(yTrue, yProb *mat.VecDense, threshold float64) (float64, error) {
	n, err := checkPair("ErrorRate", yTrue, yProb)
	if err != nil {
		return 0, err
	}

	var wrong int
	for i := 0; i < n; i++ {
		positive := yProb.AtVec(i) > threshold
		if positive != (yTrue.AtVec(i) > 0.5) {
			wrong++
		}
	}
	return float64(wrong) / float64(n), nil
}
