package booster

import (
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// Prediction is a flat row-major buffer with its shape.
// len(Values) always equals the product of Shape.
type Prediction struct {
	Values []float32
	Shape  []int
}

// Rows returns the leading dimension.
func (p Prediction) Rows() int {
	if len(p.Shape) == 0 {
		return 0
	}
	return p.Shape[0]
}

// Row returns the values belonging to row i without copying.
func (p Prediction) Row(i int) []float32 {
	rows := p.Rows()
	if rows == 0 {
		return nil
	}
	stride := len(p.Values) / rows
	return p.Values[i*stride : (i+1)*stride]
}

// predictMode selects one BoosterPredict layout. The option bits stay inside
// this file.
type predictMode int

const (
	modeNormal predictMode = iota
	modeMargin
	modeLeaf
	modeContributions
	modeApproxContributions
	modeInteractions
)

func (m predictMode) optionMask() int {
	switch m {
	case modeMargin:
		return engine.OptionOutputMargin
	case modeLeaf:
		return engine.OptionPredictLeaf
	case modeContributions:
		return engine.OptionPredictContributions
	case modeApproxContributions:
		return engine.OptionPredictContributions | engine.OptionApproxContributions
	case modeInteractions:
		return engine.OptionPredictInteractions
	}
	return 0
}

func (b *Booster) predict(d Dataset, mode predictMode) ([]float32, error) {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(d)
	if err := b.live(); err != nil {
		return nil, err
	}
	if err := checkDataset("dataset", d); err != nil {
		return nil, err
	}
	values, err := b.eng.BoosterPredict(b.handle, d.Handle(), mode.optionMask(), 0, false)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	return values, nil
}

func requireRows(d Dataset) (int, error) {
	if err := checkDataset("dataset", d); err != nil {
		return 0, err
	}
	rows := d.NumRows()
	if rows == 0 {
		return 0, errors.NewValidationError("dataset", "must have at least one row", rows)
	}
	return rows, nil
}

func unexpectedLength(n, rows int) error {
	return errors.NewEngineError("XGBoosterPredict",
		"unexpected prediction buffer length "+strconv.Itoa(n)+" for "+strconv.Itoa(rows)+" rows")
}

// vector shapes a plain or margin prediction: (rows,) for single output
// models, (rows, k) when the engine returns k values per row.
func vector(values []float32, rows int) (Prediction, error) {
	n := len(values)
	if rows == 0 || n == rows {
		return Prediction{Values: values, Shape: []int{n}}, nil
	}
	if n%rows != 0 {
		return Prediction{}, unexpectedLength(n, rows)
	}
	return Prediction{Values: values, Shape: []int{rows, n / rows}}, nil
}

func matrix(values []float32, rows int) (Prediction, error) {
	n := len(values)
	if n%rows != 0 {
		return Prediction{}, unexpectedLength(n, rows)
	}
	return Prediction{Values: values, Shape: []int{rows, n / rows}}, nil
}

// Predict returns transformed predictions, e.g. probabilities for
// binary:logistic.
func (b *Booster) Predict(d Dataset) (Prediction, error) {
	values, err := b.predict(d, modeNormal)
	if err != nil {
		return Prediction{}, err
	}
	return vector(values, d.NumRows())
}

// PredictMargin returns untransformed margins.
func (b *Booster) PredictMargin(d Dataset) (Prediction, error) {
	values, err := b.predict(d, modeMargin)
	if err != nil {
		return Prediction{}, err
	}
	return vector(values, d.NumRows())
}

// PredictLeaf returns the leaf index reached in every tree, shaped
// (rows, trees).
func (b *Booster) PredictLeaf(d Dataset) (Prediction, error) {
	rows, err := requireRows(d)
	if err != nil {
		return Prediction{}, err
	}
	values, err := b.predict(d, modeLeaf)
	if err != nil {
		return Prediction{}, err
	}
	return matrix(values, rows)
}

// PredictContributions returns SHAP values shaped (rows, features+1). The
// last column is the bias term, so every row sums to the margin.
func (b *Booster) PredictContributions(d Dataset) (Prediction, error) {
	return b.contributions(d, modeContributions)
}

// PredictApproxContributions is PredictContributions using the approximate
// attribution algorithm.
func (b *Booster) PredictApproxContributions(d Dataset) (Prediction, error) {
	return b.contributions(d, modeApproxContributions)
}

func (b *Booster) contributions(d Dataset, mode predictMode) (Prediction, error) {
	rows, err := requireRows(d)
	if err != nil {
		return Prediction{}, err
	}
	values, err := b.predict(d, mode)
	if err != nil {
		return Prediction{}, err
	}
	return matrix(values, rows)
}

// PredictInteractions returns SHAP interaction values shaped (rows, d, d)
// with d = features+1.
func (b *Booster) PredictInteractions(d Dataset) (Prediction, error) {
	rows, err := requireRows(d)
	if err != nil {
		return Prediction{}, err
	}
	values, err := b.predict(d, modeInteractions)
	if err != nil {
		return Prediction{}, err
	}
	n := len(values)
	if n%rows != 0 {
		return Prediction{}, unexpectedLength(n, rows)
	}
	dim := int(math.Floor(math.Sqrt(float64(n / rows))))
	if rows*dim*dim != n {
		return Prediction{}, unexpectedLength(n, rows)
	}
	return Prediction{Values: values, Shape: []int{rows, dim, dim}}, nil
}

// PredictType selects the output of PredictMatrix.
type PredictType int

const (
	PredictTypeNormal PredictType = iota
	PredictTypeOutputMargin
	PredictTypeContributions
	PredictTypeApproxContributions
	PredictTypeInteractions
	PredictTypeApproxInteractions
	PredictTypeLeafTraining
)

// PredictConfig configures PredictMatrix. IterationEnd of zero means every
// boosted round.
type PredictConfig struct {
	Type           PredictType
	Training       bool
	IterationBegin int
	IterationEnd   int
	StrictShape    bool
}

// JSON renders the NUL terminated configuration the engine expects.
func (c PredictConfig) JSON() string {
	var sb strings.Builder
	sb.WriteString(`{"type":`)
	sb.WriteString(strconv.Itoa(int(c.Type)))
	sb.WriteString(`,"training":`)
	sb.WriteString(strconv.FormatBool(c.Training))
	sb.WriteString(`,"iteration_begin":`)
	sb.WriteString(strconv.Itoa(c.IterationBegin))
	sb.WriteString(`,"iteration_end":`)
	sb.WriteString(strconv.Itoa(c.IterationEnd))
	sb.WriteString(`,"strict_shape":`)
	sb.WriteString(strconv.FormatBool(c.StrictShape))
	sb.WriteString("}\x00")
	return sb.String()
}

func (c PredictConfig) validate() error {
	if c.Type < PredictTypeNormal || c.Type > PredictTypeLeafTraining {
		return errors.NewValidationError("type", "unknown prediction type", int(c.Type))
	}
	if c.IterationBegin < 0 {
		return errors.NewValidationError("iteration_begin", "must be >= 0", c.IterationBegin)
	}
	if c.IterationEnd < 0 {
		return errors.NewValidationError("iteration_end", "must be >= 0", c.IterationEnd)
	}
	if c.IterationEnd > 0 && c.IterationBegin > c.IterationEnd {
		return errors.NewValidationError("iteration_begin", "must not exceed iteration_end", c.IterationBegin)
	}
	return nil
}

// PredictMatrix predicts with cfg and returns the engine reported shape,
// which may have any rank.
func (b *Booster) PredictMatrix(d Dataset, cfg PredictConfig) (Prediction, error) {
	if err := cfg.validate(); err != nil {
		return Prediction{}, err
	}
	return b.PredictMatrixJSON(d, cfg.JSON())
}

// PredictMatrixJSON is PredictMatrix with a raw JSON configuration. A
// missing NUL terminator is appended.
func (b *Booster) PredictMatrixJSON(d Dataset, config string) (Prediction, error) {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(d)
	if err := b.live(); err != nil {
		return Prediction{}, err
	}
	if err := checkDataset("dataset", d); err != nil {
		return Prediction{}, err
	}
	if !strings.HasSuffix(config, "\x00") {
		config += "\x00"
	}
	values, dims, err := b.eng.BoosterPredictFromDMatrix(b.handle, d.Handle(), config)
	if err != nil {
		return Prediction{}, errors.Wrap(err, "predict from dmatrix")
	}

	shape := make([]int, len(dims))
	size := 1
	for i, dim := range dims {
		shape[i] = int(dim)
		size *= int(dim)
	}
	if len(dims) == 0 || size != len(values) {
		return Prediction{}, errors.NewEngineError("XGBoosterPredictFromDMatrix",
			"unexpected prediction buffer length "+strconv.Itoa(len(values))+" for shape "+formatShape(shape))
	}
	b.logger.Debug("Predicted matrix", log.OperationKey, log.OperationPredict, log.ShapeKey, formatShape(shape))
	return Prediction{Values: values, Shape: shape}, nil
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, s := range shape {
		parts[i] = strconv.Itoa(s)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
