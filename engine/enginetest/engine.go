// Package enginetest provides a deterministic in-memory implementation of
// engine.Full for tests.
//
// The model is additive and linear: every boosting round adds a bias and one
// weight per feature, fitted by a single Newton step on the supplied
// gradients. This keeps SHAP-style contributions exact (they sum to the
// margin) and makes interaction matrices diagonal, so the facade's shape and
// consistency logic can be checked without libxgboost.
//
// Failures can be injected per call name with FailOn and FailAfter; handle
// accounting is exposed through LiveBoosters and LiveDatasets.
package enginetest

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Engine is safe for concurrent use; each call holds one engine-wide lock.
type Engine struct {
	mu       sync.Mutex
	next     uintptr
	boosters map[engine.BoosterHandle]*model
	matrices map[engine.DatasetHandle]*matrix
	failures map[string]*failure
	calls    map[string]int
}

type failure struct {
	after   int
	message string
}

type matrix struct {
	x    *mat.Dense
	info map[string][]float32
}

var _ engine.Full = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{
		boosters: make(map[engine.BoosterHandle]*model),
		matrices: make(map[engine.DatasetHandle]*matrix),
		failures: make(map[string]*failure),
		calls:    make(map[string]int),
	}
}

// FailOn makes the next call named op (e.g. "XGBoosterSetParam") fail with
// message.
func (e *Engine) FailOn(op, message string) {
	e.FailAfter(op, 0, message)
}

// FailAfter lets n calls named op succeed and fails the one after.
func (e *Engine) FailAfter(op string, n int, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[op] = &failure{after: n, message: message}
}

// Calls reports how many times op was invoked, failed calls included.
func (e *Engine) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// LiveBoosters reports how many booster handles are allocated.
func (e *Engine) LiveBoosters() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.boosters)
}

// LiveDatasets reports how many dataset handles are allocated.
func (e *Engine) LiveDatasets() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.matrices)
}

// Params returns the effective parameters of a booster.
func (e *Engine) Params(h engine.BoosterHandle) map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.boosters[h]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m.Params))
	for _, p := range m.Params {
		out[p.Key] = p.Value
	}
	return out
}

// EvalMetrics returns the configured evaluation metrics in order.
func (e *Engine) EvalMetrics(h engine.BoosterHandle) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.boosters[h]
	if !ok {
		return nil
	}
	return append([]string(nil), m.Metrics...)
}

// NumRounds reports how many rounds the booster holds.
func (e *Engine) NumRounds(h engine.BoosterHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.boosters[h]
	if !ok {
		return 0
	}
	return len(m.Rounds)
}

// enter records a call and returns the injected failure, if one is due.
// Callers hold e.mu.
func (e *Engine) enter(op string) error {
	e.calls[op]++
	f, ok := e.failures[op]
	if !ok {
		return nil
	}
	if f.after > 0 {
		f.after--
		return nil
	}
	delete(e.failures, op)
	return errors.NewEngineError(op, f.message)
}

func (e *Engine) booster(op string, h engine.BoosterHandle) (*model, error) {
	if err := e.enter(op); err != nil {
		return nil, err
	}
	m, ok := e.boosters[h]
	if !ok {
		return nil, errors.NewEngineError(op, "invalid booster handle")
	}
	return m, nil
}

func (e *Engine) matrix(op string, d engine.DatasetHandle) (*matrix, error) {
	dm, ok := e.matrices[d]
	if !ok {
		return nil, errors.NewEngineError(op, fmt.Sprintf("invalid dmatrix handle %d", d))
	}
	return dm, nil
}

func (e *Engine) BoosterCreate(cache []engine.DatasetHandle) (engine.BoosterHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterCreate"
	if err := e.enter(op); err != nil {
		return 0, err
	}
	m := newModel()
	for _, d := range cache {
		dm, err := e.matrix(op, d)
		if err != nil {
			return 0, err
		}
		if m.NumFeature == 0 {
			_, m.NumFeature = dm.x.Dims()
		}
		m.cache = append(m.cache, d)
	}
	e.next++
	h := engine.BoosterHandle(e.next)
	e.boosters[h] = m
	return h, nil
}

func (e *Engine) BoosterFree(h engine.BoosterHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.booster("XGBoosterFree", h); err != nil {
		return err
	}
	delete(e.boosters, h)
	return nil
}

func (e *Engine) BoosterSetParam(h engine.BoosterHandle, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterSetParam"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	if err := m.setParam(key, value); err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	return nil
}

func (e *Engine) BoosterUpdateOneIter(h engine.BoosterHandle, iter int, dtrain engine.DatasetHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterUpdateOneIter"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	dm, err := e.matrix(op, dtrain)
	if err != nil {
		return err
	}
	labels := dm.info["label"]
	rows, _ := dm.x.Dims()
	if len(labels) != rows {
		return errors.NewEngineError(op, "label is not set on the training matrix")
	}
	if err := m.checkFeatures(dm.x); err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	grad, hess, err := m.gradients(m.margins(dm.x, 0, len(m.Rounds)), labels)
	if err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	m.boost(dm.x, grad, hess)
	return nil
}

func (e *Engine) BoosterBoostOneIter(h engine.BoosterHandle, dtrain engine.DatasetHandle, grad, hess []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterBoostOneIter"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	dm, err := e.matrix(op, dtrain)
	if err != nil {
		return err
	}
	rows, _ := dm.x.Dims()
	if len(grad) != rows || len(hess) != rows {
		return errors.NewEngineError(op, fmt.Sprintf("gradient size %d and hessian size %d must match %d rows", len(grad), len(hess), rows))
	}
	if err := m.checkFeatures(dm.x); err != nil {
		return errors.NewEngineError(op, err.Error())
	}
	g := make([]float64, rows)
	hs := make([]float64, rows)
	for i := range grad {
		g[i] = float64(grad[i])
		hs[i] = float64(hess[i])
	}
	m.boost(dm.x, g, hs)
	return nil
}

func (e *Engine) BoosterEvalOneIter(h engine.BoosterHandle, iter int, dmats []engine.DatasetHandle, names []string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterEvalOneIter"
	m, err := e.booster(op, h)
	if err != nil {
		return "", err
	}
	if len(dmats) != len(names) {
		return "", errors.NewEngineError(op, "number of datasets and names differ")
	}
	line := "[" + strconv.Itoa(iter) + "]"
	for i, d := range dmats {
		dm, err := e.matrix(op, d)
		if err != nil {
			return "", err
		}
		if err := m.checkFeatures(dm.x); err != nil {
			return "", errors.NewEngineError(op, err.Error())
		}
		preds := m.transform(m.margins(dm.x, 0, len(m.Rounds)))
		for _, metric := range m.evalMetrics() {
			score, err := evaluate(metric, preds, dm.info["label"])
			if err != nil {
				return "", errors.NewEngineError(op, err.Error())
			}
			line += "\t" + names[i] + "-" + metric + ":" + strconv.FormatFloat(score, 'g', 6, 64)
		}
	}
	return line, nil
}

func (e *Engine) BoosterGetAttr(h engine.BoosterHandle, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.booster("XGBoosterGetAttr", h)
	if err != nil {
		return "", false, err
	}
	v, ok := m.Attrs[key]
	return v, ok, nil
}

func (e *Engine) BoosterSetAttr(h engine.BoosterHandle, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.booster("XGBoosterSetAttr", h)
	if err != nil {
		return err
	}
	m.Attrs[key] = value
	return nil
}

// BoosterGetAttrNames returns names in map order, which is unspecified.
func (e *Engine) BoosterGetAttrNames(h engine.BoosterHandle) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := e.booster("XGBoosterGetAttrNames", h)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.Attrs))
	for k := range m.Attrs {
		names = append(names, k)
	}
	return names, nil
}

func (e *Engine) BoosterGetStrFeatureInfo(h engine.BoosterHandle, field string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterGetStrFeatureInfo"
	m, err := e.booster(op, h)
	if err != nil {
		return nil, err
	}
	if !knownFeatureField(field) {
		return nil, errors.NewEngineError(op, "unknown feature info field: "+field)
	}
	return append([]string{}, m.FeatureInfo[field]...), nil
}

func (e *Engine) BoosterSetStrFeatureInfo(h engine.BoosterHandle, field string, values []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterSetStrFeatureInfo"
	m, err := e.booster(op, h)
	if err != nil {
		return err
	}
	if !knownFeatureField(field) {
		return errors.NewEngineError(op, "unknown feature info field: "+field)
	}
	if len(values) == 0 {
		delete(m.FeatureInfo, field)
		return nil
	}
	if m.NumFeature > 0 && len(values) != m.NumFeature {
		return errors.NewEngineError(op, fmt.Sprintf("%s has %d entries, model has %d features", field, len(values), m.NumFeature))
	}
	m.FeatureInfo[field] = append([]string(nil), values...)
	return nil
}

func knownFeatureField(field string) bool {
	return field == "feature_name" || field == "feature_type"
}

func (e *Engine) DMatrixCreateFromMat(data []float32, rows, cols int, missing float32) (engine.DatasetHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixCreateFromMat"
	if err := e.enter(op); err != nil {
		return 0, err
	}
	if rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return 0, errors.NewEngineError(op, fmt.Sprintf("data length %d does not match %dx%d", len(data), rows, cols))
	}
	values := make([]float64, len(data))
	missingIsNaN := math.IsNaN(float64(missing))
	for i, v := range data {
		if v == missing || (missingIsNaN && math.IsNaN(float64(v))) {
			values[i] = math.NaN()
			continue
		}
		values[i] = float64(v)
	}
	e.next++
	d := engine.DatasetHandle(e.next)
	e.matrices[d] = &matrix{
		x:    mat.NewDense(rows, cols, values),
		info: make(map[string][]float32),
	}
	return d, nil
}

func (e *Engine) DMatrixFree(d engine.DatasetHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixFree"
	if err := e.enter(op); err != nil {
		return err
	}
	if _, err := e.matrix(op, d); err != nil {
		return err
	}
	delete(e.matrices, d)
	return nil
}

func (e *Engine) DMatrixNumRow(d engine.DatasetHandle) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixNumRow"
	if err := e.enter(op); err != nil {
		return 0, err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return 0, err
	}
	r, _ := dm.x.Dims()
	return r, nil
}

func (e *Engine) DMatrixNumCol(d engine.DatasetHandle) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixNumCol"
	if err := e.enter(op); err != nil {
		return 0, err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return 0, err
	}
	_, c := dm.x.Dims()
	return c, nil
}

func (e *Engine) DMatrixSetFloatInfo(d engine.DatasetHandle, field string, values []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixSetFloatInfo"
	if err := e.enter(op); err != nil {
		return err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return err
	}
	rows, _ := dm.x.Dims()
	if len(values) != rows {
		return errors.NewEngineError(op, fmt.Sprintf("%s has %d entries, matrix has %d rows", field, len(values), rows))
	}
	dm.info[field] = append([]float32(nil), values...)
	return nil
}

func (e *Engine) DMatrixGetFloatInfo(d engine.DatasetHandle, field string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGDMatrixGetFloatInfo"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return nil, err
	}
	return append([]float32{}, dm.info[field]...), nil
}
