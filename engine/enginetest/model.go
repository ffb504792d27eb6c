package enginetest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/core/parallel"
	"github.com/YuminosukeSato/xgboost/engine"
)

// parallelThreshold is the row count below which scoring stays on the
// calling goroutine.
const parallelThreshold = 256

type param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// round is one boosting step: margin += Bias + Weights·x.
type round struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
	Cover   float64   `json:"cover"`
}

type model struct {
	Params      []param             `json:"params"`
	Metrics     []string            `json:"metrics"`
	Attrs       map[string]string   `json:"attributes"`
	FeatureInfo map[string][]string `json:"feature_info"`
	NumFeature  int                 `json:"num_feature"`
	Rounds      []round             `json:"rounds"`

	cache []engine.DatasetHandle
}

func newModel() *model {
	return &model{
		Attrs:       make(map[string]string),
		FeatureInfo: make(map[string][]string),
	}
}

var numericParams = map[string]bool{
	"eta": true, "learning_rate": true, "gamma": true, "lambda": true, "alpha": true,
	"base_score": true, "max_depth": true, "min_child_weight": true, "max_delta_step": true,
	"subsample": true, "colsample_bytree": true, "colsample_bylevel": true, "colsample_bynode": true,
	"sketch_eps": true, "scale_pos_weight": true, "max_leaves": true, "max_bin": true,
	"num_parallel_tree": true, "rate_drop": true, "skip_drop": true, "one_drop": true,
	"tweedie_variance_power": true, "num_class": true, "seed": true, "verbosity": true, "nthread": true,
}

func (m *model) setParam(key, value string) error {
	if numericParams[key] {
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("invalid value %q for parameter %s", value, key)
		}
	}
	if key == "eval_metric" {
		for _, existing := range m.Metrics {
			if existing == value {
				return nil
			}
		}
		m.Metrics = append(m.Metrics, value)
		return nil
	}
	for i := range m.Params {
		if m.Params[i].Key == key {
			m.Params[i].Value = value
			return nil
		}
	}
	m.Params = append(m.Params, param{Key: key, Value: value})
	return nil
}

func (m *model) param(key, def string) string {
	for _, p := range m.Params {
		if p.Key == key {
			return p.Value
		}
	}
	return def
}

func (m *model) floatParam(key string, def float64) float64 {
	v, err := strconv.ParseFloat(m.param(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func (m *model) objective() string {
	return m.param("objective", "reg:squarederror")
}

func (m *model) logistic() bool {
	switch m.objective() {
	case "binary:logistic", "reg:logistic", "binary:logitraw":
		return true
	}
	return false
}

func (m *model) baseMargin() float64 {
	bs := m.floatParam("base_score", 0.5)
	if m.logistic() {
		bs = math.Min(math.Max(bs, 1e-7), 1-1e-7)
		return math.Log(bs / (1 - bs))
	}
	if m.objective() == "count:poisson" {
		return math.Log(math.Max(bs, 1e-7))
	}
	return bs
}

func (m *model) workers() int {
	return int(m.floatParam("nthread", 0))
}

func (m *model) checkFeatures(x *mat.Dense) error {
	_, cols := x.Dims()
	if m.NumFeature != 0 && cols != m.NumFeature {
		return fmt.Errorf("feature shape mismatch, expected: %d, got %d", m.NumFeature, cols)
	}
	return nil
}

// rounds returns the rounds in [begin, end); end <= 0 means all.
func (m *model) rounds(begin, end int) []round {
	if end <= 0 || end > len(m.Rounds) {
		end = len(m.Rounds)
	}
	if begin < 0 {
		begin = 0
	}
	if begin >= end {
		return nil
	}
	return m.Rounds[begin:end]
}

func value(x *mat.Dense, i, j int) float64 {
	v := x.At(i, j)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// contributions fills out (rows x cols+1) with per-feature contributions and
// the bias column last.
func (m *model) contributions(x *mat.Dense, begin, end int) *mat.Dense {
	rows, cols := x.Dims()
	rs := m.rounds(begin, end)
	total := make([]float64, cols)
	bias := m.baseMargin()
	for _, r := range rs {
		floats.Add(total, r.Weights)
		bias += r.Bias
	}
	out := mat.NewDense(rows, cols+1, nil)
	parallel.ParallelizeWithThreshold(rows, parallelThreshold, m.workers(), func(start, stop int) {
		for i := start; i < stop; i++ {
			for j := 0; j < cols; j++ {
				out.Set(i, j, total[j]*value(x, i, j))
			}
			out.Set(i, cols, bias)
		}
	})
	return out
}

func (m *model) margins(x *mat.Dense, begin, end int) []float64 {
	c := m.contributions(x, begin, end)
	rows, _ := c.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = floats.Sum(c.RawRowView(i))
	}
	return out
}

func (m *model) transform(margins []float64) []float64 {
	out := make([]float64, len(margins))
	switch m.objective() {
	case "binary:logistic", "reg:logistic":
		for i, v := range margins {
			out[i] = 1 / (1 + math.Exp(-v))
		}
	case "count:poisson", "reg:gamma", "reg:tweedie":
		for i, v := range margins {
			out[i] = math.Exp(v)
		}
	default:
		copy(out, margins)
	}
	return out
}

func (m *model) gradients(margins []float64, labels []float32) ([]float64, []float64, error) {
	grad := make([]float64, len(margins))
	hess := make([]float64, len(margins))
	switch obj := m.objective(); obj {
	case "reg:squarederror":
		for i, v := range margins {
			grad[i] = v - float64(labels[i])
			hess[i] = 1
		}
	case "binary:logistic", "reg:logistic", "binary:logitraw":
		for i, v := range margins {
			p := 1 / (1 + math.Exp(-v))
			grad[i] = p - float64(labels[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}
	case "count:poisson":
		for i, v := range margins {
			p := math.Exp(v)
			grad[i] = p - float64(labels[i])
			hess[i] = p
		}
	default:
		return nil, nil, fmt.Errorf("objective %s is not supported by the in-memory engine", obj)
	}
	return grad, hess, nil
}

// boost appends one round fitted by a damped Newton step per coordinate.
func (m *model) boost(x *mat.Dense, grad, hess []float64) {
	rows, cols := x.Dims()
	if m.NumFeature == 0 {
		m.NumFeature = cols
	}
	eta := m.floatParam("eta", m.floatParam("learning_rate", 0.3))
	lambda := m.floatParam("lambda", 1)
	// Coordinates move together, so each step is shared across them.
	damp := eta / float64(cols+1)

	r := round{Weights: make([]float64, cols)}
	r.Cover = floats.Sum(hess)
	r.Bias = -damp * floats.Sum(grad) / (r.Cover + lambda)
	for j := 0; j < cols; j++ {
		var g, h float64
		for i := 0; i < rows; i++ {
			v := value(x, i, j)
			g += grad[i] * v
			h += hess[i] * v * v
		}
		r.Weights[j] = -damp * g / (h + lambda)
	}
	m.Rounds = append(m.Rounds, r)
}

func (m *model) evalMetrics() []string {
	if len(m.Metrics) > 0 {
		return m.Metrics
	}
	if m.logistic() {
		return []string{"logloss"}
	}
	return []string{"rmse"}
}

func evaluate(metric string, preds []float64, labels []float32) (float64, error) {
	if len(labels) != len(preds) {
		return 0, fmt.Errorf("label is not set for metric %s", metric)
	}
	n := float64(len(preds))
	name, arg, _ := strings.Cut(metric, "@")
	switch name {
	case "rmse":
		var s float64
		for i, p := range preds {
			d := p - float64(labels[i])
			s += d * d
		}
		return math.Sqrt(s / n), nil
	case "mae":
		var s float64
		for i, p := range preds {
			s += math.Abs(p - float64(labels[i]))
		}
		return s / n, nil
	case "logloss":
		var s float64
		for i, p := range preds {
			p = math.Min(math.Max(p, 1e-16), 1-1e-16)
			y := float64(labels[i])
			s -= y*math.Log(p) + (1-y)*math.Log(1-p)
		}
		return s / n, nil
	case "error":
		threshold := 0.5
		if arg != "" {
			t, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid threshold in metric %s", metric)
			}
			threshold = t
		}
		var wrong float64
		for i, p := range preds {
			if (p > threshold) != (labels[i] > 0.5) {
				wrong++
			}
		}
		return wrong / n, nil
	}
	return 0, fmt.Errorf("unknown metric function %s", metric)
}
