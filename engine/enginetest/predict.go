package enginetest

import (
	"encoding/json"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// CachedDatasets reports how many datasets were registered at creation.
func (e *Engine) CachedDatasets(h engine.BoosterHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.boosters[h]
	if !ok {
		return 0
	}
	return len(m.cache)
}

func (e *Engine) BoosterPredict(h engine.BoosterHandle, d engine.DatasetHandle, optionMask int, ntreeLimit uint, training bool) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterPredict"
	m, err := e.booster(op, h)
	if err != nil {
		return nil, err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return nil, err
	}
	if err := m.checkFeatures(dm.x); err != nil {
		return nil, errors.NewEngineError(op, err.Error())
	}

	end := int(ntreeLimit)
	switch {
	case optionMask&engine.OptionPredictInteractions != 0:
		return flatten(m.interactions(dm.x, 0, end)), nil
	case optionMask&engine.OptionPredictContributions != 0:
		return denseValues(m.contributions(dm.x, 0, end)), nil
	case optionMask&engine.OptionPredictLeaf != 0:
		return denseValues(m.leaves(dm.x, 0, end)), nil
	case optionMask&engine.OptionOutputMargin != 0:
		return toFloat32(m.margins(dm.x, 0, end)), nil
	default:
		return toFloat32(m.transform(m.margins(dm.x, 0, end))), nil
	}
}

type predictConfig struct {
	Type           int  `json:"type"`
	Training       bool `json:"training"`
	IterationBegin int  `json:"iteration_begin"`
	IterationEnd   int  `json:"iteration_end"`
	StrictShape    bool `json:"strict_shape"`
}

func (e *Engine) BoosterPredictFromDMatrix(h engine.BoosterHandle, d engine.DatasetHandle, config string) ([]float32, []uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterPredictFromDMatrix"
	m, err := e.booster(op, h)
	if err != nil {
		return nil, nil, err
	}
	dm, err := e.matrix(op, d)
	if err != nil {
		return nil, nil, err
	}
	if err := m.checkFeatures(dm.x); err != nil {
		return nil, nil, errors.NewEngineError(op, err.Error())
	}

	var cfg predictConfig
	if err := json.Unmarshal([]byte(strings.TrimRight(config, "\x00")), &cfg); err != nil {
		return nil, nil, errors.NewEngineError(op, "invalid prediction config: "+err.Error())
	}
	if cfg.IterationBegin < 0 || cfg.IterationEnd < 0 || cfg.IterationEnd > len(m.Rounds) ||
		(cfg.IterationEnd > 0 && cfg.IterationBegin > cfg.IterationEnd) {
		return nil, nil, errors.NewEngineError(op, fmt.Sprintf("invalid iteration range [%d, %d) for %d rounds",
			cfg.IterationBegin, cfg.IterationEnd, len(m.Rounds)))
	}

	rows, cols := dm.x.Dims()
	n, d1 := uint64(rows), uint64(cols+1)
	begin, end := cfg.IterationBegin, cfg.IterationEnd
	switch cfg.Type {
	case 0, 1:
		margins := m.margins(dm.x, begin, end)
		if cfg.Type == 0 {
			margins = m.transform(margins)
		}
		if cfg.StrictShape {
			return toFloat32(margins), []uint64{n, 1}, nil
		}
		return toFloat32(margins), []uint64{n}, nil
	case 2, 3:
		values := denseValues(m.contributions(dm.x, begin, end))
		if cfg.StrictShape {
			return values, []uint64{n, 1, d1}, nil
		}
		return values, []uint64{n, d1}, nil
	case 4, 5:
		values := flatten(m.interactions(dm.x, begin, end))
		if cfg.StrictShape {
			return values, []uint64{n, 1, d1, d1}, nil
		}
		return values, []uint64{n, d1, d1}, nil
	case 6:
		leaves := m.leaves(dm.x, begin, end)
		_, k := leaves.Dims()
		if cfg.StrictShape {
			return denseValues(leaves), []uint64{n, uint64(k), 1, 1}, nil
		}
		return denseValues(leaves), []uint64{n, uint64(k)}, nil
	}
	return nil, nil, errors.NewEngineError(op, fmt.Sprintf("unknown prediction type %d", cfg.Type))
}

// leaves assigns every row leaf 1 or 2 per round depending on the sign of the
// round's contribution.
func (m *model) leaves(x *mat.Dense, begin, end int) *mat.Dense {
	rows, cols := x.Dims()
	rs := m.rounds(begin, end)
	if len(rs) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(rows, len(rs), nil)
	for i := 0; i < rows; i++ {
		for t, r := range rs {
			s := r.Bias
			for j := 0; j < cols; j++ {
				s += r.Weights[j] * value(x, i, j)
			}
			leaf := 1.0
			if s < 0 {
				leaf = 2
			}
			out.Set(i, t, leaf)
		}
	}
	return out
}

// interactions returns one diagonal (cols+1)x(cols+1) matrix per row holding
// the row's contributions, so each row of a matrix sums to one contribution.
func (m *model) interactions(x *mat.Dense, begin, end int) []*mat.DiagDense {
	c := m.contributions(x, begin, end)
	rows, _ := c.Dims()
	out := make([]*mat.DiagDense, rows)
	for i := range out {
		out[i] = mat.NewDiagDense(len(c.RawRowView(i)), append([]float64(nil), c.RawRowView(i)...))
	}
	return out
}

func flatten(ms []*mat.DiagDense) []float32 {
	var out []float32
	for _, d := range ms {
		n := d.SymmetricDim()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				out = append(out, float32(d.At(i, j)))
			}
		}
	}
	if out == nil {
		out = []float32{}
	}
	return out
}

func denseValues(d *mat.Dense) []float32 {
	if d.IsEmpty() {
		return []float32{}
	}
	rows, cols := d.Dims()
	out := make([]float32, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for _, v := range d.RawRowView(i) {
			out = append(out, float32(v))
		}
	}
	return out
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
