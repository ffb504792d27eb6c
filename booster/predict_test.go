package booster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/engine/enginetest"
	"github.com/YuminosukeSato/xgboost/parameters"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

type emptyDataset struct{}

func (emptyDataset) Handle() engine.DatasetHandle { return 0 }
func (emptyDataset) NumRows() int                 { return 0 }
func (emptyDataset) NumCols() int                 { return 2 }

func sum(values []float32) float64 {
	var s float64
	for _, v := range values {
		s += float64(v)
	}
	return s
}

func TestPredictShapes(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 3)

	tests := []struct {
		name    string
		predict func(Dataset) (Prediction, error)
		shape   []int
	}{
		{"normal", b.Predict, []int{4}},
		{"margin", b.PredictMargin, []int{4}},
		{"leaf", b.PredictLeaf, []int{4, 3}},
		{"contributions", b.PredictContributions, []int{4, 3}},
		{"approx contributions", b.PredictApproxContributions, []int{4, 3}},
		{"interactions", b.PredictInteractions, []int{4, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.predict(d)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, p.Shape)
			size := 1
			for _, s := range p.Shape {
				size *= s
			}
			assert.Len(t, p.Values, size)
			assert.Equal(t, 4, p.Rows())
		})
	}
}

func TestContributionsSumToMargin(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 3)

	margin, err := b.PredictMargin(d)
	require.NoError(t, err)
	contribs, err := b.PredictContributions(d)
	require.NoError(t, err)
	inter, err := b.PredictInteractions(d)
	require.NoError(t, err)

	dim := contribs.Shape[1]
	for i := 0; i < contribs.Rows(); i++ {
		row := contribs.Row(i)
		assert.InDelta(t, float64(margin.Values[i]), sum(row), 1e-5)

		m := inter.Row(i)
		for k := 0; k < dim; k++ {
			assert.InDelta(t, float64(row[k]), sum(m[k*dim:(k+1)*dim]), 1e-5)
		}
	}
}

func TestPredictLogisticTransform(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	learning, err := parameters.NewLearningTaskParametersBuilder().
		Objective(parameters.BinaryLogistic).
		Build()
	require.NoError(t, err)
	params, err := parameters.NewBoosterParametersBuilder().Learning(learning).Build()
	require.NoError(t, err)
	b, err := NewWithCachedDatasets(eng, params, d)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Update(d, 0))

	probs, err := b.Predict(d)
	require.NoError(t, err)
	margin, err := b.PredictMargin(d)
	require.NoError(t, err)
	for i, p := range probs.Values {
		want := 1 / (1 + math.Exp(-float64(margin.Values[i])))
		assert.InDelta(t, want, float64(p), 1e-6)
	}
}

func TestPredictLeafWithoutRounds(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 0)

	p, err := b.PredictLeaf(d)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 0}, p.Shape)
	assert.Empty(t, p.Values)
}

func TestPredictRejectsEmptyDataset(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 1)

	for name, predict := range map[string]func(Dataset) (Prediction, error){
		"leaf":          b.PredictLeaf,
		"contributions": b.PredictContributions,
		"interactions":  b.PredictInteractions,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := predict(emptyDataset{})
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "dataset", verr.ParamName)
		})
	}
	assert.Equal(t, 0, eng.Calls("XGBoosterPredict"))
}

func TestPredictConfigJSON(t *testing.T) {
	cfg := PredictConfig{Type: PredictTypeContributions, Training: true, IterationBegin: 1, IterationEnd: 3, StrictShape: true}
	assert.Equal(t,
		`{"type":2,"training":true,"iteration_begin":1,"iteration_end":3,"strict_shape":true}`+"\x00",
		cfg.JSON())
	assert.Equal(t,
		`{"type":0,"training":false,"iteration_begin":0,"iteration_end":0,"strict_shape":false}`+"\x00",
		PredictConfig{}.JSON())
}

func TestPredictMatrix(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 3)

	tests := []struct {
		name  string
		cfg   PredictConfig
		shape []int
	}{
		{"normal", PredictConfig{Type: PredictTypeNormal}, []int{4}},
		{"margin strict", PredictConfig{Type: PredictTypeOutputMargin, StrictShape: true}, []int{4, 1}},
		{"contributions", PredictConfig{Type: PredictTypeContributions}, []int{4, 3}},
		{"contributions strict", PredictConfig{Type: PredictTypeApproxContributions, StrictShape: true}, []int{4, 1, 3}},
		{"interactions", PredictConfig{Type: PredictTypeInteractions}, []int{4, 3, 3}},
		{"interactions strict", PredictConfig{Type: PredictTypeApproxInteractions, StrictShape: true}, []int{4, 1, 3, 3}},
		{"leaf", PredictConfig{Type: PredictTypeLeafTraining}, []int{4, 3}},
		{"leaf strict", PredictConfig{Type: PredictTypeLeafTraining, StrictShape: true}, []int{4, 3, 1, 1}},
		{"leaf range", PredictConfig{Type: PredictTypeLeafTraining, IterationBegin: 1, IterationEnd: 3}, []int{4, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := b.PredictMatrix(d, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, p.Shape)
		})
	}

	t.Run("matches Predict", func(t *testing.T) {
		p, err := b.PredictMatrix(d, PredictConfig{})
		require.NoError(t, err)
		want, err := b.Predict(d)
		require.NoError(t, err)
		assert.Equal(t, want.Values, p.Values)
	})

	t.Run("raw json without terminator", func(t *testing.T) {
		p, err := b.PredictMatrixJSON(d, `{"type":1,"training":false,"iteration_begin":0,"iteration_end":0,"strict_shape":false}`)
		require.NoError(t, err)
		assert.Equal(t, []int{4}, p.Shape)
	})
}

func TestPredictMatrixErrors(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 2)

	tests := []struct {
		name      string
		cfg       PredictConfig
		wantParam string
	}{
		{"unknown type", PredictConfig{Type: 9}, "type"},
		{"negative begin", PredictConfig{IterationBegin: -1}, "iteration_begin"},
		{"negative end", PredictConfig{IterationEnd: -1}, "iteration_end"},
		{"begin after end", PredictConfig{IterationBegin: 2, IterationEnd: 1}, "iteration_begin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.PredictMatrix(d, tt.cfg)
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantParam, verr.ParamName)
		})
	}
	assert.Equal(t, 0, eng.Calls("XGBoosterPredictFromDMatrix"))

	_, err := b.PredictMatrix(d, PredictConfig{IterationEnd: 5})
	var eerr *errors.EngineError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "XGBoosterPredictFromDMatrix", eerr.Op)
}
