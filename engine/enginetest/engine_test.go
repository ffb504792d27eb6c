package enginetest

import (
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

func newMatrix(t *testing.T, e *Engine) engine.DatasetHandle {
	t.Helper()
	data := []float32{
		1, 0,
		2, 1,
		3, 0,
		4, 1,
	}
	d, err := e.DMatrixCreateFromMat(data, 4, 2, -999)
	require.NoError(t, err)
	require.NoError(t, e.DMatrixSetFloatInfo(d, "label", []float32{1, 2, 3, 4}))
	return d
}

func trained(t *testing.T, e *Engine, d engine.DatasetHandle, rounds int) engine.BoosterHandle {
	t.Helper()
	h, err := e.BoosterCreate([]engine.DatasetHandle{d})
	require.NoError(t, err)
	for i := 0; i < rounds; i++ {
		require.NoError(t, e.BoosterUpdateOneIter(h, i, d))
	}
	return h
}

func TestHandleAccounting(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h, err := e.BoosterCreate([]engine.DatasetHandle{d})
	require.NoError(t, err)

	assert.Equal(t, 1, e.LiveBoosters())
	assert.Equal(t, 1, e.LiveDatasets())
	assert.Equal(t, 1, e.CachedDatasets(h))

	require.NoError(t, e.BoosterFree(h))
	assert.Equal(t, 0, e.LiveBoosters())

	err = e.BoosterFree(h)
	var engErr *errors.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, "XGBoosterFree", engErr.Op)

	require.NoError(t, e.DMatrixFree(d))
	assert.Equal(t, 0, e.LiveDatasets())
}

func TestFailureInjection(t *testing.T) {
	e := New()
	h, err := e.BoosterCreate(nil)
	require.NoError(t, err)

	e.FailAfter("XGBoosterSetParam", 1, "bad param")
	require.NoError(t, e.BoosterSetParam(h, "eta", "0.1"))

	err = e.BoosterSetParam(h, "max_depth", "3")
	var engErr *errors.EngineError
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, "bad param", engErr.Message)

	require.NoError(t, e.BoosterSetParam(h, "max_depth", "3"))
	assert.Equal(t, 3, e.Calls("XGBoosterSetParam"))
}

func TestSetParam(t *testing.T) {
	e := New()
	h, err := e.BoosterCreate(nil)
	require.NoError(t, err)

	require.NoError(t, e.BoosterSetParam(h, "eta", "0.1"))
	require.NoError(t, e.BoosterSetParam(h, "eta", "0.2"))
	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "rmse"))
	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "mae"))
	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "rmse"))

	assert.Equal(t, map[string]string{"eta": "0.2"}, e.Params(h))
	assert.Equal(t, []string{"rmse", "mae"}, e.EvalMetrics(h))

	assert.Error(t, e.BoosterSetParam(h, "eta", "fast"))
}

func TestUpdateReducesError(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 0)

	first, err := e.BoosterEvalOneIter(h, 0, []engine.DatasetHandle{d}, []string{"train"})
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		require.NoError(t, e.BoosterUpdateOneIter(h, i, d))
	}
	last, err := e.BoosterEvalOneIter(h, 30, []engine.DatasetHandle{d}, []string{"train"})
	require.NoError(t, err)

	score := func(line string) float64 {
		_, rest, _ := strings.Cut(line, ":")
		v, err := strconv.ParseFloat(rest, 64)
		require.NoError(t, err)
		return v
	}
	assert.True(t, strings.HasPrefix(first, "[0]\ttrain-rmse:"), first)
	assert.Less(t, score(last), score(first))
	assert.Equal(t, 30, e.NumRounds(h))
}

func TestUpdateRequiresLabels(t *testing.T) {
	e := New()
	d, err := e.DMatrixCreateFromMat([]float32{1, 2}, 2, 1, -999)
	require.NoError(t, err)
	h, err := e.BoosterCreate(nil)
	require.NoError(t, err)
	assert.Error(t, e.BoosterUpdateOneIter(h, 0, d))
}

func TestEvalLineOrder(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 2)
	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "rmse"))
	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "mae"))

	line, err := e.BoosterEvalOneIter(h, 2, []engine.DatasetHandle{d, d}, []string{"train", "valid"})
	require.NoError(t, err)

	tokens := strings.Split(line, "\t")
	require.Len(t, tokens, 5)
	assert.Equal(t, "[2]", tokens[0])
	assert.True(t, strings.HasPrefix(tokens[1], "train-rmse:"))
	assert.True(t, strings.HasPrefix(tokens[2], "train-mae:"))
	assert.True(t, strings.HasPrefix(tokens[3], "valid-rmse:"))
	assert.True(t, strings.HasPrefix(tokens[4], "valid-mae:"))

	require.NoError(t, e.BoosterSetParam(h, "eval_metric", "auc"))
	_, err = e.BoosterEvalOneIter(h, 2, []engine.DatasetHandle{d}, []string{"train"})
	assert.Error(t, err)
}

func TestPredictLayouts(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 3)

	margin, err := e.BoosterPredict(h, d, engine.OptionOutputMargin, 0, false)
	require.NoError(t, err)
	require.Len(t, margin, 4)

	contribs, err := e.BoosterPredict(h, d, engine.OptionPredictContributions, 0, false)
	require.NoError(t, err)
	require.Len(t, contribs, 4*3)
	for i := 0; i < 4; i++ {
		row := contribs[i*3 : (i+1)*3]
		assert.InDelta(t, margin[i], row[0]+row[1]+row[2], 1e-5)
	}

	inter, err := e.BoosterPredict(h, d, engine.OptionPredictInteractions, 0, false)
	require.NoError(t, err)
	require.Len(t, inter, 4*3*3)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			var s float32
			for k := 0; k < 3; k++ {
				s += inter[i*9+j*3+k]
			}
			assert.InDelta(t, contribs[i*3+j], s, 1e-6)
		}
	}

	leaves, err := e.BoosterPredict(h, d, engine.OptionPredictLeaf, 2, false)
	require.NoError(t, err)
	assert.Len(t, leaves, 4*2)
}

func TestPredictLogisticTransform(t *testing.T) {
	e := New()
	d, err := e.DMatrixCreateFromMat([]float32{0, 1, 2, 3}, 4, 1, -999)
	require.NoError(t, err)
	require.NoError(t, e.DMatrixSetFloatInfo(d, "label", []float32{0, 0, 1, 1}))
	h, err := e.BoosterCreate([]engine.DatasetHandle{d})
	require.NoError(t, err)
	require.NoError(t, e.BoosterSetParam(h, "objective", "binary:logistic"))
	require.NoError(t, e.BoosterUpdateOneIter(h, 0, d))

	preds, err := e.BoosterPredict(h, d, 0, 0, false)
	require.NoError(t, err)
	for _, p := range preds {
		assert.True(t, p > 0 && p < 1, "probability out of range: %v", p)
	}
}

func TestPredictFromDMatrixShapes(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 3)

	tests := []struct {
		name   string
		config string
		shape  []uint64
	}{
		{"normal", `{"type":0,"training":false,"iteration_begin":0,"iteration_end":0,"strict_shape":false}` + "\x00", []uint64{4}},
		{"strict margin", `{"type":1,"strict_shape":true}`, []uint64{4, 1}},
		{"contributions", `{"type":2}`, []uint64{4, 3}},
		{"interactions", `{"type":4}`, []uint64{4, 3, 3}},
		{"leaf range", `{"type":6,"iteration_begin":1,"iteration_end":3}`, []uint64{4, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, shape, err := e.BoosterPredictFromDMatrix(h, d, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, shape)
			total := uint64(1)
			for _, s := range shape {
				total *= s
			}
			assert.Equal(t, int(total), len(values))
		})
	}

	_, _, err := e.BoosterPredictFromDMatrix(h, d, `{"type":9}`)
	assert.Error(t, err)
	_, _, err = e.BoosterPredictFromDMatrix(h, d, `{"type":0,"iteration_end":10}`)
	assert.Error(t, err)
}

func TestFeatureCountMismatch(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 1)
	other, err := e.DMatrixCreateFromMat([]float32{1, 2, 3}, 1, 3, -999)
	require.NoError(t, err)

	_, err = e.BoosterPredict(h, other, 0, 0, false)
	assert.Error(t, err)
}

func TestPersistenceRoundTrip(t *testing.T) {
	for _, format := range []string{engine.FormatJSON, engine.FormatUBJ} {
		t.Run(format, func(t *testing.T) {
			e := New()
			d := newMatrix(t, e)
			h := trained(t, e, d, 4)
			require.NoError(t, e.BoosterSetAttr(h, "best_iteration", "3"))
			require.NoError(t, e.BoosterSetStrFeatureInfo(h, "feature_name", []string{"a", "b"}))

			buf, err := e.BoosterSaveModelToBuffer(h, `{"format":"`+format+`"}`)
			require.NoError(t, err)

			h2, err := e.BoosterCreate(nil)
			require.NoError(t, err)
			require.NoError(t, e.BoosterLoadModelFromBuffer(h2, buf))

			want, err := e.BoosterPredict(h, d, 0, 0, false)
			require.NoError(t, err)
			got, err := e.BoosterPredict(h2, d, 0, 0, false)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			v, ok, err := e.BoosterGetAttr(h2, "best_iteration")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", v)

			names, err := e.BoosterGetStrFeatureInfo(h2, "feature_name")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, names)
		})
	}
}

func TestSaveModelFile(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 2)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, e.BoosterSaveModel(h, path))

	h2, err := e.BoosterCreate(nil)
	require.NoError(t, err)
	require.NoError(t, e.BoosterLoadModel(h2, path))
	assert.Equal(t, 2, e.NumRounds(h2))

	assert.Error(t, e.BoosterLoadModel(h2, filepath.Join(t.TempDir(), "missing.ubj")))
	assert.Error(t, e.BoosterLoadModelFromBuffer(h2, []byte("not a model")))
}

func TestFeatureInfo(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 1)

	got, err := e.BoosterGetStrFeatureInfo(h, "feature_type")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, e.BoosterSetStrFeatureInfo(h, "feature_name", []string{"only-one"}))
	assert.Error(t, e.BoosterSetStrFeatureInfo(h, "colour", []string{"a", "b"}))
}

func TestDump(t *testing.T) {
	e := New()
	d := newMatrix(t, e)
	h := trained(t, e, d, 2)

	text, err := e.BoosterDumpModelEx(h, "", true, engine.DumpFormatText)
	require.NoError(t, err)
	require.Len(t, text, 2)
	assert.Contains(t, text[0], "booster[0]:")
	assert.Contains(t, text[0], "cover=")
	assert.Contains(t, text[1], "f1:")

	js, err := e.BoosterDumpModelEx(h, "", false, engine.DumpFormatJSON)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(js[1]), &parsed))
	assert.Equal(t, 1.0, parsed["booster"])
	assert.NotContains(t, parsed, "cover")

	_, err = e.BoosterDumpModelEx(h, "", false, "dot")
	assert.Error(t, err)
}

func TestMissingValues(t *testing.T) {
	e := New()
	d, err := e.DMatrixCreateFromMat([]float32{1, -1, 2, 3}, 2, 2, -1)
	require.NoError(t, err)
	rows, err := e.DMatrixNumRow(d)
	require.NoError(t, err)
	cols, err := e.DMatrixNumCol(d)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)

	assert.Error(t, e.DMatrixSetFloatInfo(d, "label", []float32{1}))
	labels, err := e.DMatrixGetFloatInfo(d, "label")
	require.NoError(t, err)
	assert.Empty(t, labels)
}
