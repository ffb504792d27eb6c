package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

type fakeScores struct {
	datasets []string
	metrics  []string
	scores   map[string]float32
}

func (f fakeScores) Datasets() []string              { return f.datasets }
func (f fakeScores) Metrics(dataset string) []string { return f.metrics }
func (f fakeScores) Score(dataset, metric string) (float32, bool) {
	s, ok := f.scores[dataset+"-"+metric]
	return s, ok
}

func round(train, test float32) fakeScores {
	return fakeScores{
		datasets: []string{"train", "test"},
		metrics:  []string{"rmse"},
		scores:   map[string]float32{"train-rmse": train, "test-rmse": test},
	}
}

func TestEvalHistory_Record(t *testing.T) {
	h := New()
	h.Record(0, round(0.5, 0.75))
	h.Record(1, round(0.25, 0.5))
	h.Record(2, round(0.125, 0.625))
	h.Record(3, nil)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"train", "test"}, h.Datasets())
	assert.Equal(t, []string{"rmse"}, h.Metrics("test"))
	assert.Empty(t, h.Metrics("valid"))
	assert.Equal(t, []float64{0.5, 0.25, 0.125}, h.Series("train", "rmse"))
	assert.Empty(t, h.Series("train", "logloss"))
}

func TestEvalHistory_Best(t *testing.T) {
	h := New()
	h.Record(0, round(0.5, 0.75))
	h.Record(1, round(0.25, 0.5))
	h.Record(2, round(0.125, 0.625))

	tests := []struct {
		name      string
		dataset   string
		maximize  bool
		wantIter  int
		wantScore float64
	}{
		{"train minimize", "train", false, 2, 0.125},
		{"test minimize", "test", false, 1, 0.5},
		{"test maximize", "test", true, 0, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iter, score, ok := h.Best(tt.dataset, "rmse", tt.maximize)
			require.True(t, ok)
			assert.Equal(t, tt.wantIter, iter)
			assert.Equal(t, tt.wantScore, score)
		})
	}

	_, _, ok := h.Best("valid", "rmse", false)
	assert.False(t, ok)
}

func TestEvalHistory_Plot(t *testing.T) {
	h := New()
	for i := 0; i < 5; i++ {
		h.Record(i, round(1/float32(i+1), 1/float32(i+2)))
	}

	path := filepath.Join(t.TempDir(), "rmse.png")
	require.NoError(t, h.Plot(path, "rmse", 4*vg.Inch, 3*vg.Inch))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	err = h.Plot(filepath.Join(t.TempDir(), "auc.png"), "auc", 4*vg.Inch, 3*vg.Inch)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "metric", verr.ParamName)
}
