package objective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

func TestSquaredError(t *testing.T) {
	grad, hess, err := SquaredError([]float32{1, 0.5, -2}, []float32{0, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, -3}, grad)
	assert.Equal(t, []float32{1, 1, 1}, hess)
}

func TestLogistic(t *testing.T) {
	grad, hess, err := Logistic([]float32{0.5, 0.75, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-0.5, 0.75, 0}, grad, 1e-6)
	assert.InDelta(t, 0.25, hess[0], 1e-6)
	assert.InDelta(t, 0.1875, hess[1], 1e-6)
	assert.Positive(t, hess[2])
}

func TestObjectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(preds, labels []float32) ([]float32, []float32, error)
	}{
		{"squared error", SquaredError},
		{"logistic", Logistic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.fn([]float32{0.1, 0.2}, []float32{1})
			var derr *errors.DimensionError
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, 2, derr.Expected)
			assert.Equal(t, 1, derr.Got)

			_, _, err = tt.fn(nil, nil)
			assert.True(t, errors.Is(err, errors.ErrEmptyData))
		})
	}
}
