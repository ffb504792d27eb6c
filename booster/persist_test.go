package booster

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/xgboost/engine/enginetest"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 3)
	require.NoError(t, b.SetAttribute("best_iteration", "2"))
	require.NoError(t, b.SetFeatureNames([]string{"age", "income"}))
	require.NoError(t, b.SetFeatureTypes([]string{"int", "q"}))
	want, err := b.Predict(d)
	require.NoError(t, err)
	wantMargin, err := b.PredictMargin(d)
	require.NoError(t, err)
	wantContribs, err := b.PredictContributions(d)
	require.NoError(t, err)

	dir := t.TempDir()
	tests := []struct {
		name string
		save func() (*Booster, error)
	}{
		{"binary buffer", func() (*Booster, error) {
			buf, err := b.SaveBuffer(true)
			if err != nil {
				return nil, err
			}
			return LoadBuffer(eng, buf)
		}},
		{"json buffer", func() (*Booster, error) {
			buf, err := b.SaveBuffer(false)
			if err != nil {
				return nil, err
			}
			return LoadBuffer(eng, buf)
		}},
		{"ubj file", func() (*Booster, error) {
			path := filepath.Join(dir, "model.ubj")
			if err := b.Save(path); err != nil {
				return nil, err
			}
			return Load(eng, path)
		}},
		{"json file", func() (*Booster, error) {
			path := filepath.Join(dir, "model.json")
			if err := b.Save(path); err != nil {
				return nil, err
			}
			return Load(eng, path)
		}},
		{"writer", func() (*Booster, error) {
			var buf bytes.Buffer
			if err := b.SaveTo(&buf, true); err != nil {
				return nil, err
			}
			return LoadFrom(eng, &buf)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := tt.save()
			require.NoError(t, err)
			defer loaded.Close()

			got, err := loaded.Predict(d)
			require.NoError(t, err)
			assert.Equal(t, want.Values, got.Values)
			margin, err := loaded.PredictMargin(d)
			require.NoError(t, err)
			assert.Equal(t, wantMargin.Values, margin.Values)
			contribs, err := loaded.PredictContributions(d)
			require.NoError(t, err)
			assert.Equal(t, wantContribs, contribs)

			names, err := loaded.GetFeatureNames()
			require.NoError(t, err)
			assert.Equal(t, []string{"age", "income"}, names)
			types, err := loaded.GetFeatureTypes()
			require.NoError(t, err)
			assert.Equal(t, []string{"int", "q"}, types)

			v, ok, err := loaded.GetAttribute("best_iteration")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", v)
			assert.Equal(t, 3, eng.NumRounds(loaded.handle))
		})
	}
}

func TestSaveBufferFormats(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	b := newBooster(t, eng, d, 1)

	jsonBuf, err := b.SaveBuffer(false)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), jsonBuf[0])

	binBuf, err := b.SaveBuffer(true)
	require.NoError(t, err)
	assert.NotEqual(t, jsonBuf, binBuf)
}

func TestLoadErrors(t *testing.T) {
	eng := enginetest.New()

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.ubj")
		_, err := Load(eng, path)
		var nerr *errors.NotFoundError
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, path, nerr.Path)
		assert.Equal(t, 0, eng.Calls("XGBoosterCreate"))
	})

	t.Run("empty buffer", func(t *testing.T) {
		_, err := LoadBuffer(eng, nil)
		var verr *errors.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "buffer", verr.ParamName)
	})

	t.Run("corrupt buffer frees handle", func(t *testing.T) {
		_, err := LoadBuffer(eng, []byte("not a model"))
		var eerr *errors.EngineError
		require.True(t, errors.As(err, &eerr))
		assert.Equal(t, "XGBoosterLoadModelFromBuffer", eerr.Op)
		assert.Equal(t, 0, eng.LiveBoosters())
	})

	t.Run("nil engine", func(t *testing.T) {
		_, err := Load(nil, "model.ubj")
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}
