package booster

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/xgboost/dmatrix"
	"github.com/YuminosukeSato/xgboost/engine/enginetest"
	"github.com/YuminosukeSato/xgboost/history"
	"github.com/YuminosukeSato/xgboost/metrics"
	"github.com/YuminosukeSato/xgboost/objective"
	"github.com/YuminosukeSato/xgboost/parameters"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

func trainConfig(d Dataset, rounds int, evals ...EvalSet) TrainConfig {
	return TrainConfig{
		Params:      parameters.DefaultBoosterParameters(),
		DTrain:      d,
		BoostRounds: rounds,
		EvalSets:    evals,
	}
}

// scripted returns a CustomEvaluation that yields scores in order.
func scripted(scores ...float32) CustomEvaluation {
	i := 0
	return func([]float32, Dataset) (float32, error) {
		s := scores[i%len(scores)]
		i++
		return s, nil
	}
}

func TestTrainLogsProgress(t *testing.T) {
	eng := enginetest.New()
	dtrain := newDataset(t, eng)
	dtest, err := dmatrix.NewWithLabels(eng,
		mat.NewDense(2, 2, []float64{1, 1, 2, 2}),
		mat.NewVecDense(2, []float64{1, 0}))
	require.NoError(t, err)
	defer dtest.Close()

	logger, _ := log.NewTestLogger(log.LevelInfo)
	cfg := trainConfig(dtrain, 3, EvalSet{dtrain, "train"}, EvalSet{dtest, "test"})
	cfg.Logger = logger

	b, err := Train(eng, cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 3, b.NumBoostedRounds())
	assert.Equal(t, 2, eng.CachedDatasets(b.handle))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var lines []string
	for _, e := range entries {
		if e["message"] == "Training progress" {
			lines = append(lines, e[log.EvalKey].(string))
		}
	}
	require.Len(t, lines, 3)
	for i, line := range lines {
		fields := strings.Split(line, "\t")
		require.Len(t, fields, 3)
		assert.Equal(t, "["+string(rune('0'+i))+"]", fields[0])
		assert.True(t, strings.HasPrefix(fields[1], "test-rmse:"), fields[1])
		assert.True(t, strings.HasPrefix(fields[2], "train-rmse:"), fields[2])
	}
	assert.True(t, logger.ContainsField(log.IterationKey, float64(2)))
}

func TestTrainWithoutEvalSets(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	var envs []CallbackEnv
	cfg := trainConfig(d, 4)
	cfg.Logger = logger
	cfg.Callbacks = []Callback{func(env *CallbackEnv) error {
		envs = append(envs, *env)
		return nil
	}}

	b, err := Train(eng, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 4, eng.NumRounds(b.handle))
	require.Len(t, envs, 4)
	for i, env := range envs {
		assert.Equal(t, i, env.Iteration)
		assert.Equal(t, 4, env.BoostRounds)
		assert.Nil(t, env.Result)
		assert.Empty(t, env.Line)
	}
	assert.False(t, logger.ContainsMessage("Training progress"))
}

func TestTrainZeroRounds(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)

	b, err := Train(eng, trainConfig(d, 0, EvalSet{d, "train"}))
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 0, eng.NumRounds(b.handle))
	assert.Equal(t, 0, eng.Calls("XGBoosterEvalOneIter"))
}

func TestTrainValidation(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)

	tests := []struct {
		name      string
		cfg       TrainConfig
		wantParam string
	}{
		{"nil dtrain", trainConfig(nil, 1), "dtrain"},
		{"negative rounds", trainConfig(d, -1), "boost_rounds"},
		{"nil eval dataset", trainConfig(d, 1, EvalSet{nil, "test"}), "test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Train(eng, tt.cfg)
			assert.Nil(t, b)
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantParam, verr.ParamName)
		})
	}
	assert.Equal(t, 0, eng.Calls("XGBoosterCreate"))
}

func TestTrainCustomObjective(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	cfg := trainConfig(d, 3)
	cfg.CustomObjective = LabelObjective(objective.SquaredError)

	b, err := Train(eng, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 3, eng.Calls("XGBoosterBoostOneIter"))
	assert.Equal(t, 0, eng.Calls("XGBoosterUpdateOneIter"))
	assert.Equal(t, 3, eng.NumRounds(b.handle))
}

func TestTrainCustomEvaluation(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	h := history.New()
	logger, _ := log.NewTestLogger(log.LevelInfo)

	cfg := trainConfig(d, 3, EvalSet{d, "train"})
	cfg.CustomEvaluation = LabelEvaluation(metrics.RMSEMargin)
	cfg.Callbacks = []Callback{RecordEvaluation(h)}
	cfg.Logger = logger

	b, err := Train(eng, cfg)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"rmse", "custom"}, h.Metrics("train"))
	custom := h.Series("train", "custom")
	rmse := h.Series("train", "rmse")
	require.Len(t, custom, 3)
	assert.InDeltaSlice(t, rmse, custom, 1e-4)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	line := entries[0][log.EvalKey].(string)
	fields := strings.Split(line, "\t")
	require.Len(t, fields, 3)
	assert.True(t, strings.HasPrefix(fields[1], "train-custom:"), line)
	assert.True(t, strings.HasPrefix(fields[2], "train-rmse:"), line)
}

func TestTrainCustomEvaluationFailures(t *testing.T) {
	tests := []struct {
		name  string
		eval  CustomEvaluation
		check func(t *testing.T, err error)
	}{
		{
			name: "error",
			eval: func([]float32, Dataset) (float32, error) { return 0, errors.New("metric broke") },
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "metric broke")
			},
		},
		{
			name: "panic",
			eval: func([]float32, Dataset) (float32, error) { panic("metric panicked") },
			check: func(t *testing.T, err error) {
				var perr *errors.PanicError
				assert.True(t, errors.As(err, &perr))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			d := newDataset(t, eng)
			cfg := trainConfig(d, 3, EvalSet{d, "train"})
			cfg.CustomEvaluation = tt.eval

			b, err := Train(eng, cfg)
			assert.Nil(t, b)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, eng.LiveBoosters())
			assert.Equal(t, 1, eng.Calls("XGBoosterUpdateOneIter"))
		})
	}
}

func TestTrainAbortsAndCloses(t *testing.T) {
	stop := errors.New("stop here")

	tests := []struct {
		name  string
		setup func(eng *enginetest.Engine, cfg *TrainConfig)
		check func(t *testing.T, err error)
	}{
		{
			name: "update failure",
			setup: func(eng *enginetest.Engine, cfg *TrainConfig) {
				eng.FailAfter("XGBoosterUpdateOneIter", 1, "out of memory")
			},
			check: func(t *testing.T, err error) {
				var eerr *errors.EngineError
				require.True(t, errors.As(err, &eerr))
				assert.Equal(t, "out of memory", eerr.Message)
			},
		},
		{
			name: "evaluation failure",
			setup: func(eng *enginetest.Engine, cfg *TrainConfig) {
				eng.FailOn("XGBoosterEvalOneIter", "bad metric")
			},
			check: func(t *testing.T, err error) {
				var eerr *errors.EngineError
				require.True(t, errors.As(err, &eerr))
				assert.Equal(t, "XGBoosterEvalOneIter", eerr.Op)
			},
		},
		{
			name: "callback error",
			setup: func(eng *enginetest.Engine, cfg *TrainConfig) {
				cfg.Callbacks = []Callback{func(env *CallbackEnv) error {
					if env.Iteration == 1 {
						return stop
					}
					return nil
				}}
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, stop))
			},
		},
		{
			name: "callback panic",
			setup: func(eng *enginetest.Engine, cfg *TrainConfig) {
				cfg.Callbacks = []Callback{func(*CallbackEnv) error { panic("callback panicked") }}
			},
			check: func(t *testing.T, err error) {
				var perr *errors.PanicError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "callback panicked", perr.PanicValue)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			d := newDataset(t, eng)
			logger, _ := log.NewTestLogger(log.LevelInfo)
			cfg := trainConfig(d, 5, EvalSet{d, "train"})
			cfg.Logger = logger
			tt.setup(eng, &cfg)

			b, err := Train(eng, cfg)
			assert.Nil(t, b)
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 0, eng.LiveBoosters())
			assert.Equal(t, 1, eng.Calls("XGBoosterFree"))
			assert.True(t, logger.ContainsMessage("Training aborted"))
		})
	}
}

func TestPrintEvaluation(t *testing.T) {
	tests := []struct {
		name   string
		period int
		rounds int
		want   []string
	}{
		{"every round", 0, 3, []string{"[0]", "[1]", "[2]"}},
		{"period two", 2, 5, []string{"[0]", "[2]", "[4]"}},
		{"period three keeps last", 3, 5, []string{"[0]", "[3]", "[4]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			d := newDataset(t, eng)
			var buf bytes.Buffer
			cfg := trainConfig(d, tt.rounds, EvalSet{d, "train"})
			cfg.Callbacks = []Callback{PrintEvaluation(&buf, tt.period)}

			b, err := Train(eng, cfg)
			require.NoError(t, err)
			defer b.Close()

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, prefix := range tt.want {
				assert.True(t, strings.HasPrefix(lines[i], prefix+"\ttrain-rmse:"), lines[i])
			}
		})
	}
}

func TestEarlyStopping(t *testing.T) {
	tests := []struct {
		name       string
		scores     []float32
		maximize   bool
		wantRounds int
		wantBest   string
		wantScore  string
	}{
		{"minimize", []float32{1, 0.5, 0.75, 0.8, 0.9, 0.1}, false, 4, "1", "0.5"},
		{"maximize", []float32{0.5, 0.75, 0.6, 0.7, 0.65, 0.9}, true, 5, "1", "0.75"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			d := newDataset(t, eng)
			cfg := trainConfig(d, 10, EvalSet{d, "train"})
			cfg.CustomEvaluation = scripted(tt.scores...)
			cfg.Callbacks = []Callback{EarlyStopping(tt.wantRounds-2, "train", "custom", tt.maximize)}

			b, err := Train(eng, cfg)
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, tt.wantRounds, b.NumBoostedRounds())
			best, ok, err := b.GetAttribute(BestIterationAttr)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.wantBest, best)
			score, _, err := b.GetAttribute(BestScoreAttr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
		})
	}
}

func TestEarlyStoppingReusedAcrossRuns(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	stop := EarlyStopping(2, "train", "custom", false)

	first := trainConfig(d, 10, EvalSet{d, "train"})
	first.CustomEvaluation = scripted(0.1, 0.5, 0.6, 0.7)
	first.Callbacks = []Callback{stop}
	b, err := Train(eng, first)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, 3, b.NumBoostedRounds())

	second := trainConfig(d, 5, EvalSet{d, "train"})
	second.CustomEvaluation = scripted(1, 0.9, 0.8, 0.7, 0.6)
	second.Callbacks = []Callback{stop}
	b2, err := Train(eng, second)
	require.NoError(t, err)
	defer b2.Close()

	assert.Equal(t, 5, b2.NumBoostedRounds())
	best, ok, err := b2.GetAttribute(BestIterationAttr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", best)
	score, _, err := b2.GetAttribute(BestScoreAttr)
	require.NoError(t, err)
	assert.Equal(t, "0.6", score)
}

func TestEarlyStoppingUnknownMetric(t *testing.T) {
	eng := enginetest.New()
	d := newDataset(t, eng)
	cfg := trainConfig(d, 5, EvalSet{d, "train"})
	cfg.Callbacks = []Callback{EarlyStopping(2, "train", "auc", false)}

	b, err := Train(eng, cfg)
	assert.Nil(t, b)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "metric", verr.ParamName)
	assert.Equal(t, 0, eng.LiveBoosters())
}
