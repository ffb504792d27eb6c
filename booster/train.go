package booster

import (
	"time"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/parameters"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// CustomEvaluation scores the margin predictions of one evaluation dataset.
type CustomEvaluation func(margin []float32, d Dataset) (float32, error)

// customEvalName is the metric name under which CustomEvaluation scores are
// reported for every evaluation dataset.
const customEvalName = "custom"

// TrainConfig describes one training run.
type TrainConfig struct {
	Params parameters.BoosterParameters
	DTrain Dataset
	// BoostRounds is the number of boosting rounds to run.
	BoostRounds int
	// EvalSets are evaluated after every round and cached on the booster.
	EvalSets []EvalSet
	// CustomObjective replaces the configured objective when set.
	CustomObjective  Objective
	CustomEvaluation CustomEvaluation
	Callbacks        []Callback
	// Logger receives one Info record per evaluated round. Defaults to the
	// "xgboost.train" logger.
	Logger log.Logger
}

// Train creates a booster caching DTrain and every distinct evaluation
// dataset, then runs BoostRounds rounds.
//
// Any failure aborts the run: a training step, an evaluation, a custom
// evaluation or a callback returning an error (or panicking) closes the
// booster and returns the error. Rounds already committed are discarded
// with it.
func Train(eng engine.Engine, cfg TrainConfig) (*Booster, error) {
	if err := checkDataset("dtrain", cfg.DTrain); err != nil {
		return nil, err
	}
	if cfg.BoostRounds < 0 {
		return nil, errors.NewValidationError("boost_rounds", "must be >= 0", cfg.BoostRounds)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("xgboost.train")
	}

	cache := []Dataset{cfg.DTrain}
	seen := map[engine.DatasetHandle]struct{}{cfg.DTrain.Handle(): {}}
	for _, ev := range cfg.EvalSets {
		if err := checkDataset(ev.Name, ev.Dataset); err != nil {
			return nil, err
		}
		if _, ok := seen[ev.Dataset.Handle()]; ok {
			continue
		}
		seen[ev.Dataset.Handle()] = struct{}{}
		cache = append(cache, ev.Dataset)
	}
	b, err := NewWithCachedDatasets(eng, cfg.Params, cache...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	logger.Debug("Starting training", log.RoundsKey, cfg.BoostRounds, log.CachedKey, len(cache))
	for i := 0; i < cfg.BoostRounds; i++ {
		env, err := runRound(b, &cfg, i, logger)
		if err != nil {
			logger.Error("Training aborted", err, log.OperationKey, log.OperationTrain, log.IterationKey, i)
			_ = b.Close()
			return nil, err
		}
		if env.StopTraining {
			logger.Info("Stopping training early", log.IterationKey, i)
			break
		}
	}
	logger.Debug("Training finished", log.RoundsKey, b.NumBoostedRounds(), log.DurationMsKey, time.Since(start).Milliseconds())
	return b, nil
}

func runRound(b *Booster, cfg *TrainConfig, i int, logger log.Logger) (*CallbackEnv, error) {
	var err error
	if cfg.CustomObjective != nil {
		err = b.UpdateCustom(cfg.DTrain, cfg.CustomObjective)
	} else {
		err = b.Update(cfg.DTrain, i)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "training round %d", i)
	}

	env := &CallbackEnv{Booster: b, Iteration: i, BoostRounds: cfg.BoostRounds}
	if len(cfg.EvalSets) > 0 {
		res, err := evaluateRound(b, cfg, i)
		if err != nil {
			return nil, err
		}
		env.Result = res
		env.Line = FormatEvalLine(i, res)
		logger.Info("Training progress", log.IterationKey, i, log.EvalKey, env.Line)
	}

	for _, cb := range cfg.Callbacks {
		err := errors.SafeExecute("training callback", func() error {
			return cb(env)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "callback at round %d", i)
		}
	}
	return env, nil
}

func evaluateRound(b *Booster, cfg *TrainConfig, i int) (*EvalResult, error) {
	res, err := b.EvalSet(cfg.EvalSets, i)
	if err != nil {
		return nil, err
	}
	if cfg.CustomEvaluation == nil {
		return res, nil
	}
	for _, ev := range cfg.EvalSets {
		margin, err := b.PredictMargin(ev.Dataset)
		if err != nil {
			return nil, err
		}
		score, err := errors.SafeCall("custom evaluation", func() (float32, error) {
			return cfg.CustomEvaluation(margin.Values, ev.Dataset)
		})
		if err != nil {
			return nil, errors.Wrapf(err, "custom evaluation of %s", ev.Name)
		}
		res.Set(ev.Name, customEvalName, score)
	}
	return res, nil
}

// LabelObjective adapts a gradient function over predictions and labels to
// an Objective. The training dataset must implement LabeledDataset.
func LabelObjective(fn func(preds, labels []float32) (grad, hess []float32, err error)) Objective {
	return func(preds []float32, dtrain Dataset) ([]float32, []float32, error) {
		labels, err := datasetLabels(dtrain)
		if err != nil {
			return nil, nil, err
		}
		return fn(preds, labels)
	}
}

// LabelEvaluation adapts a metric over margins and labels to a
// CustomEvaluation. Every evaluation dataset must implement LabeledDataset.
func LabelEvaluation(fn func(margin, labels []float32) (float64, error)) CustomEvaluation {
	return func(margin []float32, d Dataset) (float32, error) {
		labels, err := datasetLabels(d)
		if err != nil {
			return 0, err
		}
		score, err := fn(margin, labels)
		return float32(score), err
	}
}

func datasetLabels(d Dataset) ([]float32, error) {
	ld, ok := d.(LabeledDataset)
	if !ok {
		return nil, errors.NewValidationError("dataset", "must provide labels", nil)
	}
	return ld.Labels()
}
