package booster

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/YuminosukeSato/xgboost/history"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// Callback runs after every training round. Returning an error aborts
// training.
type Callback func(env *CallbackEnv) error

// CallbackEnv is the state handed to callbacks.
type CallbackEnv struct {
	Booster     *Booster
	Iteration   int
	BoostRounds int
	// Result and Line are nil and empty when no evaluation sets were given.
	Result *EvalResult
	Line   string
	// StopTraining ends training after the current round when set.
	StopTraining bool
}

// PrintEvaluation writes the progress line to w every period rounds and on
// the last round.
func PrintEvaluation(w io.Writer, period int) Callback {
	if period <= 0 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.Line == "" {
			return nil
		}
		if env.Iteration%period != 0 && env.Iteration != env.BoostRounds-1 {
			return nil
		}
		_, err := fmt.Fprintln(w, env.Line)
		return err
	}
}

// RecordEvaluation appends every round's result to h.
func RecordEvaluation(h *history.EvalHistory) Callback {
	return func(env *CallbackEnv) error {
		if env.Result != nil {
			h.Record(env.Iteration, env.Result)
		}
		return nil
	}
}

// Attribute keys written by EarlyStopping.
const (
	BestIterationAttr = "best_iteration"
	BestScoreAttr     = "best_score"
)

// EarlyStopping stops training once metric on dataset has not improved for
// rounds consecutive rounds. The best round and score are stored as the
// best_iteration and best_score attributes of the booster. State is reset at
// iteration 0, so one callback may serve several Train runs.
func EarlyStopping(rounds int, dataset, metric string, maximize bool) Callback {
	var best float64
	bestIter := -1
	return func(env *CallbackEnv) error {
		if env.Iteration == 0 {
			best, bestIter = math.Inf(1), -1
			if maximize {
				best = math.Inf(-1)
			}
		}
		if env.Result == nil {
			return nil
		}
		s, ok := env.Result.Score(dataset, metric)
		if !ok {
			return errors.NewValidationError("metric", "not present in evaluation result", dataset+"-"+metric)
		}
		score := float64(s)
		improved := score < best
		if maximize {
			improved = score > best
		}
		if improved || bestIter < 0 {
			best, bestIter = score, env.Iteration
			if err := env.Booster.SetAttribute(BestIterationAttr, strconv.Itoa(bestIter)); err != nil {
				return err
			}
			return env.Booster.SetAttribute(BestScoreAttr, strconv.FormatFloat(score, 'g', -1, 32))
		}
		if env.Iteration-bestIter >= rounds {
			env.StopTraining = true
			env.Booster.logger.Info("Early stopping",
				log.BestIterationKey, bestIter, log.BestScoreKey, best)
		}
		return nil
	}
}
