package booster

import (
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// EvalSet names a dataset in an evaluation list.
type EvalSet struct {
	Dataset Dataset
	Name    string
}

// EvalResult maps dataset name to metric name to score. Datasets and
// metrics keep their first insertion order.
type EvalResult struct {
	datasets []string
	metrics  map[string][]string
	scores   map[string]map[string]float32
}

// NewEvalResult returns an empty result.
func NewEvalResult() *EvalResult {
	return &EvalResult{
		metrics: make(map[string][]string),
		scores:  make(map[string]map[string]float32),
	}
}

// Set stores a score, replacing an earlier one for the same pair.
func (r *EvalResult) Set(dataset, metric string, score float32) {
	m, ok := r.scores[dataset]
	if !ok {
		m = make(map[string]float32)
		r.scores[dataset] = m
		r.datasets = append(r.datasets, dataset)
	}
	if _, ok := m[metric]; !ok {
		r.metrics[dataset] = append(r.metrics[dataset], metric)
	}
	m[metric] = score
}

// Datasets returns dataset names in insertion order.
func (r *EvalResult) Datasets() []string {
	return append([]string(nil), r.datasets...)
}

// Metrics returns the metric names recorded for dataset in insertion order.
func (r *EvalResult) Metrics(dataset string) []string {
	return append([]string(nil), r.metrics[dataset]...)
}

// Score looks up one score.
func (r *EvalResult) Score(dataset, metric string) (float32, bool) {
	s, ok := r.scores[dataset][metric]
	return s, ok
}

// Dataset returns a copy of the metric scores of one dataset. Unknown
// datasets yield an empty map.
func (r *EvalResult) Dataset(name string) map[string]float32 {
	out := make(map[string]float32, len(r.scores[name]))
	for k, v := range r.scores[name] {
		out[k] = v
	}
	return out
}

// Len returns the number of datasets.
func (r *EvalResult) Len() int { return len(r.datasets) }

// ParseEvalString parses an engine evaluation line such as
//
//	[0]\ttrain-rmse:0.5\ttest-rmse:0.75
//
// A token belongs to a dataset when it starts with the name followed by
// "-", so "train" never claims a "train2-..." token.
func ParseEvalString(line string, names []string) (*EvalResult, error) {
	res := NewEvalResult()
	tokens := strings.Split(strings.TrimRight(line, "\n"), "\t")
	for _, token := range tokens[1:] {
		for _, name := range names {
			prefix := name + "-"
			if !strings.HasPrefix(token, prefix) {
				continue
			}
			parts := strings.Split(token[len(prefix):], ":")
			if len(parts) != 2 {
				return nil, errors.NewParseError(line, 0, "expected exactly one ':' in "+strconv.Quote(token))
			}
			score, err := strconv.ParseFloat(parts[1], 32)
			if err != nil {
				return nil, errors.NewParseError(line, 0, "invalid score "+strconv.Quote(parts[1]))
			}
			res.Set(name, parts[0], float32(score))
		}
	}
	return res, nil
}

// FormatEvalLine renders res as "[iter]\t<dataset>-<metric>:<score>...",
// ordered by metric name and then by dataset name.
func FormatEvalLine(iteration int, res *EvalResult) string {
	byMetric := make(map[string][]string)
	for _, ds := range res.datasets {
		for _, m := range res.metrics[ds] {
			byMetric[m] = append(byMetric[m], ds)
		}
	}
	metrics := make([]string, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var sb strings.Builder
	sb.WriteString("[" + strconv.Itoa(iteration) + "]")
	for _, m := range metrics {
		datasets := byMetric[m]
		sort.Strings(datasets)
		for _, ds := range datasets {
			sb.WriteString("\t" + ds + "-" + m + ":")
			sb.WriteString(strconv.FormatFloat(float64(res.scores[ds][m]), 'g', -1, 32))
		}
	}
	return sb.String()
}

// EvalSet evaluates every set with the configured metrics.
func (b *Booster) EvalSet(evals []EvalSet, iteration int) (*EvalResult, error) {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(evals)
	if err := b.live(); err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, errors.NewValidationError("evals", "must not be empty", 0)
	}
	handles := make([]engine.DatasetHandle, len(evals))
	names := make([]string, len(evals))
	for i, ev := range evals {
		if err := checkDataset(ev.Name, ev.Dataset); err != nil {
			return nil, err
		}
		handles[i] = ev.Dataset.Handle()
		names[i] = ev.Name
	}

	line, err := b.eng.BoosterEvalOneIter(b.handle, iteration, handles, names)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate iteration %d", iteration)
	}
	res, err := ParseEvalString(line, names)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Parsed evaluation", log.OperationKey, log.OperationEval, log.IterationKey, iteration, log.DatasetKey, strings.Join(names, ","), log.EvalKey, line)
	return res, nil
}

// Evaluate scores d with the configured metrics under the name "default".
func (b *Booster) Evaluate(d Dataset) (map[string]float32, error) {
	const name = "default"
	res, err := b.EvalSet([]EvalSet{{Dataset: d, Name: name}}, 0)
	if err != nil {
		return nil, err
	}
	return res.Dataset(name), nil
}
