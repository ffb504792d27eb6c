// Package history accumulates per-round evaluation scores of a training run
// and renders them as learning curves.
package history

import (
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Scores is the read side of one round's evaluation result.
type Scores interface {
	Datasets() []string
	Metrics(dataset string) []string
	Score(dataset, metric string) (float32, bool)
}

// point is one recorded score.
type point struct {
	iteration int
	score     float64
}

// EvalHistory はイテレーションごとの評価スコアを保持します。
// ゼロ値は使えないので New で生成してください。
type EvalHistory struct {
	datasets []string
	metrics  map[string][]string
	series   map[string]map[string][]point
	rounds   map[int]struct{}
}

// New returns an empty history.
func New() *EvalHistory {
	return &EvalHistory{
		metrics: make(map[string][]string),
		series:  make(map[string]map[string][]point),
		rounds:  make(map[int]struct{}),
	}
}

// Record appends every score of res under iteration. A nil res is ignored.
func (h *EvalHistory) Record(iteration int, res Scores) {
	if res == nil {
		return
	}
	h.rounds[iteration] = struct{}{}
	for _, ds := range res.Datasets() {
		byMetric, ok := h.series[ds]
		if !ok {
			byMetric = make(map[string][]point)
			h.series[ds] = byMetric
			h.datasets = append(h.datasets, ds)
		}
		for _, m := range res.Metrics(ds) {
			s, ok := res.Score(ds, m)
			if !ok {
				continue
			}
			if _, seen := byMetric[m]; !seen {
				h.metrics[ds] = append(h.metrics[ds], m)
			}
			byMetric[m] = append(byMetric[m], point{iteration: iteration, score: float64(s)})
		}
	}
}

// Len returns the number of distinct recorded iterations.
func (h *EvalHistory) Len() int { return len(h.rounds) }

// Datasets returns dataset names in first-seen order.
func (h *EvalHistory) Datasets() []string {
	return append([]string(nil), h.datasets...)
}

// Metrics returns the metrics recorded for dataset in first-seen order.
func (h *EvalHistory) Metrics(dataset string) []string {
	return append([]string(nil), h.metrics[dataset]...)
}

// Series returns the scores of one dataset and metric in recording order.
func (h *EvalHistory) Series(dataset, metric string) []float64 {
	pts := h.series[dataset][metric]
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.score
	}
	return out
}

// Best returns the iteration with the lowest score, or the highest when
// maximize is set. Ties keep the earliest iteration. ok is false when
// nothing was recorded for the pair.
func (h *EvalHistory) Best(dataset, metric string, maximize bool) (iteration int, score float64, ok bool) {
	pts := h.series[dataset][metric]
	if len(pts) == 0 {
		return 0, 0, false
	}
	best := pts[0]
	for _, p := range pts[1:] {
		if math.IsNaN(p.score) {
			continue
		}
		if math.IsNaN(best.score) || (maximize && p.score > best.score) || (!maximize && p.score < best.score) {
			best = p
		}
	}
	return best.iteration, best.score, true
}

// Plot saves a learning curve of metric with one line per dataset. The image
// format follows the extension of path (png, svg, pdf, ...).
func (h *EvalHistory) Plot(path, metric string, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = metric
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = metric

	datasets := make([]string, 0, len(h.datasets))
	for _, ds := range h.datasets {
		if len(h.series[ds][metric]) > 0 {
			datasets = append(datasets, ds)
		}
	}
	if len(datasets) == 0 {
		return errors.NewValidationError("metric", "no recorded scores", metric)
	}
	sort.Strings(datasets)

	lines := make([]interface{}, 0, 2*len(datasets))
	for _, ds := range datasets {
		pts := h.series[ds][metric]
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i].X = float64(pt.iteration)
			xys[i].Y = pt.score
		}
		lines = append(lines, ds, xys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "build learning curve")
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "save learning curve to %s", path)
	}
	return nil
}
