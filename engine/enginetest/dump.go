package enginetest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

func (e *Engine) BoosterDumpModelEx(h engine.BoosterHandle, fmap string, withStats bool, format string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "XGBoosterDumpModelEx"
	m, err := e.booster(op, h)
	if err != nil {
		return nil, err
	}
	names, err := readFeatureNames(fmap)
	if err != nil {
		return nil, errors.NewEngineError(op, err.Error())
	}
	featureName := func(j int) string {
		if n, ok := names[j]; ok {
			return n
		}
		return "f" + strconv.Itoa(j)
	}

	out := make([]string, 0, len(m.Rounds))
	for t, r := range m.Rounds {
		switch format {
		case engine.DumpFormatText:
			out = append(out, dumpText(t, r, withStats, featureName))
		case engine.DumpFormatJSON:
			s, err := dumpJSON(t, r, withStats, featureName)
			if err != nil {
				return nil, errors.NewEngineError(op, err.Error())
			}
			out = append(out, s)
		default:
			return nil, errors.NewEngineError(op, fmt.Sprintf("unknown dump format %q", format))
		}
	}
	return out, nil
}

func dumpText(t int, r round, withStats bool, name func(int) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "booster[%d]:\n", t)
	fmt.Fprintf(&b, "bias:%s", strconv.FormatFloat(r.Bias, 'g', -1, 64))
	if withStats {
		fmt.Fprintf(&b, ",cover=%s", strconv.FormatFloat(r.Cover, 'g', -1, 64))
	}
	b.WriteByte('\n')
	for j, w := range r.Weights {
		fmt.Fprintf(&b, "%s:%s\n", name(j), strconv.FormatFloat(w, 'g', -1, 64))
	}
	return b.String()
}

type jsonWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

type jsonRound struct {
	Booster int          `json:"booster"`
	Bias    float64      `json:"bias"`
	Cover   *float64     `json:"cover,omitempty"`
	Weights []jsonWeight `json:"weights"`
}

func dumpJSON(t int, r round, withStats bool, name func(int) string) (string, error) {
	jr := jsonRound{Booster: t, Bias: r.Bias, Weights: make([]jsonWeight, len(r.Weights))}
	if withStats {
		cover := r.Cover
		jr.Cover = &cover
	}
	for j, w := range r.Weights {
		jr.Weights[j] = jsonWeight{Feature: name(j), Weight: w}
	}
	b, err := json.Marshal(jr)
	return string(b), err
}

// readFeatureNames reads the name column of a feature map file. An empty
// path yields no names.
func readFeatureNames(path string) (map[int]string, error) {
	names := make(map[int]string)
	if path == "" {
		return names, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("feature map line %d: expected 3 fields", line)
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("feature map line %d: %v", line, err)
		}
		names[idx] = fields[1]
	}
	return names, sc.Err()
}
