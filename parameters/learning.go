package parameters

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// Objective is a learning objective. Multi-class objectives carry the class
// count and reg:tweedie carries its variance power.
type Objective struct {
	name                 string
	numClass             int
	tweedieVariancePower float32
}

var (
	RegSquaredError     = Objective{name: "reg:squarederror"}
	RegSquaredLogError  = Objective{name: "reg:squaredlogerror"}
	RegLogistic         = Objective{name: "reg:logistic"}
	RegPseudoHuberError = Objective{name: "reg:pseudohubererror"}
	RegGamma            = Objective{name: "reg:gamma"}
	BinaryLogistic      = Objective{name: "binary:logistic"}
	BinaryLogitRaw      = Objective{name: "binary:logitraw"}
	BinaryHinge         = Objective{name: "binary:hinge"}
	CountPoisson        = Objective{name: "count:poisson"}
	SurvivalCox         = Objective{name: "survival:cox"}
	RankPairwise        = Objective{name: "rank:pairwise"}
	RankNDCG            = Objective{name: "rank:ndcg"}
	RankMAP             = Objective{name: "rank:map"}
)

var plainObjectives = []Objective{
	RegSquaredError, RegSquaredLogError, RegLogistic, RegPseudoHuberError, RegGamma,
	BinaryLogistic, BinaryLogitRaw, BinaryHinge, CountPoisson, SurvivalCox,
	RankPairwise, RankNDCG, RankMAP,
}

const (
	objMultiSoftmax  = "multi:softmax"
	objMultiSoftprob = "multi:softprob"
	objRegTweedie    = "reg:tweedie"
)

// MultiSoftmax predicts the class index among numClass classes.
func MultiSoftmax(numClass int) Objective {
	return Objective{name: objMultiSoftmax, numClass: numClass}
}

// MultiSoftprob predicts one probability per class.
func MultiSoftprob(numClass int) Objective {
	return Objective{name: objMultiSoftprob, numClass: numClass}
}

// RegTweedie is Tweedie regression with the given variance power in (1, 2).
func RegTweedie(variancePower float32) Objective {
	return Objective{name: objRegTweedie, tweedieVariancePower: variancePower}
}

// Name returns the engine token, e.g. "binary:logistic".
func (o Objective) Name() string { return o.name }

// NumClass is 0 for objectives without classes.
func (o Objective) NumClass() int { return o.numClass }

func (o Objective) String() string { return o.name }

func (o Objective) validate() error {
	switch o.name {
	case objMultiSoftmax, objMultiSoftprob:
		return minInt(o.numClass, 1, "num_class")
	case objRegTweedie:
		return tweedieRange.validate32(o.tweedieVariancePower, "tweedie_variance_power")
	}
	for _, obj := range plainObjectives {
		if o.name == obj.name {
			return nil
		}
	}
	return errors.NewValidationError("objective", "unknown objective", o.name)
}

// ParseObjective resolves an objective token. multi:* objectives and
// reg:tweedie are returned with numClass and variancePower applied; the
// other objectives ignore them.
func ParseObjective(name string, numClass int, variancePower float32) (Objective, error) {
	var o Objective
	switch name {
	case objMultiSoftmax:
		o = MultiSoftmax(numClass)
	case objMultiSoftprob:
		o = MultiSoftprob(numClass)
	case objRegTweedie:
		o = RegTweedie(variancePower)
	default:
		o = Objective{name: name}
	}
	if err := o.validate(); err != nil {
		return Objective{}, err
	}
	return o, nil
}

func (o Objective) pairs() []Pair {
	pairs := []Pair{{"objective", o.name}}
	switch o.name {
	case objMultiSoftmax, objMultiSoftprob:
		pairs = append(pairs, Pair{"num_class", formatInt(o.numClass)})
	case objRegTweedie:
		pairs = append(pairs, Pair{"tweedie_variance_power", formatFloat(o.tweedieVariancePower)})
	}
	return pairs
}

// EvalMetric is an evaluation metric token as the engine spells it.
type EvalMetric string

const (
	MetricRMSE           EvalMetric = "rmse"
	MetricRMSLE          EvalMetric = "rmsle"
	MetricMAE            EvalMetric = "mae"
	MetricLogLoss        EvalMetric = "logloss"
	MetricError          EvalMetric = "error"
	MetricMultiError     EvalMetric = "merror"
	MetricMultiLogLoss   EvalMetric = "mlogloss"
	MetricAUC            EvalMetric = "auc"
	MetricNDCG           EvalMetric = "ndcg"
	MetricMAP            EvalMetric = "map"
	MetricPoissonNLogLik EvalMetric = "poisson-nloglik"
	MetricGammaNLogLik   EvalMetric = "gamma-nloglik"
	MetricGammaDeviance  EvalMetric = "gamma-deviance"
	MetricCoxNLogLik     EvalMetric = "cox-nloglik"
	MetricTweedieNLogLik EvalMetric = "tweedie-nloglik"
)

var simpleMetrics = []EvalMetric{
	MetricRMSE, MetricRMSLE, MetricMAE, MetricLogLoss, MetricError, MetricMultiError,
	MetricMultiLogLoss, MetricAUC, MetricNDCG, MetricMAP, MetricPoissonNLogLik,
	MetricGammaNLogLik, MetricGammaDeviance, MetricCoxNLogLik, MetricTweedieNLogLik,
}

// ErrorAt is the binary error rate with a custom threshold, "error@t".
func ErrorAt(threshold float32) EvalMetric {
	return EvalMetric("error@" + formatFloat(threshold))
}

// NDCGAt evaluates only the top n positions of each group.
func NDCGAt(n int) EvalMetric {
	return EvalMetric("ndcg@" + formatInt(n))
}

// MAPAt evaluates only the top n positions of each group.
func MAPAt(n int) EvalMetric {
	return EvalMetric("map@" + formatInt(n))
}

// Minus marks a ranking metric so that groups without positives score 0
// instead of 1.
func Minus(m EvalMetric) EvalMetric {
	return m + "-"
}

// ParseEvalMetric checks the syntax of a metric token.
func ParseEvalMetric(s string) (EvalMetric, error) {
	m := EvalMetric(s)
	for _, known := range simpleMetrics {
		if m == known {
			return m, nil
		}
	}
	invalid := errors.NewValidationError("eval_metric", "unknown metric", s)
	base, arg, hasArg := strings.Cut(s, "@")
	switch base {
	case "error":
		if !hasArg {
			return "", invalid
		}
		t, err := strconv.ParseFloat(arg, 32)
		if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
			return "", invalid
		}
		return m, nil
	case "ndcg-", "map-":
		if hasArg {
			return "", invalid
		}
		return m, nil
	case "ndcg", "map":
		if !hasArg {
			return "", invalid
		}
		arg = strings.TrimSuffix(arg, "-")
		if n, err := strconv.Atoi(arg); err != nil || n < 0 {
			return "", invalid
		}
		return m, nil
	}
	return "", invalid
}

// LearningTaskParameters configures the objective and evaluation.
type LearningTaskParameters struct {
	objective   Objective
	baseScore   float32
	evalMetrics []EvalMetric
	seed        int64
}

// DefaultLearningTaskParameters returns reg:squarederror with base_score 0.5
// and seed 0. No eval_metric is set, so the engine picks the objective's
// default.
func DefaultLearningTaskParameters() LearningTaskParameters {
	return LearningTaskParameters{objective: RegSquaredError, baseScore: 0.5}
}

func (p LearningTaskParameters) Objective() Objective { return p.objective }
func (p LearningTaskParameters) BaseScore() float32   { return p.baseScore }
func (p LearningTaskParameters) Seed() int64          { return p.seed }

func (p LearningTaskParameters) EvalMetrics() []EvalMetric {
	return append([]EvalMetric(nil), p.evalMetrics...)
}

func (p LearningTaskParameters) validate() error {
	if err := p.objective.validate(); err != nil {
		return err
	}
	if math.IsNaN(float64(p.baseScore)) || math.IsInf(float64(p.baseScore), 0) {
		return errors.NewValidationError("base_score", "must be finite", p.baseScore)
	}
	for _, m := range p.evalMetrics {
		if _, err := ParseEvalMetric(string(m)); err != nil {
			return err
		}
	}
	return nil
}

// AsStringPairs returns objective (with num_class or tweedie_variance_power
// when needed), base_score, one eval_metric pair per metric and seed.
func (p LearningTaskParameters) AsStringPairs() []Pair {
	pairs := p.objective.pairs()
	pairs = append(pairs, Pair{"base_score", formatFloat(p.baseScore)})
	for _, m := range p.evalMetrics {
		pairs = append(pairs, Pair{"eval_metric", string(m)})
	}
	return append(pairs, Pair{"seed", strconv.FormatInt(p.seed, 10)})
}

// LearningTaskParametersBuilder accumulates learning task parameters.
type LearningTaskParametersBuilder struct {
	p LearningTaskParameters
}

func NewLearningTaskParametersBuilder() *LearningTaskParametersBuilder {
	return &LearningTaskParametersBuilder{p: DefaultLearningTaskParameters()}
}

func (b *LearningTaskParametersBuilder) Objective(v Objective) *LearningTaskParametersBuilder {
	b.p.objective = v
	return b
}

func (b *LearningTaskParametersBuilder) BaseScore(v float32) *LearningTaskParametersBuilder {
	b.p.baseScore = v
	return b
}

// EvalMetrics replaces the metric list. Duplicates are kept once, in first
// occurrence order.
func (b *LearningTaskParametersBuilder) EvalMetrics(v ...EvalMetric) *LearningTaskParametersBuilder {
	b.p.evalMetrics = b.p.evalMetrics[:0:0]
	seen := make(map[EvalMetric]struct{}, len(v))
	for _, m := range v {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		b.p.evalMetrics = append(b.p.evalMetrics, m)
	}
	return b
}

func (b *LearningTaskParametersBuilder) Seed(v int64) *LearningTaskParametersBuilder {
	b.p.seed = v
	return b
}

func (b *LearningTaskParametersBuilder) Build() (LearningTaskParameters, error) {
	if err := b.p.validate(); err != nil {
		return LearningTaskParameters{}, err
	}
	out := b.p
	out.evalMetrics = append([]EvalMetric(nil), b.p.evalMetrics...)
	return out, nil
}
