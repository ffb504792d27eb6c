package parameters

import "github.com/YuminosukeSato/xgboost/pkg/errors"

// BoosterType is one of TreeBoosterParameters, LinearBoosterParameters or
// DartBoosterParameters.
type BoosterType interface {
	AsStringPairs() []Pair
	validate() error
}

// Verbosity は engine のログ出力レベルです。
type Verbosity int

const (
	VerbositySilent Verbosity = iota
	VerbosityWarning
	VerbosityInfo
	VerbosityDebug
)

// BoosterParameters is the complete configuration handed to a booster.
type BoosterParameters struct {
	booster   BoosterType
	learning  LearningTaskParameters
	verbosity Verbosity
	nthread   int
	hasThread bool
}

// DefaultBoosterParameters returns a tree booster, the default learning task
// and silent verbosity. nthread is left to the engine.
func DefaultBoosterParameters() BoosterParameters {
	return BoosterParameters{
		booster:  DefaultTreeBoosterParameters(),
		learning: DefaultLearningTaskParameters(),
	}
}

func (p BoosterParameters) BoosterType() BoosterType         { return p.booster }
func (p BoosterParameters) Learning() LearningTaskParameters { return p.learning }
func (p BoosterParameters) Verbosity() Verbosity             { return p.verbosity }

// NThread returns the configured thread count and whether it was set.
func (p BoosterParameters) NThread() (int, bool) { return p.nthread, p.hasThread }

func (p BoosterParameters) validate() error {
	if p.booster == nil {
		return errors.NewValidationError("booster", "must be set", nil)
	}
	if err := p.booster.validate(); err != nil {
		return err
	}
	if err := p.learning.validate(); err != nil {
		return err
	}
	if p.verbosity < VerbositySilent || p.verbosity > VerbosityDebug {
		return errors.NewValidationError("verbosity", "must be within 0..3", int(p.verbosity))
	}
	if p.hasThread {
		return minInt(p.nthread, 1, "nthread")
	}
	return nil
}

// AsStringPairs returns the booster pairs, the learning task pairs,
// verbosity and nthread (when set), in that order.
func (p BoosterParameters) AsStringPairs() []Pair {
	booster := p.booster
	if booster == nil {
		booster = DefaultTreeBoosterParameters()
	}
	pairs := append(booster.AsStringPairs(), p.learning.AsStringPairs()...)
	pairs = append(pairs, Pair{"verbosity", formatInt(int(p.verbosity))})
	if p.hasThread {
		pairs = append(pairs, Pair{"nthread", formatInt(p.nthread)})
	}
	return pairs
}

// BoosterParametersBuilder accumulates the top-level configuration.
type BoosterParametersBuilder struct {
	p BoosterParameters
}

func NewBoosterParametersBuilder() *BoosterParametersBuilder {
	return &BoosterParametersBuilder{p: DefaultBoosterParameters()}
}

func (b *BoosterParametersBuilder) BoosterType(v BoosterType) *BoosterParametersBuilder {
	b.p.booster = v
	return b
}

func (b *BoosterParametersBuilder) Learning(v LearningTaskParameters) *BoosterParametersBuilder {
	b.p.learning = v
	return b
}

func (b *BoosterParametersBuilder) Verbosity(v Verbosity) *BoosterParametersBuilder {
	b.p.verbosity = v
	return b
}

// NThread sets the engine thread count.
func (b *BoosterParametersBuilder) NThread(v int) *BoosterParametersBuilder {
	b.p.nthread = v
	b.p.hasThread = true
	return b
}

func (b *BoosterParametersBuilder) Build() (BoosterParameters, error) {
	if err := b.p.validate(); err != nil {
		return BoosterParameters{}, err
	}
	return b.p, nil
}
