package parameters

// LinearUpdater is the coordinate update algorithm of gblinear.
type LinearUpdater string

const (
	LinearUpdaterShotgun      LinearUpdater = "shotgun"
	LinearUpdaterCoordDescent LinearUpdater = "coord_descent"
)

// LinearBoosterParameters configures the gblinear booster.
type LinearBoosterParameters struct {
	lambda  float32
	alpha   float32
	updater LinearUpdater
}

// DefaultLinearBoosterParameters returns lambda=0, alpha=0 and the shotgun updater.
func DefaultLinearBoosterParameters() LinearBoosterParameters {
	return LinearBoosterParameters{updater: LinearUpdaterShotgun}
}

func (p LinearBoosterParameters) Lambda() float32        { return p.lambda }
func (p LinearBoosterParameters) Alpha() float32         { return p.alpha }
func (p LinearBoosterParameters) Updater() LinearUpdater { return p.updater }

func (p LinearBoosterParameters) validate() error {
	if err := nonNegative.validate32(p.lambda, "lambda"); err != nil {
		return err
	}
	if err := nonNegative.validate32(p.alpha, "alpha"); err != nil {
		return err
	}
	return oneOf("updater", p.updater, LinearUpdaterShotgun, LinearUpdaterCoordDescent)
}

// AsStringPairs returns booster=gblinear followed by lambda, alpha and updater.
func (p LinearBoosterParameters) AsStringPairs() []Pair {
	return []Pair{
		{"booster", "gblinear"},
		{"lambda", formatFloat(p.lambda)},
		{"alpha", formatFloat(p.alpha)},
		{"updater", string(p.updater)},
	}
}

// LinearBoosterParametersBuilder accumulates gblinear parameters.
type LinearBoosterParametersBuilder struct {
	p LinearBoosterParameters
}

func NewLinearBoosterParametersBuilder() *LinearBoosterParametersBuilder {
	return &LinearBoosterParametersBuilder{p: DefaultLinearBoosterParameters()}
}

func (b *LinearBoosterParametersBuilder) Lambda(v float32) *LinearBoosterParametersBuilder {
	b.p.lambda = v
	return b
}

func (b *LinearBoosterParametersBuilder) Alpha(v float32) *LinearBoosterParametersBuilder {
	b.p.alpha = v
	return b
}

func (b *LinearBoosterParametersBuilder) Updater(v LinearUpdater) *LinearBoosterParametersBuilder {
	b.p.updater = v
	return b
}

func (b *LinearBoosterParametersBuilder) Build() (LinearBoosterParameters, error) {
	if err := b.p.validate(); err != nil {
		return LinearBoosterParameters{}, err
	}
	return b.p, nil
}
