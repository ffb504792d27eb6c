package parameters

// SampleType はドロップする木の選び方です。
type SampleType string

const (
	SampleTypeUniform  SampleType = "uniform"
	SampleTypeWeighted SampleType = "weighted"
)

// NormalizeType は新しい木とドロップした木の重みの正規化方法です。
type NormalizeType string

const (
	NormalizeTypeTree   NormalizeType = "tree"
	NormalizeTypeForest NormalizeType = "forest"
)

// DartBoosterParameters は tree パラメータに dropout 設定を加えたものです。
type DartBoosterParameters struct {
	tree          TreeBoosterParameters
	sampleType    SampleType
	normalizeType NormalizeType
	rateDrop      float32
	oneDrop       bool
	skipDrop      float32
}

// DefaultDartBoosterParameters returns the tree defaults with dropout disabled.
func DefaultDartBoosterParameters() DartBoosterParameters {
	return DartBoosterParameters{
		tree:          DefaultTreeBoosterParameters(),
		sampleType:    SampleTypeUniform,
		normalizeType: NormalizeTypeTree,
	}
}

func (p DartBoosterParameters) Tree() TreeBoosterParameters { return p.tree }
func (p DartBoosterParameters) RateDrop() float32           { return p.rateDrop }
func (p DartBoosterParameters) SkipDrop() float32           { return p.skipDrop }
func (p DartBoosterParameters) OneDrop() bool               { return p.oneDrop }

func (p DartBoosterParameters) validate() error {
	if err := p.tree.validate(); err != nil {
		return err
	}
	if err := oneOf("sample_type", p.sampleType, SampleTypeUniform, SampleTypeWeighted); err != nil {
		return err
	}
	if err := oneOf("normalize_type", p.normalizeType, NormalizeTypeTree, NormalizeTypeForest); err != nil {
		return err
	}
	if err := unitClosed.validate32(p.rateDrop, "rate_drop"); err != nil {
		return err
	}
	return unitClosed.validate32(p.skipDrop, "skip_drop")
}

// AsStringPairs returns booster=dart, the tree pairs and then the dropout pairs.
func (p DartBoosterParameters) AsStringPairs() []Pair {
	pairs := append([]Pair{{"booster", "dart"}}, p.tree.pairs()...)
	return append(pairs,
		Pair{"sample_type", string(p.sampleType)},
		Pair{"normalize_type", string(p.normalizeType)},
		Pair{"rate_drop", formatFloat(p.rateDrop)},
		Pair{"one_drop", formatBool(p.oneDrop)},
		Pair{"skip_drop", formatFloat(p.skipDrop)},
	)
}

// DartBoosterParametersBuilder accumulates DART parameters.
type DartBoosterParametersBuilder struct {
	p DartBoosterParameters
}

func NewDartBoosterParametersBuilder() *DartBoosterParametersBuilder {
	return &DartBoosterParametersBuilder{p: DefaultDartBoosterParameters()}
}

// Tree replaces the underlying tree parameters.
func (b *DartBoosterParametersBuilder) Tree(v TreeBoosterParameters) *DartBoosterParametersBuilder {
	b.p.tree = v
	return b
}

func (b *DartBoosterParametersBuilder) SampleType(v SampleType) *DartBoosterParametersBuilder {
	b.p.sampleType = v
	return b
}

func (b *DartBoosterParametersBuilder) NormalizeType(v NormalizeType) *DartBoosterParametersBuilder {
	b.p.normalizeType = v
	return b
}

func (b *DartBoosterParametersBuilder) RateDrop(v float32) *DartBoosterParametersBuilder {
	b.p.rateDrop = v
	return b
}

func (b *DartBoosterParametersBuilder) OneDrop(v bool) *DartBoosterParametersBuilder {
	b.p.oneDrop = v
	return b
}

func (b *DartBoosterParametersBuilder) SkipDrop(v float32) *DartBoosterParametersBuilder {
	b.p.skipDrop = v
	return b
}

func (b *DartBoosterParametersBuilder) Build() (DartBoosterParameters, error) {
	if err := b.p.validate(); err != nil {
		return DartBoosterParameters{}, err
	}
	out := b.p
	out.tree.updater = append([]TreeUpdater(nil), b.p.tree.updater...)
	return out, nil
}
