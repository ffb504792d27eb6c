package parameters

import (
	"strings"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// TreeMethod は木の構築アルゴリズムです。
type TreeMethod string

const (
	TreeMethodAuto   TreeMethod = "auto"
	TreeMethodExact  TreeMethod = "exact"
	TreeMethodApprox TreeMethod = "approx"
	TreeMethodHist   TreeMethod = "hist"
)

// ProcessType selects between building new trees and updating existing ones.
type ProcessType string

const (
	ProcessTypeDefault ProcessType = "default"
	ProcessTypeUpdate  ProcessType = "update"
)

// GrowPolicy は新しいノードの追加順序です。
type GrowPolicy string

const (
	GrowPolicyDepthwise GrowPolicy = "depthwise"
	GrowPolicyLossGuide GrowPolicy = "lossguide"
)

// TreeUpdater is one stage of the tree updater sequence.
type TreeUpdater string

const (
	UpdaterGrowColMaker          TreeUpdater = "grow_colmaker"
	UpdaterDistCol               TreeUpdater = "distcol"
	UpdaterGrowHistMaker         TreeUpdater = "grow_histmaker"
	UpdaterGrowQuantileHistMaker TreeUpdater = "grow_quantile_histmaker"
	UpdaterSync                  TreeUpdater = "sync"
	UpdaterRefresh               TreeUpdater = "refresh"
	UpdaterPrune                 TreeUpdater = "prune"
)

var treeUpdaters = []TreeUpdater{
	UpdaterGrowColMaker, UpdaterDistCol, UpdaterGrowHistMaker,
	UpdaterGrowQuantileHistMaker, UpdaterSync, UpdaterRefresh, UpdaterPrune,
}

// TreeBoosterParameters は gbtree ブースターの検証済みパラメータです。
// 値はビルダー経由でのみ作成され、作成後は変更できません。
type TreeBoosterParameters struct {
	eta             float32
	gamma           float32
	maxDepth        int
	minChildWeight  float32
	maxDeltaStep    float32
	subsample       float32
	colsampleByTree float32
	colsampleByLvl  float32
	colsampleByNode float32
	lambda          float32
	alpha           float32
	treeMethod      TreeMethod
	sketchEps       float32
	scalePosWeight  float32
	updater         []TreeUpdater
	refreshLeaf     bool
	processType     ProcessType
	growPolicy      GrowPolicy
	maxLeaves       int
	maxBin          int
	numParallelTree int
}

// DefaultTreeBoosterParameters returns the engine defaults.
func DefaultTreeBoosterParameters() TreeBoosterParameters {
	return TreeBoosterParameters{
		eta:             0.3,
		maxDepth:        6,
		minChildWeight:  1,
		subsample:       1,
		colsampleByTree: 1,
		colsampleByLvl:  1,
		colsampleByNode: 1,
		lambda:          1,
		treeMethod:      TreeMethodAuto,
		sketchEps:       0.03,
		scalePosWeight:  1,
		refreshLeaf:     true,
		processType:     ProcessTypeDefault,
		growPolicy:      GrowPolicyDepthwise,
		maxBin:          256,
		numParallelTree: 1,
	}
}

func (p TreeBoosterParameters) Eta() float32             { return p.eta }
func (p TreeBoosterParameters) MaxDepth() int            { return p.maxDepth }
func (p TreeBoosterParameters) TreeMethod() TreeMethod   { return p.treeMethod }
func (p TreeBoosterParameters) GrowPolicy() GrowPolicy   { return p.growPolicy }
func (p TreeBoosterParameters) NumParallelTree() int     { return p.numParallelTree }
func (p TreeBoosterParameters) Updater() []TreeUpdater   { return append([]TreeUpdater(nil), p.updater...) }
func (p TreeBoosterParameters) ProcessType() ProcessType { return p.processType }

func (p TreeBoosterParameters) validate() error {
	checks := []error{
		unitClosed.validate32(p.eta, "eta"),
		nonNegative.validate32(p.gamma, "gamma"),
		nonNegativeInt(p.maxDepth, "max_depth"),
		nonNegative.validate32(p.minChildWeight, "min_child_weight"),
		nonNegative.validate32(p.maxDeltaStep, "max_delta_step"),
		unitOpenLow.validate32(p.subsample, "subsample"),
		unitOpenLow.validate32(p.colsampleByTree, "colsample_bytree"),
		unitOpenLow.validate32(p.colsampleByLvl, "colsample_bylevel"),
		unitOpenLow.validate32(p.colsampleByNode, "colsample_bynode"),
		nonNegative.validate32(p.lambda, "lambda"),
		nonNegative.validate32(p.alpha, "alpha"),
		oneOf("tree_method", p.treeMethod, TreeMethodAuto, TreeMethodExact, TreeMethodApprox, TreeMethodHist),
		unitOpen.validate32(p.sketchEps, "sketch_eps"),
		nonNegative.validate32(p.scalePosWeight, "scale_pos_weight"),
		oneOf("process_type", p.processType, ProcessTypeDefault, ProcessTypeUpdate),
		oneOf("grow_policy", p.growPolicy, GrowPolicyDepthwise, GrowPolicyLossGuide),
		nonNegativeInt(p.maxLeaves, "max_leaves"),
		minInt(p.maxBin, 2, "max_bin"),
		minInt(p.numParallelTree, 1, "num_parallel_tree"),
	}
	for _, u := range p.updater {
		checks = append(checks, oneOf("updater", u, treeUpdaters...))
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// AsStringPairs returns the booster=gbtree pair followed by every tree
// parameter. updater is omitted when empty.
func (p TreeBoosterParameters) AsStringPairs() []Pair {
	return append([]Pair{{"booster", "gbtree"}}, p.pairs()...)
}

func (p TreeBoosterParameters) pairs() []Pair {
	pairs := []Pair{
		{"eta", formatFloat(p.eta)},
		{"gamma", formatFloat(p.gamma)},
		{"max_depth", formatInt(p.maxDepth)},
		{"min_child_weight", formatFloat(p.minChildWeight)},
		{"max_delta_step", formatFloat(p.maxDeltaStep)},
		{"subsample", formatFloat(p.subsample)},
		{"colsample_bytree", formatFloat(p.colsampleByTree)},
		{"colsample_bylevel", formatFloat(p.colsampleByLvl)},
		{"colsample_bynode", formatFloat(p.colsampleByNode)},
		{"lambda", formatFloat(p.lambda)},
		{"alpha", formatFloat(p.alpha)},
		{"tree_method", string(p.treeMethod)},
		{"sketch_eps", formatFloat(p.sketchEps)},
		{"scale_pos_weight", formatFloat(p.scalePosWeight)},
	}
	if len(p.updater) > 0 {
		names := make([]string, len(p.updater))
		for i, u := range p.updater {
			names[i] = string(u)
		}
		pairs = append(pairs, Pair{"updater", strings.Join(names, ",")})
	}
	return append(pairs,
		Pair{"refresh_leaf", formatBool(p.refreshLeaf)},
		Pair{"process_type", string(p.processType)},
		Pair{"grow_policy", string(p.growPolicy)},
		Pair{"max_leaves", formatInt(p.maxLeaves)},
		Pair{"max_bin", formatInt(p.maxBin)},
		Pair{"num_parallel_tree", formatInt(p.numParallelTree)},
	)
}

// TreeBoosterParametersBuilder accumulates tree parameters for Build.
type TreeBoosterParametersBuilder struct {
	p TreeBoosterParameters
}

// NewTreeBoosterParametersBuilder starts from DefaultTreeBoosterParameters.
func NewTreeBoosterParametersBuilder() *TreeBoosterParametersBuilder {
	return &TreeBoosterParametersBuilder{p: DefaultTreeBoosterParameters()}
}

func (b *TreeBoosterParametersBuilder) Eta(v float32) *TreeBoosterParametersBuilder {
	b.p.eta = v
	return b
}

func (b *TreeBoosterParametersBuilder) Gamma(v float32) *TreeBoosterParametersBuilder {
	b.p.gamma = v
	return b
}

func (b *TreeBoosterParametersBuilder) MaxDepth(v int) *TreeBoosterParametersBuilder {
	b.p.maxDepth = v
	return b
}

func (b *TreeBoosterParametersBuilder) MinChildWeight(v float32) *TreeBoosterParametersBuilder {
	b.p.minChildWeight = v
	return b
}

func (b *TreeBoosterParametersBuilder) MaxDeltaStep(v float32) *TreeBoosterParametersBuilder {
	b.p.maxDeltaStep = v
	return b
}

func (b *TreeBoosterParametersBuilder) Subsample(v float32) *TreeBoosterParametersBuilder {
	b.p.subsample = v
	return b
}

func (b *TreeBoosterParametersBuilder) ColsampleByTree(v float32) *TreeBoosterParametersBuilder {
	b.p.colsampleByTree = v
	return b
}

func (b *TreeBoosterParametersBuilder) ColsampleByLevel(v float32) *TreeBoosterParametersBuilder {
	b.p.colsampleByLvl = v
	return b
}

func (b *TreeBoosterParametersBuilder) ColsampleByNode(v float32) *TreeBoosterParametersBuilder {
	b.p.colsampleByNode = v
	return b
}

func (b *TreeBoosterParametersBuilder) Lambda(v float32) *TreeBoosterParametersBuilder {
	b.p.lambda = v
	return b
}

func (b *TreeBoosterParametersBuilder) Alpha(v float32) *TreeBoosterParametersBuilder {
	b.p.alpha = v
	return b
}

func (b *TreeBoosterParametersBuilder) TreeMethod(v TreeMethod) *TreeBoosterParametersBuilder {
	b.p.treeMethod = v
	return b
}

func (b *TreeBoosterParametersBuilder) SketchEps(v float32) *TreeBoosterParametersBuilder {
	b.p.sketchEps = v
	return b
}

func (b *TreeBoosterParametersBuilder) ScalePosWeight(v float32) *TreeBoosterParametersBuilder {
	b.p.scalePosWeight = v
	return b
}

// Updater replaces the updater sequence.
func (b *TreeBoosterParametersBuilder) Updater(v ...TreeUpdater) *TreeBoosterParametersBuilder {
	b.p.updater = append([]TreeUpdater(nil), v...)
	return b
}

func (b *TreeBoosterParametersBuilder) RefreshLeaf(v bool) *TreeBoosterParametersBuilder {
	b.p.refreshLeaf = v
	return b
}

func (b *TreeBoosterParametersBuilder) ProcessType(v ProcessType) *TreeBoosterParametersBuilder {
	b.p.processType = v
	return b
}

func (b *TreeBoosterParametersBuilder) GrowPolicy(v GrowPolicy) *TreeBoosterParametersBuilder {
	b.p.growPolicy = v
	return b
}

func (b *TreeBoosterParametersBuilder) MaxLeaves(v int) *TreeBoosterParametersBuilder {
	b.p.maxLeaves = v
	return b
}

func (b *TreeBoosterParametersBuilder) MaxBin(v int) *TreeBoosterParametersBuilder {
	b.p.maxBin = v
	return b
}

func (b *TreeBoosterParametersBuilder) NumParallelTree(v int) *TreeBoosterParametersBuilder {
	b.p.numParallelTree = v
	return b
}

// Build validates every field and returns an independent copy.
func (b *TreeBoosterParametersBuilder) Build() (TreeBoosterParameters, error) {
	if err := b.p.validate(); err != nil {
		return TreeBoosterParameters{}, err
	}
	out := b.p
	out.updater = append([]TreeUpdater(nil), b.p.updater...)
	return out, nil
}

func nonNegativeInt(v int, name string) error {
	return minInt(v, 0, name)
}

func minInt(v, min int, name string) error {
	if v < min {
		return errors.NewValidationError(name, "must be >= "+formatInt(min), v)
	}
	return nil
}
