package parameters

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/xgboost/pkg/errors"
)

// fileConfig is the YAML layout read by Decode:
//
//	booster:
//	  type: dart
//	  tree: {eta: 0.3, max_depth: 6}
//	  dart: {rate_drop: 0.1, sample_type: weighted}
//	learning:
//	  objective: binary:logistic
//	  eval_metric: [logloss, "error@0.5"]
//	verbosity: 0
//	nthread: 4
type fileConfig struct {
	Booster struct {
		Type   string        `yaml:"type"`
		Tree   *treeConfig   `yaml:"tree"`
		Linear *linearConfig `yaml:"linear"`
		Dart   *dartConfig   `yaml:"dart"`
	} `yaml:"booster"`
	Learning  *learningConfig `yaml:"learning"`
	Verbosity *int            `yaml:"verbosity"`
	NThread   *int            `yaml:"nthread"`
}

type treeConfig struct {
	Eta             *float32 `yaml:"eta"`
	Gamma           *float32 `yaml:"gamma"`
	MaxDepth        *int     `yaml:"max_depth"`
	MinChildWeight  *float32 `yaml:"min_child_weight"`
	MaxDeltaStep    *float32 `yaml:"max_delta_step"`
	Subsample       *float32 `yaml:"subsample"`
	ColsampleByTree *float32 `yaml:"colsample_bytree"`
	ColsampleByLvl  *float32 `yaml:"colsample_bylevel"`
	ColsampleByNode *float32 `yaml:"colsample_bynode"`
	Lambda          *float32 `yaml:"lambda"`
	Alpha           *float32 `yaml:"alpha"`
	TreeMethod      *string  `yaml:"tree_method"`
	SketchEps       *float32 `yaml:"sketch_eps"`
	ScalePosWeight  *float32 `yaml:"scale_pos_weight"`
	Updater         []string `yaml:"updater"`
	RefreshLeaf     *bool    `yaml:"refresh_leaf"`
	ProcessType     *string  `yaml:"process_type"`
	GrowPolicy      *string  `yaml:"grow_policy"`
	MaxLeaves       *int     `yaml:"max_leaves"`
	MaxBin          *int     `yaml:"max_bin"`
	NumParallelTree *int     `yaml:"num_parallel_tree"`
}

type linearConfig struct {
	Lambda  *float32 `yaml:"lambda"`
	Alpha   *float32 `yaml:"alpha"`
	Updater *string  `yaml:"updater"`
}

type dartConfig struct {
	SampleType    *string  `yaml:"sample_type"`
	NormalizeType *string  `yaml:"normalize_type"`
	RateDrop      *float32 `yaml:"rate_drop"`
	OneDrop       *bool    `yaml:"one_drop"`
	SkipDrop      *float32 `yaml:"skip_drop"`
}

type learningConfig struct {
	Objective            *string  `yaml:"objective"`
	NumClass             *int     `yaml:"num_class"`
	TweedieVariancePower *float32 `yaml:"tweedie_variance_power"`
	BaseScore            *float32 `yaml:"base_score"`
	EvalMetric           []string `yaml:"eval_metric"`
	Seed                 *int64   `yaml:"seed"`
}

// LoadFile reads a YAML booster configuration from path.
func LoadFile(path string) (BoosterParameters, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BoosterParameters{}, errors.NewNotFoundError(path)
		}
		return BoosterParameters{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads one YAML document and validates it through the builders.
// Unknown keys are rejected.
func Decode(r io.Reader) (BoosterParameters, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg fileConfig
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return BoosterParameters{}, errors.Wrap(err, "decode booster configuration")
	}
	return cfg.build()
}

func (c *fileConfig) build() (BoosterParameters, error) {
	b := NewBoosterParametersBuilder()

	tree, err := c.Booster.Tree.build()
	if err != nil {
		return BoosterParameters{}, err
	}
	switch c.Booster.Type {
	case "", "tree", "gbtree":
		b.BoosterType(tree)
	case "linear", "gblinear":
		linear, err := c.Booster.Linear.build()
		if err != nil {
			return BoosterParameters{}, err
		}
		b.BoosterType(linear)
	case "dart":
		dart, err := c.Booster.Dart.build(tree)
		if err != nil {
			return BoosterParameters{}, err
		}
		b.BoosterType(dart)
	default:
		return BoosterParameters{}, newEnumError("booster.type", c.Booster.Type, []string{"tree", "linear", "dart"})
	}

	learning, err := c.Learning.build()
	if err != nil {
		return BoosterParameters{}, err
	}
	b.Learning(learning)
	if c.Verbosity != nil {
		b.Verbosity(Verbosity(*c.Verbosity))
	}
	if c.NThread != nil {
		b.NThread(*c.NThread)
	}
	return b.Build()
}

func (c *treeConfig) build() (TreeBoosterParameters, error) {
	b := NewTreeBoosterParametersBuilder()
	if c == nil {
		return b.Build()
	}
	setFloat(c.Eta, b.Eta)
	setFloat(c.Gamma, b.Gamma)
	setInt(c.MaxDepth, b.MaxDepth)
	setFloat(c.MinChildWeight, b.MinChildWeight)
	setFloat(c.MaxDeltaStep, b.MaxDeltaStep)
	setFloat(c.Subsample, b.Subsample)
	setFloat(c.ColsampleByTree, b.ColsampleByTree)
	setFloat(c.ColsampleByLvl, b.ColsampleByLevel)
	setFloat(c.ColsampleByNode, b.ColsampleByNode)
	setFloat(c.Lambda, b.Lambda)
	setFloat(c.Alpha, b.Alpha)
	if c.TreeMethod != nil {
		b.TreeMethod(TreeMethod(*c.TreeMethod))
	}
	setFloat(c.SketchEps, b.SketchEps)
	setFloat(c.ScalePosWeight, b.ScalePosWeight)
	if c.Updater != nil {
		updaters := make([]TreeUpdater, len(c.Updater))
		for i, u := range c.Updater {
			updaters[i] = TreeUpdater(u)
		}
		b.Updater(updaters...)
	}
	if c.RefreshLeaf != nil {
		b.RefreshLeaf(*c.RefreshLeaf)
	}
	if c.ProcessType != nil {
		b.ProcessType(ProcessType(*c.ProcessType))
	}
	if c.GrowPolicy != nil {
		b.GrowPolicy(GrowPolicy(*c.GrowPolicy))
	}
	setInt(c.MaxLeaves, b.MaxLeaves)
	setInt(c.MaxBin, b.MaxBin)
	setInt(c.NumParallelTree, b.NumParallelTree)
	return b.Build()
}

func (c *linearConfig) build() (LinearBoosterParameters, error) {
	b := NewLinearBoosterParametersBuilder()
	if c == nil {
		return b.Build()
	}
	setFloat(c.Lambda, b.Lambda)
	setFloat(c.Alpha, b.Alpha)
	if c.Updater != nil {
		b.Updater(LinearUpdater(*c.Updater))
	}
	return b.Build()
}

func (c *dartConfig) build(tree TreeBoosterParameters) (DartBoosterParameters, error) {
	b := NewDartBoosterParametersBuilder().Tree(tree)
	if c == nil {
		return b.Build()
	}
	if c.SampleType != nil {
		b.SampleType(SampleType(*c.SampleType))
	}
	if c.NormalizeType != nil {
		b.NormalizeType(NormalizeType(*c.NormalizeType))
	}
	setFloat(c.RateDrop, b.RateDrop)
	if c.OneDrop != nil {
		b.OneDrop(*c.OneDrop)
	}
	setFloat(c.SkipDrop, b.SkipDrop)
	return b.Build()
}

func (c *learningConfig) build() (LearningTaskParameters, error) {
	b := NewLearningTaskParametersBuilder()
	if c == nil {
		return b.Build()
	}
	if c.Objective != nil {
		var numClass int
		var power float32
		if c.NumClass != nil {
			numClass = *c.NumClass
		}
		if c.TweedieVariancePower != nil {
			power = *c.TweedieVariancePower
		}
		obj, err := ParseObjective(*c.Objective, numClass, power)
		if err != nil {
			return LearningTaskParameters{}, err
		}
		b.Objective(obj)
	}
	setFloat(c.BaseScore, b.BaseScore)
	if c.EvalMetric != nil {
		metrics := make([]EvalMetric, len(c.EvalMetric))
		for i, m := range c.EvalMetric {
			metrics[i] = EvalMetric(m)
		}
		b.EvalMetrics(metrics...)
	}
	if c.Seed != nil {
		b.Seed(*c.Seed)
	}
	return b.Build()
}

func setFloat[B any](v *float32, set func(float32) B) {
	if v != nil {
		set(*v)
	}
}

func setInt[B any](v *int, set func(int) B) {
	if v != nil {
		set(*v)
	}
}
