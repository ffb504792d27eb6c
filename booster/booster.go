// Package booster is the lifecycle facade over a native gradient boosting
// engine. A Booster owns one engine handle: it applies parameters, runs
// boosting rounds, predicts in every output layout, evaluates, persists and
// exposes model attributes and feature metadata.
//
// Basic usage:
//
//	params, _ := parameters.NewBoosterParametersBuilder().Build()
//	bst, err := booster.NewWithCachedDatasets(eng, params, dtrain)
//	if err != nil {
//	    return err
//	}
//	defer bst.Close()
//	for i := 0; i < 10; i++ {
//	    if err := bst.Update(dtrain, i); err != nil {
//	        return err
//	    }
//	}
//	preds, err := bst.Predict(dtest)
//
// A Booster is not safe for concurrent use; wrap it in Locked to share one
// between goroutines. Datasets may be shared read-only.
package booster

import (
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/YuminosukeSato/xgboost/engine"
	"github.com/YuminosukeSato/xgboost/parameters"
	"github.com/YuminosukeSato/xgboost/pkg/errors"
	"github.com/YuminosukeSato/xgboost/pkg/log"
)

// Dataset is the read-only view of a data matrix the booster needs.
// *dmatrix.DMatrix implements it.
type Dataset interface {
	Handle() engine.DatasetHandle
	NumRows() int
	NumCols() int
}

// LabeledDataset is a Dataset whose labels can be read back.
type LabeledDataset interface {
	Dataset
	Labels() ([]float32, error)
}

// Objective computes first and second order gradients from the current
// predictions of dtrain.
type Objective func(preds []float32, dtrain Dataset) (grad, hess []float32, err error)

const (
	featureNameField = "feature_name"
	featureTypeField = "feature_type"
)

var boosterSeq atomic.Uint64

// Booster wraps a single engine handle. The handle is released by Close, or
// by a finalizer if Close was never called.
type Booster struct {
	eng    engine.Engine
	handle engine.BoosterHandle
	logger log.Logger
	rounds int

	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a booster without cached datasets and applies params.
func New(eng engine.Engine, params parameters.BoosterParameters) (*Booster, error) {
	return NewWithCachedDatasets(eng, params)
}

// NewWithCachedDatasets creates a booster that caches the given datasets on
// the engine side, then applies every pair of params in order. The handle is
// freed when any parameter is rejected.
func NewWithCachedDatasets(eng engine.Engine, params parameters.BoosterParameters, datasets ...Dataset) (*Booster, error) {
	if eng == nil {
		return nil, errors.NewValidationError("engine", "must not be nil", nil)
	}
	cache := make([]engine.DatasetHandle, len(datasets))
	for i, d := range datasets {
		if d == nil {
			return nil, errors.NewValidationError("datasets", "must not contain nil", i)
		}
		cache[i] = d.Handle()
	}

	h, err := eng.BoosterCreate(cache)
	runtime.KeepAlive(datasets)
	if err != nil {
		return nil, errors.Wrap(err, "create booster")
	}
	b := wrap(eng, h)
	if err := b.SetParams(params); err != nil {
		_ = b.Close()
		return nil, err
	}
	b.logger.Debug("Created booster", log.OperationKey, log.OperationCreate, log.CachedKey, len(datasets))
	return b, nil
}

func wrap(eng engine.Engine, h engine.BoosterHandle) *Booster {
	id := boosterSeq.Add(1)
	b := &Booster{
		eng:    eng,
		handle: h,
		logger: log.GetLoggerWithName("xgboost.booster").With(log.BoosterIDKey, "bst-"+strconv.FormatUint(id, 10)),
	}
	runtime.SetFinalizer(b, finalize)
	return b
}

func finalize(b *Booster) {
	errors.Warn(errors.NewResourceLeakWarning("booster"))
	_ = b.Close()
}

// Close frees the engine handle. Calls after the first return the first
// result; any other method returns errors.ErrClosed.
func (b *Booster) Close() error {
	b.closeOnce.Do(func() {
		runtime.SetFinalizer(b, nil)
		b.closed = true
		b.closeErr = b.eng.BoosterFree(b.handle)
		if b.closeErr != nil {
			b.logger.Error("Failed to free booster", b.closeErr, log.OperationKey, log.OperationFree)
		}
	})
	return b.closeErr
}

func (b *Booster) live() error {
	if b.closed {
		return errors.WithStack(errors.ErrClosed)
	}
	return nil
}

func checkDataset(name string, d Dataset) error {
	if d == nil {
		return errors.NewValidationError(name, "dataset must not be nil", nil)
	}
	return nil
}

// SetParams applies every pair of params in order. Applying the same
// parameters again leaves the configuration unchanged.
func (b *Booster) SetParams(params parameters.BoosterParameters) error {
	pairs := params.AsStringPairs()
	for _, p := range pairs {
		if err := b.SetParam(p.Key, p.Value); err != nil {
			return err
		}
	}
	b.logger.Debug("Applied parameters", log.ParamCountKey, len(pairs))
	return nil
}

// SetParam applies a single engine parameter.
func (b *Booster) SetParam(key, value string) error {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return err
	}
	if err := b.eng.BoosterSetParam(b.handle, key, value); err != nil {
		return errors.Wrapf(err, "set parameter %s", key)
	}
	b.logger.Debug("Set parameter", log.OperationKey, log.OperationSetParam, log.ParamKeyKey, key, log.ParamValueKey, value)
	return nil
}

// Update runs one boosting round with the configured objective.
func (b *Booster) Update(dtrain Dataset, iteration int) error {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(dtrain)
	if err := b.live(); err != nil {
		return err
	}
	if err := checkDataset("dtrain", dtrain); err != nil {
		return err
	}
	if err := b.eng.BoosterUpdateOneIter(b.handle, iteration, dtrain.Handle()); err != nil {
		return errors.Wrapf(err, "update iteration %d", iteration)
	}
	b.rounds++
	b.logger.Debug("Boosted round", log.OperationKey, log.OperationUpdate, log.IterationKey, iteration)
	return nil
}

// Boost runs one boosting round from caller supplied gradients. grad and
// hess must have the same non-zero length; nothing reaches the engine
// otherwise.
func (b *Booster) Boost(dtrain Dataset, grad, hess []float32) error {
	defer runtime.KeepAlive(b)
	defer runtime.KeepAlive(dtrain)
	if err := b.live(); err != nil {
		return err
	}
	if err := checkDataset("dtrain", dtrain); err != nil {
		return err
	}
	if len(grad) != len(hess) {
		return errors.NewValidationError("hessian", "length must equal gradient length "+strconv.Itoa(len(grad)), len(hess))
	}
	if len(grad) == 0 {
		return errors.NewValidationError("gradient", "must not be empty", 0)
	}
	if err := b.eng.BoosterBoostOneIter(b.handle, dtrain.Handle(), grad, hess); err != nil {
		return errors.Wrap(err, "boost")
	}
	b.rounds++
	b.logger.Debug("Boosted round", log.OperationKey, log.OperationBoost, log.IterationKey, b.rounds-1)
	return nil
}

// UpdateCustom predicts dtrain, asks obj for gradients and boosts one round
// with them. A panic inside obj is returned as *errors.PanicError and NaN or
// Inf gradients as *errors.NumericalInstabilityError.
func (b *Booster) UpdateCustom(dtrain Dataset, obj Objective) error {
	if obj == nil {
		return errors.NewValidationError("objective", "must not be nil", nil)
	}
	preds, err := b.Predict(dtrain)
	if err != nil {
		return err
	}
	var grad, hess []float32
	err = errors.SafeExecute("custom objective", func() error {
		var err error
		grad, hess, err = obj(preds.Values, dtrain)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "custom objective")
	}
	if err := errors.CheckFinite32("custom_objective.gradient", grad, b.rounds); err != nil {
		return err
	}
	if err := errors.CheckFinite32("custom_objective.hessian", hess, b.rounds); err != nil {
		return err
	}
	return b.Boost(dtrain, grad, hess)
}

// NumBoostedRounds counts the rounds committed through this Booster value
// with Update, Boost or UpdateCustom. Rounds contained in a loaded model are
// not included.
func (b *Booster) NumBoostedRounds() int { return b.rounds }

// GetAttribute returns the attribute value and whether it exists.
func (b *Booster) GetAttribute(key string) (string, bool, error) {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return "", false, err
	}
	v, ok, err := b.eng.BoosterGetAttr(b.handle, key)
	if err != nil {
		return "", false, errors.Wrapf(err, "get attribute %s", key)
	}
	return v, ok, nil
}

// SetAttribute creates or overwrites an attribute.
func (b *Booster) SetAttribute(key, value string) error {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return err
	}
	if err := b.eng.BoosterSetAttr(b.handle, key, value); err != nil {
		return errors.Wrapf(err, "set attribute %s", key)
	}
	return nil
}

// GetAttributeNames lists attribute keys in no particular order.
func (b *Booster) GetAttributeNames() ([]string, error) {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return nil, err
	}
	names, err := b.eng.BoosterGetAttrNames(b.handle)
	if err != nil {
		return nil, errors.Wrap(err, "get attribute names")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// GetFeatureInfo reads a string feature field. An unset field yields an
// empty slice.
func (b *Booster) GetFeatureInfo(field string) ([]string, error) {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return nil, err
	}
	values, err := b.eng.BoosterGetStrFeatureInfo(b.handle, field)
	if err != nil {
		return nil, errors.Wrapf(err, "get feature info %s", field)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// SetFeatureInfo writes a string feature field.
func (b *Booster) SetFeatureInfo(field string, values []string) error {
	defer runtime.KeepAlive(b)
	if err := b.live(); err != nil {
		return err
	}
	if err := b.eng.BoosterSetStrFeatureInfo(b.handle, field, values); err != nil {
		return errors.Wrapf(err, "set feature info %s", field)
	}
	return nil
}

// GetFeatureNames reads the "feature_name" field.
func (b *Booster) GetFeatureNames() ([]string, error) { return b.GetFeatureInfo(featureNameField) }

// SetFeatureNames writes one name per feature. An empty slice clears them.
func (b *Booster) SetFeatureNames(names []string) error {
	return b.SetFeatureInfo(featureNameField, names)
}

// GetFeatureTypes reads the "feature_type" field.
func (b *Booster) GetFeatureTypes() ([]string, error) { return b.GetFeatureInfo(featureTypeField) }

// SetFeatureTypes writes one type code ("q", "i" or "int") per feature.
func (b *Booster) SetFeatureTypes(types []string) error {
	return b.SetFeatureInfo(featureTypeField, types)
}

// Locked serializes access to one Booster.
type Locked struct {
	mu sync.Mutex
	b  *Booster
}

// NewLocked wraps b. The caller must not use b directly afterwards.
func NewLocked(b *Booster) *Locked {
	return &Locked{b: b}
}

// Do runs fn while holding the lock.
func (l *Locked) Do(fn func(b *Booster) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.b)
}

// Close closes the wrapped booster.
func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Close()
}
