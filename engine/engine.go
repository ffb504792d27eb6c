// Package engine defines the call surface of the native gradient boosting
// engine that the booster facade drives.
//
// The surface mirrors the XGBoost C API one call per method. Implementations
// must capture the engine's last-error text at the failing call site and
// return it as *errors.EngineError; callers never read a global error slot.
//
// Two implementations ship with the module: engine/capi binds libxgboost
// through cgo (build tag "capi"), and engine/enginetest is a deterministic
// in-memory engine used by the tests.
package engine

// BoosterHandle is an opaque reference to a native booster.
type BoosterHandle uintptr

// DatasetHandle is an opaque reference to a native data matrix.
type DatasetHandle uintptr

// Prediction option bits accepted by BoosterPredict.
const (
	OptionOutputMargin         = 0x01
	OptionPredictLeaf          = 0x02
	OptionPredictContributions = 0x04
	OptionApproxContributions  = 0x08
	OptionPredictInteractions  = 0x10
)

// Model serialization formats accepted by BoosterSaveModelToBuffer.
const (
	FormatUBJ  = "ubj"
	FormatJSON = "json"
)

// Dump formats accepted by BoosterDumpModelEx.
const (
	DumpFormatText = "text"
	DumpFormatJSON = "json"
)

// Engine is the booster side of the native call surface.
type Engine interface {
	BoosterCreate(cache []DatasetHandle) (BoosterHandle, error)
	BoosterFree(h BoosterHandle) error
	BoosterSetParam(h BoosterHandle, key, value string) error

	BoosterUpdateOneIter(h BoosterHandle, iter int, dtrain DatasetHandle) error
	BoosterBoostOneIter(h BoosterHandle, dtrain DatasetHandle, grad, hess []float32) error
	BoosterEvalOneIter(h BoosterHandle, iter int, dmats []DatasetHandle, names []string) (string, error)

	// BoosterPredict returns a flat buffer whose layout depends on optionMask.
	// A ntreeLimit of zero uses every tree.
	BoosterPredict(h BoosterHandle, d DatasetHandle, optionMask int, ntreeLimit uint, training bool) ([]float32, error)
	// BoosterPredictFromDMatrix takes a NUL terminated JSON configuration and
	// returns the buffer together with the engine-reported shape.
	BoosterPredictFromDMatrix(h BoosterHandle, d DatasetHandle, config string) ([]float32, []uint64, error)

	BoosterSaveModel(h BoosterHandle, path string) error
	BoosterLoadModel(h BoosterHandle, path string) error
	BoosterSaveModelToBuffer(h BoosterHandle, config string) ([]byte, error)
	BoosterLoadModelFromBuffer(h BoosterHandle, buf []byte) error

	// BoosterGetAttr reports whether key exists; absence is not an error.
	BoosterGetAttr(h BoosterHandle, key string) (string, bool, error)
	BoosterSetAttr(h BoosterHandle, key, value string) error
	BoosterGetAttrNames(h BoosterHandle) ([]string, error)

	BoosterGetStrFeatureInfo(h BoosterHandle, field string) ([]string, error)
	BoosterSetStrFeatureInfo(h BoosterHandle, field string, values []string) error

	// BoosterDumpModelEx dumps one string per tree. fmap may be empty.
	BoosterDumpModelEx(h BoosterHandle, fmap string, withStats bool, format string) ([]string, error)
}

// MatrixEngine is the dataset side of the native call surface.
type MatrixEngine interface {
	// DMatrixCreateFromMat copies a row-major dense matrix. Values equal to
	// missing are treated as absent.
	DMatrixCreateFromMat(data []float32, rows, cols int, missing float32) (DatasetHandle, error)
	DMatrixFree(d DatasetHandle) error
	DMatrixNumRow(d DatasetHandle) (int, error)
	DMatrixNumCol(d DatasetHandle) (int, error)
	DMatrixSetFloatInfo(d DatasetHandle, field string, values []float32) error
	DMatrixGetFloatInfo(d DatasetHandle, field string) ([]float32, error)
}

// Full is implemented by engines that provide both halves of the surface.
type Full interface {
	Engine
	MatrixEngine
}
