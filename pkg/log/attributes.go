// Package log defines standard attribute keys for booster operations.
//
// Keys follow a hierarchical naming convention ("booster.id", "data.rows")
// so log output can be filtered by concern.

package log

// Booster and operation context.
const (
	// ComponentKey identifies the package emitting the record.
	// Examples: "xgboost.booster", "xgboost.train", "xgboost.dmatrix"
	ComponentKey = "component"

	// BoosterIDKey identifies one booster instance within a process.
	BoosterIDKey = "booster.id"

	// OperationKey names the facade operation being performed.
	// Standard values are the Operation* constants below.
	OperationKey = "xgb.operation"

	// EngineCallKey names the engine call that failed or is being issued.
	// Examples: "XGBoosterUpdateOneIter", "XGBoosterPredict"
	EngineCallKey = "xgb.engine_call"
)

// Parameters and configuration.
const (
	// ParamKeyKey and ParamValueKey describe one parameter applied to the engine.
	ParamKeyKey   = "param.key"
	ParamValueKey = "param.value"

	// ParamCountKey records how many parameter pairs were applied.
	ParamCountKey = "param.count"

	// PathKey records a file path used for save, load or feature maps.
	PathKey = "io.path"

	// FormatKey records a serialization format ("ubj", "json", "text").
	FormatKey = "io.format"

	// BytesKey records the size of a serialized buffer.
	BytesKey = "io.bytes"
)

// Data shape.
const (
	// RowsKey indicates the number of rows in a dataset.
	RowsKey = "data.rows"

	// ColsKey indicates the number of columns in a dataset.
	ColsKey = "data.cols"

	// DatasetKey names a dataset in an evaluation list.
	DatasetKey = "data.name"

	// CachedKey records how many datasets were cached on a booster.
	CachedKey = "data.cached"

	// ShapeKey records the shape of a prediction output.
	ShapeKey = "preds.shape"
)

// Training progress.
const (
	// IterationKey records the current boosting round.
	IterationKey = "training.iteration"

	// RoundsKey records the requested number of boosting rounds.
	RoundsKey = "training.rounds"

	// EvalKey records a formatted evaluation line.
	EvalKey = "training.eval"

	// BestIterationKey and BestScoreKey record early-stopping results.
	BestIterationKey = "training.best_iteration"
	BestScoreKey     = "training.best_score"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard operation values.
const (
	OperationCreate   = "create"
	OperationSetParam = "set_param"
	OperationUpdate   = "update"
	OperationBoost    = "boost"
	OperationEval     = "eval"
	OperationPredict  = "predict"
	OperationSave     = "save"
	OperationLoad     = "load"
	OperationDump     = "dump"
	OperationFree     = "free"
	OperationTrain    = "train"
)
