package log

// Standard attribute keys. Use these instead of ad-hoc strings so that log
// entries from estimators, the AutoML runner and the HTTP server can be
// queried the same way.

// モデル関連
const (
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
	ComponentKey = "ml.component"
	PhaseKey     = "ml.phase"
)

// データ関連
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnsKey  = "data.columns"
	FilenameKey = "data.filename"
	FormatKey   = "data.format"
)

// 性能・メトリクス
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	MSEKey        = "metrics.mse"
	R2ScoreKey    = "metrics.r2_score"
	ScoreKey      = "metrics.score"
	IterationKey  = "training.iteration"
)

// AutoML
const (
	RunIDKey         = "automl.run_id"
	TargetKey        = "automl.target"
	ProblemTypeKey   = "automl.problem_type"
	BestModelKey     = "automl.best_model"
	CandidateCount   = "automl.candidates"
	UniqueValuesKey  = "automl.unique_values"
	TestSizeKey      = "automl.test_size"
	RandomSeedKey    = "config.random_seed"
	HyperParamsKey   = "model.hyperparams"
	ConfigFileKey    = "config.file"
	HTTPMethodKey    = "http.method"
	HTTPPathKey      = "http.path"
	HTTPStatusKey    = "http.status"
	HTTPRemoteKey    = "http.remote_addr"
	ServerAddressKey = "server.addr"
)

// エラー関連
const (
	ErrorKey        = "error"
	ErrorCodeKey    = "error.code"
	StacktraceKey   = "error.stacktrace"
	ErrorDetailsKey = "error.details"
)

// 値の定数
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationLoad      = "load"
	OperationEvaluate  = "evaluate"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
