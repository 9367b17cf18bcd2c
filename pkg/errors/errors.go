// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
// AutoMLのリクエスト処理で発生するエラーは Kind* 定数のいずれかに分類されます。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("mlwiz-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// これにより、ConvergenceWarningなどのカスタム警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	scikit-learn互換の警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or scaling the data.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、分散がゼロの列どうしの相関係数など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型（モデル）
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("mlwiz: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mlwiz: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mlwiz: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("mlwiz: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mlwiz: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("mlwiz: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	AutoMLリクエストのエラー型
//
// ===========================================================================

// エラー種別。HTTPレスポンスやログの error.code に使われる。
const (
	KindUnsupportedFormat   = "UnsupportedFormat"
	KindMissingTargetColumn = "MissingTargetColumn"
	KindModelFitFailure     = "ModelFitFailure"
	KindEmptyDataset        = "EmptyDataset"
	KindValidation          = "Validation"
	KindInternal            = "Internal"
)

// SupportedFormats はローダーが受け付ける拡張子の一覧です。
var SupportedFormats = []string{"csv", "tsv", "xls", "xlsx"}

// UnsupportedFormatError はアップロードされたファイルの拡張子が認識できない場合のエラーです。
type UnsupportedFormatError struct {
	Filename  string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("mlwiz: unsupported file format %q for %q (supported: %s)",
		e.Extension, e.Filename, strings.Join(SupportedFormats, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("filename", e.Filename).
		Str("extension", e.Extension).
		Str("type", "UnsupportedFormatError")
}

// NewUnsupportedFormatError は新しいUnsupportedFormatErrorを作成し、スタックトレースを付与します。
func NewUnsupportedFormatError(filename, extension string) error {
	return errors.WithStack(&UnsupportedFormatError{Filename: filename, Extension: extension})
}

// MissingTargetColumnError は指定された列がデータセットに存在しない場合のエラーです。
type MissingTargetColumnError struct {
	Column    string
	Available []string
}

func (e *MissingTargetColumnError) Error() string {
	return fmt.Sprintf("mlwiz: column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *MissingTargetColumnError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Strs("available", e.Available).
		Str("type", "MissingTargetColumnError")
}

// NewMissingTargetColumnError は新しいMissingTargetColumnErrorを作成し、スタックトレースを付与します。
func NewMissingTargetColumnError(column string, available []string) error {
	return errors.WithStack(&MissingTargetColumnError{Column: column, Available: available})
}

// ModelFitError は候補モデルの学習・予測・評価のいずれかが失敗したことを表します。
// Phase は "fit", "predict", "score" のいずれか。
type ModelFitError struct {
	Model string
	Phase string
	Err   error
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("mlwiz: %s: %s failed: %v", e.Model, e.Phase, e.Err)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ModelFitError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Model).
		Str("phase", e.Phase).
		Str("cause", fmt.Sprint(e.Err)).
		Str("type", "ModelFitError")
}

// NewModelFitError は新しいModelFitErrorを作成し、スタックトレースを付与します。
func NewModelFitError(modelName, phase string, err error) error {
	return errors.WithStack(&ModelFitError{Model: modelName, Phase: phase, Err: err})
}

// NonNumericFeatureError は数値入力を要求するモデルに文字列の特徴量列が渡された場合のエラーです。
type NonNumericFeatureError struct {
	Column string
}

func (e *NonNumericFeatureError) Error() string {
	return fmt.Sprintf("mlwiz: feature column %q is not numeric", e.Column)
}

// NewNonNumericFeatureError は新しいNonNumericFeatureErrorを作成し、スタックトレースを付与します。
func NewNonNumericFeatureError(column string) error {
	return errors.WithStack(&NonNumericFeatureError{Column: column})
}

// KindOf はエラーを Kind* 定数のいずれかに分類します。nil の場合は空文字列を返します。
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	var (
		formatErr  *UnsupportedFormatError
		columnErr  *MissingTargetColumnError
		fitErr     *ModelFitError
		validErr   *ValidationError
		dimErr     *DimensionError
		featureErr *NonNumericFeatureError
	)

	switch {
	case errors.As(err, &formatErr):
		return KindUnsupportedFormat
	case errors.As(err, &columnErr):
		return KindMissingTargetColumn
	case errors.As(err, &fitErr), errors.As(err, &featureErr):
		return KindModelFitFailure
	case errors.Is(err, ErrEmptyDataset):
		return KindEmptyDataset
	case errors.As(err, &validErr), errors.As(err, &dimErr):
		return KindValidation
	default:
		return KindInternal
	}
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータがモデルに渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrEmptyDataset は前処理後にデータセットの行数がゼロになった場合のエラーです。
	ErrEmptyDataset = New("empty dataset")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
