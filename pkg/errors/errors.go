// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// ネイティブエンジン呼び出しの失敗、入力検証の失敗、パース失敗を区別できる構造化エラーを定義します。
package errors

import (
	"fmt"
	"log"
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
		log.Printf("xgboost-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
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
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
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
//	警告型
//
// ===========================================================================

// ResourceLeakWarning はCloseされずにGCで回収されたネイティブハンドルを報告する警告です。
type ResourceLeakWarning struct {
	Resource string
}

func (w *ResourceLeakWarning) Error() string {
	return fmt.Sprintf("%s was garbage collected without Close(); native handle released by finalizer", w.Resource)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ResourceLeakWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("resource", w.Resource).
		Str("type", "ResourceLeakWarning")
}

// NewResourceLeakWarning は新しいResourceLeakWarningを作成します。
func NewResourceLeakWarning(resource string) *ResourceLeakWarning {
	return &ResourceLeakWarning{Resource: resource}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ValidationError は呼び出し側が渡した設定や引数が事前条件を満たさない場合のエラーです。
// ネイティブ呼び出しの前に必ず検出され、部分的な状態を残しません。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("xgboost: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
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

// EngineError はネイティブエンジンの呼び出しが失敗を返した場合のエラーです。
// Message にはエンジンが失敗直後に報告した最新の診断メッセージが入ります。
type EngineError struct {
	Op      string
	Message string
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("xgboost: %s failed", e.Op)
	}
	return fmt.Sprintf("xgboost: %s failed: %s", e.Op, e.Message)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EngineError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("engine_message", e.Message).
		Str("type", "EngineError")
}

// NewEngineError は新しいEngineErrorを作成し、スタックトレースを付与します。
func NewEngineError(op, message string) error {
	err := &EngineError{Op: op, Message: message}
	return errors.WithStack(err)
}

// NotFoundError はロード対象のパスが存在しない場合のエラーです。
// ネイティブ層の分かりにくいメッセージを避けるため、エンジンに触れる前に検出します。
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("xgboost: file not found: %s", e.Path)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("type", "NotFoundError")
}

// NewNotFoundError は新しいNotFoundErrorを作成し、スタックトレースを付与します。
func NewNotFoundError(path string) error {
	err := &NotFoundError{Path: path}
	return errors.WithStack(err)
}

// ParseError は評価文字列や特徴量マップのパースで想定外の構造に遭遇した場合のエラーです。
// Input には診断用に元の入力がそのまま入ります。Line は1始まりの行番号で、行の概念がない場合は0です。
type ParseError struct {
	Input  string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("xgboost: parse error on line %d: %s (input: %q)", e.Line, e.Reason, e.Input)
	}
	return fmt.Sprintf("xgboost: parse error: %s (input: %q)", e.Reason, e.Input)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ParseError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("input", e.Input).
		Int("line", e.Line).
		Str("reason", e.Reason).
		Str("type", "ParseError")
}

// NewParseError は新しいParseErrorを作成し、スタックトレースを付与します。
func NewParseError(input string, line int, reason string) error {
	err := &ParseError{Input: input, Line: line, Reason: reason}
	return errors.WithStack(err)
}

// DimensionError は入力データの長さが期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("xgboost: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
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
	// ErrClosed は解放済みのBoosterやDMatrixに対して操作を行った場合のエラーです。
	ErrClosed = New("use of closed handle")

	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
