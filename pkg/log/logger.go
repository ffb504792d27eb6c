package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	xgberrors "github.com/YuminosukeSato/xgboost/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = StacktraceKey
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewZerologLogger creates a JSON logger writing to w that drops records
// below level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &ZerologLogger{zl: zl, level: level}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	z.emit(z.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	ev := z.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = withError(ev, err)
			fields = fields[1:]
		}
	}
	z.emit(ev, msg, fields)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{
		zl:    z.zl.With().Fields(normalizeFields(fields)).Logger(),
		level: z.level,
	}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= z.level
}

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

// warn logs a library warning, embedding its structured form when the
// warning implements zerolog.LogObjectMarshaler.
func (z *ZerologLogger) warn(w error) {
	ev := z.zl.Warn()
	if ev == nil {
		return
	}
	var obj zerolog.LogObjectMarshaler
	if errors.As(w, &obj) {
		ev = ev.EmbedObject(obj)
	}
	ev.Msg(w.Error())
}

// normalizeFields converts error values to strings so they serialize as
// messages rather than empty JSON objects.
func normalizeFields(fields []any) []any {
	out := make([]any, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		value := fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, key, value)
	}
	return out
}

func withError(ev *zerolog.Event, err error) *zerolog.Event {
	if ev == nil {
		return nil
	}
	ev = ev.Str(ErrAttrKey, err.Error())
	var obj zerolog.LogObjectMarshaler
	if errors.As(err, &obj) {
		ev = ev.EmbedObject(obj)
	}
	var eerr *xgberrors.EngineError
	if errors.As(err, &eerr) {
		ev = ev.Str(EngineCallKey, eerr.Op)
	}
	if st := extractStacktrace(err); st != "" {
		ev = ev.Str(StacktraceAttrKey, st)
	}
	return ev
}

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured by WithStack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ToLogLevel parses "debug", "info", "warn" or "error".
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, xgberrors.NewValidationError("log_level", "must be one of debug, info, warn, error", level)
	}
}

// ===========================================================================
// default provider
// ===========================================================================

type zerologProvider struct {
	mu     sync.RWMutex
	w      io.Writer
	logger Logger
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = NewZerologLogger(p.w, level)
}

var defaultProvider = &zerologProvider{
	w:      os.Stderr,
	logger: NewZerologLogger(os.Stderr, LevelInfo),
}

func init() {
	xgberrors.SetZerologWarnFunc(func(w error) {
		l := defaultProvider.GetLogger()
		if z, ok := l.(*ZerologLogger); ok {
			z.warn(w)
			return
		}
		l.Warn(w.Error())
	})
}

// Provider returns the process-wide logger provider.
func Provider() LoggerProvider {
	return defaultProvider
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	return defaultProvider.GetLogger()
}

// GetLoggerWithName returns the default logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return defaultProvider.GetLoggerWithName(name)
}

// SetupLogger replaces the default logger with a zerolog logger writing to w
// at the given level ("debug", "info", "warn", "error").
func SetupLogger(loglevel string, w io.Writer) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}
	defaultProvider.mu.Lock()
	defer defaultProvider.mu.Unlock()
	defaultProvider.w = w
	defaultProvider.logger = NewZerologLogger(w, level)
	return nil
}

// SetLogger replaces the default logger. A nil logger restores the zerolog
// logger on stderr at info level.
func SetLogger(l Logger) {
	defaultProvider.mu.Lock()
	defer defaultProvider.mu.Unlock()
	if l == nil {
		defaultProvider.w = os.Stderr
		l = NewZerologLogger(os.Stderr, LevelInfo)
	}
	defaultProvider.logger = l
}
