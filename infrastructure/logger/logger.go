package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with the structured-event conventions used across the
// desk: every event helper attaches an "event" name and an RFC3339Nano
// "ts" so log lines from different components line up in the same shape.
type Logger struct {
	*zap.Logger
	config Config
}

// Config controls verbosity, encoding and destinations.
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Format     string   `yaml:"format"`      // json or console
	Outputs    []string `yaml:"outputs"`     // any of "stdout", "file"
	OutputFile string   `yaml:"output_file"` // used when outputs includes "file"
	ErrorFile  string   `yaml:"error_file"`  // optional separate sink for error and above
}

// DefaultConfig logs info and above to stdout as console lines.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "console",
		Outputs: []string{"stdout"},
	}
}

// New builds a logger from cfg. All destinations are teed onto the same
// encoder so a line appears identically in every sink.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json", "":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var cores []zapcore.Core
	if len(cfg.Outputs) == 0 || contains(cfg.Outputs, "stdout") {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), level))
	}
	if cfg.ErrorFile != "" {
		f, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open error log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(f), zapcore.ErrorLevel))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &Logger{Logger: z, config: cfg}, nil
}

// WithFields returns a child logger carrying the given fields on every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(toZapFields(fields)...),
		config: l.config,
	}
}

// LogQuote records a quote lifecycle event (submitted, pulled, throttled)
// for one contract. Fields missing from the event schema annotate the
// entry rather than suppress it.
func (l *Logger) LogQuote(event, symbol string, fields map[string]interface{}) {
	zf := append(eventFields(event), zap.String("symbol", symbol))
	zf = append(zf, toZapFields(fields)...)
	if err := validateWith(event, fields, "symbol", symbol); err != nil {
		zf = append(zf, zap.String("_schema_error", err.Error()))
	}
	l.Info("quote", zf...)
}

// LogFill records an execution against one of our resting orders.
func (l *Logger) LogFill(symbol string, fields map[string]interface{}) {
	zf := append(eventFields("fill"), zap.String("symbol", symbol))
	zf = append(zf, toZapFields(fields)...)
	if err := validateWith("fill", fields, "symbol", symbol); err != nil {
		zf = append(zf, zap.String("_schema_error", err.Error()))
	}
	l.Info("fill", zf...)
}

// LogHedge records a delta hedge decision for an underlying.
func (l *Logger) LogHedge(event, underlying string, fields map[string]interface{}) {
	zf := append(eventFields(event), zap.String("underlying", underlying))
	zf = append(zf, toZapFields(fields)...)
	if err := validateWith(event, fields, "underlying", underlying); err != nil {
		zf = append(zf, zap.String("_schema_error", err.Error()))
	}
	l.Info("hedge", zf...)
}

// LogRisk records limit breaches, halts and resumes at warn level so they
// stand out from the quote stream.
func (l *Logger) LogRisk(event string, fields map[string]interface{}) {
	zf := append(eventFields(event), toZapFields(fields)...)
	if err := ValidateEvent(event, fields); err != nil {
		zf = append(zf, zap.String("_schema_error", err.Error()))
	}
	l.Warn("risk", zf...)
}

// LogError records an error with the operation it interrupted.
func (l *Logger) LogError(err error, op string, fields map[string]interface{}) {
	zf := append(eventFields(op), zap.Error(err))
	l.Error("error", append(zf, toZapFields(fields)...)...)
}

// Close flushes buffered entries.
func (l *Logger) Close() error {
	return l.Sync()
}

func eventFields(event string) []zap.Field {
	return []zap.Field{
		zap.String("event", event),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	}
}

// validateWith checks the schema with the helper-supplied identity key
// merged in, without mutating the caller's map.
func validateWith(event string, fields map[string]interface{}, key, value string) error {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[key] = value
	return ValidateEvent(event, merged)
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return zf
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
