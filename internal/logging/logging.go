package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PayloadKey is the field name for raw backend bodies. Such fields are kept
// in the log file and stripped from terminal output.
const PayloadKey = "body"

// Options controls where diagnostics go.
type Options struct {
	// Verbose mirrors diagnostics to Stderr at debug level.
	Verbose bool
	// File receives all log output at debug level. Empty disables file
	// logging.
	File string
	// Stderr overrides os.Stderr for verbose output.
	Stderr io.Writer
}

// New builds the process logger. The file always records debug entries,
// payloads included; the terminal only sees them with Verbose, without
// payload fields.
func New(opts Options) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		sink, _, err := zap.Open(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), sink, zapcore.DebugLevel))
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.Verbose {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(stderr)), zapcore.DebugLevel)
		cores = append(cores, withoutPayload{core})
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(stderr)))), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// withoutPayload drops PayloadKey fields before they reach the wrapped core.
type withoutPayload struct {
	zapcore.Core
}

func (c withoutPayload) With(fields []zapcore.Field) zapcore.Core {
	return withoutPayload{c.Core.With(stripPayload(fields))}
}

func (c withoutPayload) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c withoutPayload) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, stripPayload(fields))
}

func stripPayload(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(fields))
	for _, f := range fields {
		if f.Key != PayloadKey {
			out = append(out, f)
		}
	}
	return out
}
