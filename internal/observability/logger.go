// Package observability — logger.go
//
// NewLogger builds the process logger from an explicit zapcore stack
// rather than a zap.Config preset: every log line must land on stderr
// (stdout stays clean for -version output and whatever a supervisor
// captures separately), and the two formats differ only in encoder.
// Level names follow a fern-style verbosity table: -v count 0/1 -> info,
// 2+ -> debug (zap has no trace level to map 3+ onto).
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger constructs a stderr zap.Logger at the named level. format is
// "console" (human-readable, for interactive runs) or "json" (the
// default, one object per line for log shippers).
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var enc zapcore.Encoder
	if format == "console" {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

// VerbosityLevel maps a CLI -v repeat count to a zap level name, matching
// the original Rust agent's clap-counted verbosity flag: 0 or 1 -> info,
// 2 -> debug, 3 or more -> debug (zap has no separate trace level).
func VerbosityLevel(count int) string {
	switch {
	case count <= 1:
		return "info"
	default:
		return "debug"
	}
}
