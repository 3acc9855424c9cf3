// Package logger wraps go.uber.org/zap for the collab backbone: a safe
// no-op default so nothing panics before Initialize runs, a JSON mode for
// production, and a plain console mode for local development.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide default, used only by components that don't
// have one injected (mainly cmd/collabd bootstrap code). Session, cluster,
// and instruction packages take a *zap.SugaredLogger by constructor
// injection instead of reading this global.
var Logger *zap.SugaredLogger

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize configures the global logger. jsonOutput selects structured
// JSON (for log aggregation) over human-readable console output.
func Initialize(jsonOutput bool) error {
	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = cfg.Build()
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		))
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// New builds a standalone logger at the given level, for components (tests,
// one-off CLI subcommands) that don't want the process-wide global.
func New(level zapcore.Level, jsonOutput bool) *zap.SugaredLogger {
	var core zapcore.Core
	if jsonOutput {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(os.Stdout), level)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stdout), level)
	}
	return zap.New(core).Sugar()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output but need a non-nil *zap.SugaredLogger.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
