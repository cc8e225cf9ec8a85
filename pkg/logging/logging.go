// Package logging builds the zap logger mcpmuxd's components are
// constructed with. The teacher's own pkg/log is a bare fmt wrapper with
// no ecosystem dependency; this repo adopts zap, the structured logger
// carried by the stacklok-toolhive example in the retrieval pack.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.SugaredLogger that writes JSON lines to logFile (if
// non-empty) and, when verbose is set, human-readable console output to
// stderr as well.
func New(logFile string, verbose bool) (*zap.SugaredLogger, func(), error) {
	var cores []zapcore.Core

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), level))
	}

	if verbose || logFile == "" {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), level))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core)
	sugar := logger.Sugar()

	return sugar, func() { _ = logger.Sync() }, nil
}

// Nop returns a logger that discards everything, used by tests that don't
// care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
