// Package telemetry builds the structured logger shared by kiln's internal
// components (registry, planner, reliability wrapper, run store). Human
// facing chat output goes through internal/ui instead - the two audiences
// are kept separate, the way the teacher keeps its API interaction log
// (internal/llm/logger.go) apart from its terminal UI.
package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap.Logger writing leveled JSON lines to
// dataDir/kiln.log, plus warnings and above to stderr. debug enables
// verbose (debug-level) logging on both sinks.
func NewLogger(logFilePath string, debug bool) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	fileEncoder := zapcore.NewJSONEncoder(encoderCfg)

	var cores []zapcore.Core

	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level))
	}

	stderrLevel := zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		stderrLevel = level
	}
	cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(os.Stderr), stderrLevel))

	return zap.New(zapcore.NewTee(cores...)), nil
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want kiln writing files on their behalf.
func Nop() *zap.Logger {
	return zap.NewNop()
}
