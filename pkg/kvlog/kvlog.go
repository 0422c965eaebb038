// Package kvlog builds the structured logger the kvs-server binary
// creates and hands to the engine and server packages. It mirrors the teacher's pattern of
// threading a *zap.SugaredLogger through each subsystem's Config struct,
// and plays the same role the original project's env_logger setup did:
// one call at process start, one logger handle passed everywhere else.
package kvlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-tuned logger tagged with the given service name.
// Pass debug=true (e.g. from a --debug CLI flag) for human-readable,
// debug-level console output during local development.
func New(service string, debug bool) *zap.SugaredLogger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		// Logger construction only fails on a malformed config; zap's own
		// defaults are never malformed, so fall back rather than panic.
		logger = zap.NewNop()
	}

	return logger.Sugar().Named(service)
}
