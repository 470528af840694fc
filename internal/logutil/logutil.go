// Package logutil installs the process-wide zap logger.
package logutil

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv selects the log level: debug, info, warn or error.
const LevelEnv = "CTDBOOT_LOG_LEVEL"

// Level returns the level named by LevelEnv, defaulting to info.
func Level() zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(os.Getenv(LevelEnv))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// InitLogger initialize the global logger
func InitLogger() {
	config := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(config)
	logger := zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), Level()))
	zap.ReplaceGlobals(logger)
}
