package logger

import (
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Format    string
	Level     zapcore.Level
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "console",
		Level:  zapcore.InfoLevel,
	}
}
