// Package logging configures the process-wide logger. The graphics engine
// logs protocol warnings and eviction traces through it; by default
// everything goes to stderr so the embedding terminal can redirect it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/llehouerou/termgfx/internal/config"
)

// Init builds a logger from the log section of the configuration. A bad
// level falls back to the warning level, and a log directory that cannot be
// created falls back to stderr; neither makes Init fail.
func Init(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	output, outErr := buildOutput(cfg)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: cfg.File == ""})

	if outErr != nil {
		logger.WithField("file", cfg.File).Warn(outErr.Error())
	}
	return logger
}

// buildOutput creates the log writer; on failure it degrades to stderr and
// reports the error for the caller to log.
func buildOutput(cfg config.LogConfig) (io.Writer, error) {
	if cfg.File == "" {
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return os.Stderr, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
