// Package logging constructs the process-wide logrus.Logger. The logger
// itself has no cross-request state beyond its writers and level, so a
// single instance built at startup and passed by reference into every
// component (exactly as go1090's Application does) is the whole contract.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how the logger writes.
type Config struct {
	// LogDir, if non-empty, enables file output rotated by lumberjack
	// alongside stdout. Empty means stdout only.
	LogDir string

	// MaxSizeMB is the size in megabytes at which a log file is rotated.
	MaxSizeMB int

	// MaxAgeDays is how long rotated files are retained.
	MaxAgeDays int

	// MaxBackups is how many rotated files are kept.
	MaxBackups int

	// Verbose sets the logger to debug level; otherwise info.
	Verbose bool
}

// New builds a *logrus.Logger per cfg. Output always includes stdout;
// when cfg.LogDir is set, a lumberjack-rotated file is added via
// io.MultiWriter so operators don't have to choose between console
// visibility and durable rotation.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogDir == "" {
		log.SetOutput(os.Stdout)
		return log, nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir %s: %w", cfg.LogDir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogDir + "/trackmand.log",
		MaxSize:    defaultInt(cfg.MaxSizeMB, 100),
		MaxAge:     defaultInt(cfg.MaxAgeDays, 14),
		MaxBackups: defaultInt(cfg.MaxBackups, 5),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))

	return log, nil
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
