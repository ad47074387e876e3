package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"firmware-risk-scanner/config"
)

var debugEnabled atomic.Bool

// Init sets up the global logger according to configuration.
// Level is "info" or "debug"; debug also emits Debugf lines.
// Output selects the console writer ("stdout", "stderr", "file" or "none");
// a log file is added when File is set or Output is "file".
// Multiple outputs are combined via io.MultiWriter.
func Init(cfg config.LoggingConfig) (io.Closer, error) {
	switch strings.ToLower(cfg.Level) {
	case "", "info":
		debugEnabled.Store(false)
	case "debug":
		debugEnabled.Store(true)
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	var writers []io.Writer

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		writers = append(writers, os.Stdout)
	case "stderr":
		writers = append(writers, os.Stderr)
	case "file", "none":
		// no console writer
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	logFilePath := cfg.File
	if logFilePath == "" && strings.EqualFold(cfg.Output, "file") {
		// default path under ./logs/scanner-YYYYMMDD.log
		logFilePath = filepath.Join("logs", fmt.Sprintf("scanner-%s.log", time.Now().Format("20060102")))
	}

	var file *os.File
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, file)
	}

	if len(writers) == 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(io.MultiWriter(writers...))
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if file == nil {
		return nopCloser{}, nil
	}
	return file, nil
}

// Debugf logs through the standard logger only when the level is debug
func Debugf(format string, args ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
