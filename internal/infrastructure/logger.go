package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emsinv/internal/config"
)

var (
	loggerMu   sync.Mutex
	procLogger *slog.Logger
	logFile    *os.File
)

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Only the first call configures anything; later calls return
// the logger already in place.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if procLogger != nil {
		return procLogger, nil
	}

	w, file, err := logSink(cfg)
	if err != nil {
		return nil, err
	}
	logFile = file
	procLogger = NewLogger(w, cfg.Level)
	slog.SetDefault(procLogger)
	return procLogger, nil
}

// GetLogger returns the process logger, or slog.Default before
// InitializeLogger has run
func GetLogger() *slog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if procLogger == nil {
		return slog.Default()
	}
	return procLogger
}

// NewLogger returns a JSON logger on w whose records pick up trace_id,
// run_id and step from the context they are logged with
func NewLogger(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLogLevel(level)})
	return slog.New(contextHandler{h})
}

// CloseLogFile closes the log file opened by InitializeLogger, if any
func CloseLogFile() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting drops the process logger so the next
// InitializeLogger call configures a new one
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	loggerMu.Lock()
	procLogger = nil
	loggerMu.Unlock()
}

// logSink resolves the configured output. The returned file, when non-nil,
// must be closed on shutdown.
func logSink(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}
	if output == "file" {
		return f, f, nil
	}
	return io.MultiWriter(os.Stdout, f), f, nil
}

// contextHandler copies request and pipeline identifiers from the context
// onto each record
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, kv := range [...]struct {
		key string
		val string
	}{
		{"trace_id", GetTraceID(ctx)},
		{"run_id", RunID(ctx)},
		{"step", StepID(ctx)},
	} {
		if kv.val != "" {
			r.AddAttrs(slog.String(kv.key, kv.val))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
