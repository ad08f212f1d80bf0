package mealvoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AnalysisLogger records one entry per processed transcript.
type AnalysisLogger interface {
	LogAnalysis(entry AnalysisLog) error
}

// NewAnalysisLogFilePath returns a file path keyed by time and model so runs against different models are easy to tell apart.
func NewAnalysisLogFilePath(model string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model)),
	)
}

// AnalysisLog captures the inputs and outcome of a single Process call.
type AnalysisLog struct {
	Timestamp      time.Time           `json:"timestamp"`
	Transcript     string              `json:"transcript"`
	DurationMs     int64               `json:"duration_ms"`
	Outcome        string              `json:"outcome"`
	FallbackReason string              `json:"fallback_reason,omitempty"`
	Analysis       *MealAnalysisResult `json:"analysis,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// FileAnalysisLogger buffers entries and writes them as one document on Flush.
type FileAnalysisLogger struct {
	mu      sync.Mutex
	entries []AnalysisLog
	writer  io.Writer
}

func NewFileAnalysisLogger(writer io.Writer) *FileAnalysisLogger {
	return &FileAnalysisLogger{
		entries: make([]AnalysisLog, 0),
		writer:  writer,
	}
}

func (l *FileAnalysisLogger) LogAnalysis(entry AnalysisLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Flush writes all buffered entries and clears the buffer.
func (l *FileAnalysisLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"analysis_session": map[string]any{
			"timestamp": time.Now(),
			"analyses":  l.entries,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write analysis log: %w", err)
	}

	l.entries = l.entries[:0]
	return nil
}

type NoOpAnalysisLogger struct{}

func NewNoOpAnalysisLogger() *NoOpAnalysisLogger {
	return &NoOpAnalysisLogger{}
}

func (NoOpAnalysisLogger) LogAnalysis(AnalysisLog) error {
	return nil
}

// LineAnalysisLogger writes each entry as one JSON line as soon as it is logged.
// Long-running processes use it so nothing accumulates in memory.
type LineAnalysisLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineAnalysisLogger(w io.Writer) *LineAnalysisLogger {
	return &LineAnalysisLogger{w: w}
}

func NewStdoutAnalysisLogger() *LineAnalysisLogger {
	return NewLineAnalysisLogger(os.Stdout)
}

func (l *LineAnalysisLogger) LogAnalysis(entry AnalysisLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis log: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(data); err != nil {
		return fmt.Errorf("failed to write analysis log: %w", err)
	}
	return nil
}

// NewAnalysisLogger picks a logger by name: "stdout", "none", or anything else as a file path.
// File loggers buffer the whole run and write one document on cleanup, which suits one-shot commands.
func NewAnalysisLogger(kind, modelID string) (AnalysisLogger, func() error, error) {
	return newAnalysisLogger(kind, modelID, false)
}

// NewStreamingAnalysisLogger is NewAnalysisLogger for servers: file loggers append
// one JSON line per entry instead of buffering.
func NewStreamingAnalysisLogger(kind, modelID string) (AnalysisLogger, func() error, error) {
	return newAnalysisLogger(kind, modelID, true)
}

func newAnalysisLogger(kind, modelID string, streaming bool) (AnalysisLogger, func() error, error) {
	nop := func() error { return nil }

	switch kind {
	case "", "none":
		return NewNoOpAnalysisLogger(), nop, nil
	case "stdout":
		return NewStdoutAnalysisLogger(), nop, nil
	}

	path := kind
	if kind == "file" {
		path = NewAnalysisLogFilePath(modelID)
		if streaming {
			path += "l"
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nop, fmt.Errorf("failed to create log directory: %w", err)
	}

	if streaming {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nop, fmt.Errorf("failed to open log file: %w", err)
		}
		return NewLineAnalysisLogger(f), f.Close, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nop, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := NewFileAnalysisLogger(f)
	cleanup := func() error {
		return errors.Join(logger.Flush(), f.Close())
	}
	return logger, cleanup, nil
}
