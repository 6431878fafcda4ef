package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Writer is an io.Writer that forwards each written line to slog at a fixed level.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
}

func NewWriter(logger *slog.Logger, level slog.Level) *Writer {
	return &Writer{logger: logger, level: level}
}

// Write logs every non-empty line of p. A leading "WARNING: " is dropped
// since the level already carries it.
func (w *Writer) Write(p []byte) (int, error) {
	if w.logger == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		line = strings.TrimPrefix(strings.TrimRight(line, "\r"), "WARNING: ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.logger.Log(context.Background(), w.level, line)
	}
	return len(p), nil
}
