// Package logging builds the process-wide zerolog logger: a console
// writer for the terminal plus a size-rotated log file kept next to the
// database.
package logging

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultMaxBytes is the size at which the active log file is rotated
// aside; one previous generation is kept.
const defaultMaxBytes = 10 << 20

// RotatingWriter is an io.Writer over a log file that renames the file
// aside and reopens it once it exceeds maxBytes. Rotation keeps a single
// previous generation at path + ".old".
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	f        *os.File
	size     int64
}

// NewRotatingWriter opens (appending) the log file at path. maxBytes <= 0
// selects the default cap.
func NewRotatingWriter(path string, maxBytes int64) (*RotatingWriter, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &RotatingWriter{path: path, maxBytes: maxBytes, f: f, size: info.Size()}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) rotate() error {
	if err := w.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(w.path, w.path+".old"); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.size = 0
	return nil
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// New returns a logger writing human-readable lines to stderr and JSON
// events to the rotated file at logPath. If the file can't be opened the
// logger degrades to console-only rather than failing the process.
func New(logPath string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	file, err := NewRotatingWriter(logPath, 0)
	if err != nil {
		logger := zerolog.New(console).With().Timestamp().Logger()
		logger.Warn().Err(err).Str("path", logPath).Msg("logging: file sink unavailable, console only")
		return logger
	}
	return zerolog.New(zerolog.MultiLevelWriter(console, file)).With().Timestamp().Logger()
}
