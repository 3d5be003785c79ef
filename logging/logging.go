package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const DefaultMaxSize = 2 * 1024 * 1024 // 2MB

// RotatingWriter appends to a file and moves it to path.1 once it grows
// past maxSize. Only one backup is kept.
type RotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	size    int64
	maxSize int64
}

// Setup points the standard logger at stdout and a rotating file.
func Setup(logPath string, maxSize int64) (*RotatingWriter, error) {
	rw, err := NewRotatingWriter(logPath, maxSize)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rw))
	return rw, nil
}

func NewRotatingWriter(logPath string, maxSize int64) (*RotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	// Oversized leftovers from a previous process start fresh.
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxSize {
		os.Truncate(logPath, 0)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", logPath, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	return &RotatingWriter{file: f, path: logPath, size: size, maxSize: maxSize}, nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > w.maxSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	os.Rename(w.path, w.path+".1")

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return
	}

	w.file = f
	w.size = 0
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

var debug atomic.Bool

// SetLevel enables Debugf output when level is "debug".
func SetLevel(level string) {
	debug.Store(strings.EqualFold(strings.TrimSpace(level), "debug"))
}

func DebugEnabled() bool {
	return debug.Load()
}

func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Output(2, "[debug] "+fmt.Sprintf(format, args...))
	}
}
