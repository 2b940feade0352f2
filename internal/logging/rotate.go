// Package logging provides the rotating file writer backing the agent
// runtime's logs/agent.log (and its NDJSON structured sibling), the
// Go-native analogue of the Python original's RotatingFileHandler.
// Grounded on AgentLoggingConfig's {log_file, max_log_size, backup_count}
// (internal/config/config_agentic.go) and internal/observability/
// logging.go's Logger, which wraps an io.Writer the same way.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.Writer that rotates the underlying file once it
// exceeds maxBytes, keeping up to backupCount numbered backups
// (path.1, path.2, ...), oldest evicted first — the same shape as
// Python's logging.handlers.RotatingFileHandler.
type RotatingWriter struct {
	mu          sync.Mutex
	path        string
	maxBytes    int64
	backupCount int
	file        *os.File
	size        int64
}

// NewRotatingWriter opens (creating if needed) the log file at path,
// rotating according to maxBytes/backupCount. A maxBytes of 0 disables
// rotation entirely (the file grows unbounded, matching a zero
// max_log_size config value).
func NewRotatingWriter(path string, maxBytes int64, backupCount int) (*RotatingWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RotatingWriter{
		path:        path,
		maxBytes:    maxBytes,
		backupCount: backupCount,
		file:        f,
		size:        info.Size(),
	}, nil
}

// Write implements io.Writer, rotating before the write if it would push
// the file past maxBytes.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate closes the current file, shifts backups (path.N -> path.N+1,
// dropping anything beyond backupCount), and reopens path fresh.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	if w.backupCount > 0 {
		oldest := fmt.Sprintf("%s.%d", w.path, w.backupCount)
		_ = os.Remove(oldest)
		for n := w.backupCount - 1; n >= 1; n-- {
			src := fmt.Sprintf("%s.%d", w.path, n)
			dst := fmt.Sprintf("%s.%d", w.path, n+1)
			if _, err := os.Stat(src); err == nil {
				_ = os.Rename(src, dst)
			}
		}
		if _, err := os.Stat(w.path); err == nil {
			_ = os.Rename(w.path, fmt.Sprintf("%s.1", w.path))
		}
	} else {
		_ = os.Remove(w.path)
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
