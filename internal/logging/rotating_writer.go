package logging

import (
	"fmt"
	"os"
	"sync"
)

// rotatingWriter appends to path and, once a write would exceed maxBytes,
// shifts path.N-1 to path.N down to path to path.1 and starts over. Zero
// backups truncates in place.
type rotatingWriter struct {
	path     string
	maxBytes int64
	backups  int
	mu       sync.Mutex
	file     *os.File
	size     int64
}

func newRotatingWriter(path string, maxMB, backups int) (*rotatingWriter, error) {
	if maxMB <= 0 {
		maxMB = 10
	}
	return newRotatingWriterBytes(path, int64(maxMB)*1024*1024, backups)
}

func newRotatingWriterBytes(path string, maxBytes int64, backups int) (*rotatingWriter, error) {
	if backups < 0 {
		backups = 0
	}
	f, size, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return &rotatingWriter{path: path, maxBytes: maxBytes, backups: backups, file: f, size: size}, nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		f, size, err := openLogFile(w.path)
		if err != nil {
			return 0, err
		}
		w.file, w.size = f, size
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.backups == 0 {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	for i := w.backups; i >= 1; i-- {
		src := w.path
		if i > 1 {
			src = backupName(w.path, i-1)
		}
		if err := os.Rename(src, backupName(w.path, i)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	f, size, err := openLogFile(w.path)
	if err != nil {
		return err
	}
	w.file, w.size = f, size
	return nil
}

func openLogFile(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}
