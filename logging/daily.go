package logging

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// dailyWriter writes to Dir/log_YYYYMMDD.txt and switches files when the
// date changes. Each day's file is size-capped by lumberjack. Writes after
// Close are dropped.
type dailyWriter struct {
	dir        string
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	clock      zapcore.Clock

	mu     sync.Mutex
	day    string
	file   *lumberjack.Logger
	closed bool
}

func fileNameFor(day string) string { return fmt.Sprintf("log_%s.txt", day) }

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return len(p), nil
	}
	day := w.clock.Now().Format("20060102")
	if w.file == nil || day != w.day {
		if w.file != nil {
			_ = w.file.Close()
		}
		w.day = day
		w.file = &lumberjack.Logger{
			Filename:   filepath.Join(w.dir, fileNameFor(day)),
			MaxSize:    w.maxSizeMB,
			MaxBackups: w.maxBackups,
			MaxAge:     w.maxAgeDays,
		}
	}
	return w.file.Write(p)
}

func (w *dailyWriter) Sync() error { return nil }

// current returns the active file name, or "" before the first write.
func (w *dailyWriter) current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ""
	}
	return w.file.Filename
}

func (w *dailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
