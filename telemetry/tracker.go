// Package telemetry keeps a local, opt-in usage log. Nothing leaves the
// machine; events are appended to a tab-separated file.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/logging"
	"github.com/ARTM2000/winvault/settings"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileName is the event log name inside the data directory.
const FileName = "telemetry.log"

// Well-known event names.
const (
	EventToggle  = "telemetry_toggle"
	EventStart   = "app_start"
	EventExit    = "app_exit"
	EventCommand = "command_exec"
)

const timeLayout = "2006-01-02 15:04:05"

// Flags persists the enabled flag. *settings.Store satisfies it.
type Flags interface {
	Bool(key string, def bool) bool
	Set(key string, value any) error
}

// Tracker appends events to the telemetry log while analytics are enabled.
// Each line is: timestamp, session id, event, data.
type Tracker struct {
	*winvault.Base

	path    string
	flags   Flags
	session string
	log     *zap.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewTracker writes to path. Whether tracking is enabled is read from flags
// on every event, defaulting to on.
func NewTracker(path string, flags Flags, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		Base:    winvault.NewBase("telemetry"),
		path:    path,
		flags:   flags,
		session: uuid.NewString(),
		log:     log,
		now:     time.Now,
	}
}

// Session is the id stamped on every line written by this tracker.
func (t *Tracker) Session() string { return t.session }

// Path returns the log file.
func (t *Tracker) Path() string { return t.path }

// Enabled reports whether events are recorded.
func (t *Tracker) Enabled() bool {
	return t.flags.Bool(settings.KeyEnableAnalytics, true)
}

// SetEnabled persists the flag and records the change. Turning tracking off
// is therefore never itself recorded.
func (t *Tracker) SetEnabled(enabled bool) error {
	if err := t.flags.Set(settings.KeyEnableAnalytics, enabled); err != nil {
		return fmt.Errorf("telemetry: saving flag: %w", err)
	}
	state := "off"
	if enabled {
		state = "on"
	}
	return t.Track(EventToggle, state)
}

// Track appends one event. It is a no-op while tracking is disabled.
func (t *Tracker) Track(event, data string) error {
	if !t.Enabled() {
		return nil
	}
	line := strings.Join([]string{
		t.now().Format(timeLayout),
		t.session,
		clean(event),
		clean(data),
	}, "\t") + "\n"

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("telemetry: %w", err)
	}
	return f.Close()
}

var fieldReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func clean(s string) string { return fieldReplacer.Replace(s) }

// Initialize records the start of the session.
func (t *Tracker) Initialize(ctx context.Context) error {
	return t.Start(ctx, func(context.Context) error {
		if err := t.Track(EventStart, ""); err != nil {
			t.log.Warn("telemetry unavailable", zap.Error(err))
		}
		return nil
	})
}

// Shutdown records the end of the session.
func (t *Tracker) Shutdown(ctx context.Context) error {
	return t.Stop(ctx, func(context.Context) error {
		if err := t.Track(EventExit, ""); err != nil {
			t.log.Warn("telemetry unavailable", zap.Error(err))
		}
		return nil
	})
}

// Module registers a tracker writing to path, backed by the settings store.
func Module(path string) winvault.Module {
	return winvault.NewModule("telemetry", func(c winvault.Container) error {
		return c.Register(func(s *settings.Store, l *logging.Logger) *Tracker {
			return NewTracker(path, s, l.Named("telemetry"))
		}, winvault.WithAutoInitialize(), winvault.DependsOn[*settings.Service]())
	})
}
