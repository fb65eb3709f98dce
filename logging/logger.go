// Package logging writes the application log: one text file per day under
// the log directory plus optional console output. Entries look like
//
//	2006-01-02 15:04:05.000 [INF] message {"key":"value"}
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/ARTM2000/winvault/settings"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp format of every entry.
const TimeLayout = "2006-01-02 15:04:05.000"

// LevelStore persists the chosen minimum level. *settings.Store satisfies it.
type LevelStore interface {
	Set(key string, value any) error
	String(key, def string) string
}

// Config controls where entries go.
type Config struct {
	// Dir receives the daily files. Empty disables file output.
	Dir string
	// Console mirrors entries to stderr.
	Console bool
	// Level overrides the stored level when non-empty.
	Level string
	// MaxSizeMB caps a single day's file before lumberjack rolls it.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Output replaces the console stream, mainly for tests.
	Output io.Writer
}

// Option configures a [Logger].
type Option func(*Logger)

// WithClock sets the clock used for timestamps and file names.
func WithClock(c zapcore.Clock) Option {
	return func(l *Logger) {
		if c != nil {
			l.clock = c
		}
	}
}

// Logger is the application logger. Fatal entries are written and flushed
// but never terminate the process.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
	store LevelStore
	daily *dailyWriter
	clock zapcore.Clock
}

// noExit replaces zap's default fatal behaviour of calling os.Exit.
type noExit struct{}

func (noExit) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

// New builds a logger. The initial minimum level comes from cfg.Level, then
// from store, then defaults to Information. store may be nil.
func New(cfg Config, store LevelStore, opts ...Option) (*Logger, error) {
	l := &Logger{store: store, clock: zapcore.DefaultClock}
	for _, opt := range opts {
		opt(l)
	}

	initial := Information
	name := cfg.Level
	if name == "" && store != nil {
		name = store.String(settings.KeyLogLevel, "")
	}
	if name != "" {
		parsed, err := ParseLevel(name)
		if err != nil && cfg.Level != "" {
			return nil, err
		}
		if err == nil {
			initial = parsed
		}
	}
	l.level = zap.NewAtomicLevelAt(initial.zap())

	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeLevel:      encodeLevel,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})

	var cores []zapcore.Core
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: creating %s: %w", cfg.Dir, err)
		}
		l.daily = &dailyWriter{
			dir:        cfg.Dir,
			maxSizeMB:  orDefault(cfg.MaxSizeMB, 10),
			maxBackups: orDefault(cfg.MaxBackups, 5),
			maxAgeDays: orDefault(cfg.MaxAgeDays, 31),
			clock:      l.clock,
		}
		cores = append(cores, zapcore.NewCore(enc, l.daily, l.level))
	}
	if cfg.Output != nil {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(cfg.Output), l.level))
	} else if cfg.Console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), l.level))
	}

	l.z = zap.New(zapcore.NewTee(cores...),
		zap.WithClock(l.clock),
		zap.WithFatalHook(noExit{}),
	)
	return l, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger { return l.z }

// Named returns a zap logger tagged with name.
func (l *Logger) Named(name string) *zap.Logger { return l.z.Named(name) }

func (l *Logger) Verbose(msg string, fields ...zap.Field) { l.z.Log(verboseLevel, msg, fields...) }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }

func (l *Logger) Information(msg string, fields ...zap.Field) { l.z.Info(msg, fields...) }

func (l *Logger) Warning(msg string, fields ...zap.Field) { l.z.Warn(msg, fields...) }

func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

// Fatal writes at the highest level and syncs. It does not exit.
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.z.Fatal(msg, fields...)
	_ = l.z.Sync()
}

// ErrorErr writes msg at error level with err attached.
func (l *Logger) ErrorErr(err error, msg string, fields ...zap.Field) {
	l.z.Error(msg, append(fields, zap.Error(err))...)
}

// Log writes msg at level.
func (l *Logger) Log(level Level, msg string, fields ...zap.Field) {
	if level == Fatal {
		l.Fatal(msg, fields...)
		return
	}
	l.z.Log(level.zap(), msg, fields...)
}

// MinimumLevel returns the current threshold.
func (l *Logger) MinimumLevel() Level { return fromZap(l.level.Level()) }

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool { return l.level.Enabled(level.zap()) }

// SetMinimumLevel changes the threshold immediately and persists it.
func (l *Logger) SetMinimumLevel(level Level) error {
	if level < Verbose || level > Fatal {
		return fmt.Errorf("logging: invalid level %d", level)
	}
	l.level.SetLevel(level.zap())
	if l.store == nil {
		return nil
	}
	if err := l.store.Set(settings.KeyLogLevel, level.String()); err != nil {
		return fmt.Errorf("logging: persisting level: %w", err)
	}
	return nil
}

// File returns the file currently written to, or "" when none is open.
func (l *Logger) File() string {
	if l.daily == nil {
		return ""
	}
	return l.daily.current()
}

// Close syncs the logger and closes the current file.
func (l *Logger) Close() error {
	// Syncing a terminal fails on several platforms; only the file matters.
	_ = l.z.Sync()
	if l.daily == nil {
		return nil
	}
	return l.daily.Close()
}
