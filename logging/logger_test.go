package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ARTM2000/winvault/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memStore map[string]any

func (m memStore) Set(key string, value any) error { m[key] = value; return nil }

func (m memStore) String(key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func newBuffered(t *testing.T, store LevelStore, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	clock := &fakeClock{now: time.Date(2026, 10, 14, 9, 30, 0, 250_000_000, time.Local)}
	l, err := New(Config{Output: &buf, Level: level}, store, WithClock(clock))
	require.NoError(t, err)
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"Verbose", Verbose},
		{"trace", Verbose},
		{"DEBUG", Debug},
		{"Information", Information},
		{"info", Information},
		{" warning ", Warning},
		{"warn", Warning},
		{"Error", Error},
		{"fatal", Fatal},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "Information", Information.String())
	assert.Equal(t, "Fatal", Fatal.String())
	assert.Equal(t, "Level(9)", Level(9).String())
	assert.True(t, Verbose < Debug && Debug < Information && Information < Warning && Warning < Error && Error < Fatal)
}

func TestLogger_Format(t *testing.T) {
	l, buf := newBuffered(t, nil, "")

	l.Information("vault opened", zap.String("path", "C:/data"))

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "2026-10-14 09:30:00.250 [INF] vault opened"), line)
	assert.Contains(t, line, `"path"`)
	assert.Contains(t, line, `C:/data`)
}

func TestLogger_Tags(t *testing.T) {
	l, buf := newBuffered(t, nil, "Verbose")

	l.Verbose("v")
	l.Debug("d")
	l.Information("i")
	l.Warning("w")
	l.Error("e")
	l.Fatal("f")

	out := buf.String()
	for _, tag := range []string{"[VRB] v", "[DBG] d", "[INF] i", "[WRN] w", "[ERR] e", "[FTL] f"} {
		assert.Contains(t, out, tag)
	}
}

func TestLogger_FatalDoesNotExit(t *testing.T) {
	l, buf := newBuffered(t, nil, "")

	l.Fatal("unrecoverable", zap.Int("code", 3))
	l.Information("still here")

	assert.Contains(t, buf.String(), "[FTL] unrecoverable")
	assert.Contains(t, buf.String(), "still here")
}

func TestLogger_ErrorErr(t *testing.T) {
	l, buf := newBuffered(t, nil, "")

	l.ErrorErr(errors.New("disk full"), "export failed")

	assert.Contains(t, buf.String(), "[ERR] export failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestLogger_MinimumLevel(t *testing.T) {
	t.Run("read from store", func(t *testing.T) {
		l, buf := newBuffered(t, memStore{settings.KeyLogLevel: "Warning"}, "")

		l.Information("hidden")
		l.Warning("shown")

		assert.Equal(t, Warning, l.MinimumLevel())
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("bad stored value falls back", func(t *testing.T) {
		l, _ := newBuffered(t, memStore{settings.KeyLogLevel: "chatty"}, "")
		assert.Equal(t, Information, l.MinimumLevel())
	})

	t.Run("bad configured value fails", func(t *testing.T) {
		_, err := New(Config{Level: "chatty"}, nil)
		assert.Error(t, err)
	})

	t.Run("set persists", func(t *testing.T) {
		store := memStore{}
		l, buf := newBuffered(t, store, "")

		assert.False(t, l.Enabled(Verbose))
		require.NoError(t, l.SetMinimumLevel(Verbose))
		l.Verbose("detail")

		assert.True(t, l.Enabled(Verbose))
		assert.Equal(t, "Verbose", store[settings.KeyLogLevel])
		assert.Contains(t, buf.String(), "[VRB] detail")
	})

	t.Run("set rejects unknown level", func(t *testing.T) {
		l, _ := newBuffered(t, nil, "")
		assert.Error(t, l.SetMinimumLevel(Level(42)))
	})

	t.Run("survives reopen through settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), settings.FileName)
		store, err := settings.Open(path)
		require.NoError(t, err)

		l, err := New(Config{}, store)
		require.NoError(t, err)
		require.NoError(t, l.SetMinimumLevel(Error))

		reopened, err := settings.Open(path)
		require.NoError(t, err)
		l2, err := New(Config{}, reopened)
		require.NoError(t, err)
		assert.Equal(t, Error, l2.MinimumLevel())
	})
}

func TestLogger_DailyFiles(t *testing.T) {
	dir := t.TempDir()
	clock := &fakeClock{now: time.Date(2026, 10, 14, 23, 59, 0, 0, time.Local)}
	l, err := New(Config{Dir: dir}, nil, WithClock(clock))
	require.NoError(t, err)

	l.Information("before midnight")
	assert.Equal(t, filepath.Join(dir, "log_20261014.txt"), l.File())

	clock.advance(2 * time.Minute)
	l.Information("after midnight")
	assert.Equal(t, filepath.Join(dir, "log_20261015.txt"), l.File())

	require.NoError(t, l.Close())

	first, err := os.ReadFile(filepath.Join(dir, "log_20261014.txt"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "log_20261015.txt"))
	require.NoError(t, err)

	assert.Contains(t, string(first), "2026-10-14 23:59:00.000 [INF] before midnight")
	assert.Contains(t, string(second), "2026-10-15 00:01:00.000 [INF] after midnight")
}

func TestService(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir}, nil)
	require.NoError(t, err)
	svc := NewService(l)
	ctx := context.Background()

	require.NoError(t, svc.Initialize(ctx))
	require.NoError(t, svc.Shutdown(ctx))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "logging started")
	assert.Contains(t, string(data), "logging stopped")
}

func TestLogger_WritesAfterCloseDropped(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir}, nil)
	require.NoError(t, err)

	l.Information("before close")
	require.NotEmpty(t, l.File())
	require.NoError(t, l.Close())

	l.Information("after close")
	assert.Empty(t, l.File(), "no file is reopened after Close")
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close")
}
