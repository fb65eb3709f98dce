package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	return s
}

func TestOpen(t *testing.T) {
	t.Run("missing file starts empty", func(t *testing.T) {
		s := openTemp(t)
		assert.Empty(t, s.Keys())
	})

	t.Run("loads existing values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(`{"Theme":"Dark","WindowWidth":1280}`), 0o644))

		s, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, "Dark", s.String(KeyTheme, "Light"))
		assert.Equal(t, 1280, s.Int(KeyWindowWidth, 0))
	})

	t.Run("malformed file starts empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(`{"Theme":`), 0o644))

		s, err := Open(path)
		require.NoError(t, err)
		assert.Empty(t, s.Keys())
	})

	t.Run("non-object file starts empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte(`[1,2,3]`), 0o644))

		s, err := Open(path)
		require.NoError(t, err)
		assert.Empty(t, s.Keys())
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})
}

func TestGet(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Set("count", "5"))
	require.NoError(t, s.Set("ratio", 5))
	require.NoError(t, s.Set("flag", "true"))
	require.NoError(t, s.Set("timeout", "45s"))
	require.NoError(t, s.Set("words", "not a number"))

	assert.Equal(t, 5, Get(s, "count", 0))
	assert.Equal(t, "5", Get(s, "ratio", ""))
	assert.Equal(t, true, Get(s, "flag", false))
	assert.Equal(t, 45*time.Second, Get(s, "timeout", time.Duration(0)))
	assert.Equal(t, 7, Get(s, "words", 7), "unconvertible value falls back")
	assert.Equal(t, "fallback", Get(s, "missing", "fallback"))
}

func TestGet_AfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := Open(path)
	require.NoError(t, err)

	type window struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	require.NoError(t, s.Set("window", window{Width: 800, Height: 600}))
	require.NoError(t, s.Set(KeyCommandTimeout, 30))
	require.NoError(t, s.Set("recent", []string{"a", "b"}))

	reopened, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, window{Width: 800, Height: 600}, Get(reopened, "window", window{}))
	assert.Equal(t, 30, reopened.Int(KeyCommandTimeout, 0))
	assert.Equal(t, int64(30), Get(reopened, KeyCommandTimeout, int64(0)))
	assert.Equal(t, []string{"a", "b"}, Get(reopened, "recent", []string(nil)))
}

func TestSet(t *testing.T) {
	t.Run("persists indented json", func(t *testing.T) {
		s := openTemp(t)
		require.NoError(t, s.Set(KeyTheme, "Dark"))

		data, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), "\n  \"Theme\": \"Dark\"")
	})

	t.Run("rejects unencodable values", func(t *testing.T) {
		s := openTemp(t)
		err := s.Set("fn", func() {})
		require.Error(t, err)
		assert.False(t, s.Has("fn"))
	})

	t.Run("rejects empty key", func(t *testing.T) {
		s := openTemp(t)
		assert.ErrorIs(t, s.Set("", 1), ErrEmptyKey)
	})

	t.Run("creates missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", FileName)
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Set(KeyLanguage, "en-US"))

		_, err = os.Stat(path)
		assert.NoError(t, err)
	})
}

func TestRemoveResetKeys(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Set("b", 2))
	require.NoError(t, s.Set("a", 1))

	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.True(t, s.Has("a"))

	require.NoError(t, s.Remove("a"))
	require.NoError(t, s.Remove("a"))
	assert.False(t, s.Has("a"))
	assert.Equal(t, map[string]any{"b": 2}, s.All())

	require.NoError(t, s.Reset())
	assert.Empty(t, s.Keys())

	reopened, err := Open(s.Path())
	require.NoError(t, err)
	assert.Empty(t, reopened.Keys())
}

func TestSubscribe(t *testing.T) {
	s := openTemp(t)

	var got []string
	unsubscribe := s.Subscribe(func(key string) { got = append(got, key) })

	require.NoError(t, s.Set("x", 1))
	require.NoError(t, s.Remove("x"))
	require.NoError(t, s.Set("y", 1))
	require.NoError(t, s.Set("z", 1))
	require.NoError(t, s.Reset())

	unsubscribe()
	require.NoError(t, s.Set("after", 1))

	assert.Equal(t, []string{"x", "x", "y", "z", "y", "z"}, got)
}

func TestReload(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Set("kept", "same"))
	require.NoError(t, s.Set("gone", 1))

	var got []string
	s.Subscribe(func(key string) { got = append(got, key) })

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"kept":"same","added":true}`), 0o644))
	require.NoError(t, s.Reload())

	assert.Equal(t, []string{"added", "gone"}, got)
	assert.True(t, s.Bool("added", false))

	t.Run("malformed file keeps values", func(t *testing.T) {
		require.NoError(t, os.WriteFile(s.Path(), []byte(`{broken`), 0o644))
		assert.Error(t, s.Reload())
		assert.True(t, s.Has("kept"))
	})
}

func TestWatch(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Set(KeyTheme, "Light"))

	var mu sync.Mutex
	changed := map[string]bool{}
	s.Subscribe(func(key string) {
		mu.Lock()
		changed[key] = true
		mu.Unlock()
	})

	w, err := s.Watch(context.Background())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"Theme":"Dark"}`), 0o644))

	require.Eventually(t, func() bool {
		return s.String(KeyTheme, "") == "Dark"
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.True(t, changed[KeyTheme])
	mu.Unlock()

	require.NoError(t, w.Close())
	select {
	case <-w.Done():
	default:
		t.Fatal("watcher should be stopped after Close")
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	svc := NewService(s)

	require.NoError(t, svc.Initialize(ctx))
	assert.True(t, svc.IsInitialized())
	assert.NotNil(t, svc.watcher)

	require.NoError(t, svc.Shutdown(ctx))
	assert.False(t, svc.IsInitialized())

	_, err := os.Stat(s.Path())
	assert.NoError(t, err, "shutdown flushes the store")
}
