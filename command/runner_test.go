package command

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests use sh")
	}
}

func TestRunner_Run(t *testing.T) {
	requireShell(t)
	r, err := NewRunner()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("captures output", func(t *testing.T) {
		res, err := r.Run(ctx, "echo hello; echo oops >&2")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", res.Stdout)
		assert.Equal(t, "oops\n", res.Stderr)
		assert.Equal(t, 0, res.ExitCode)
		assert.True(t, res.Success())
	})

	t.Run("non-zero exit is not an error", func(t *testing.T) {
		res, err := r.Run(ctx, "exit 3")
		require.NoError(t, err)
		assert.Equal(t, 3, res.ExitCode)
		assert.False(t, res.Success())
	})

	t.Run("blank line", func(t *testing.T) {
		_, err := r.Run(ctx, "   ")
		assert.ErrorIs(t, err, ErrEmptyCommand)
	})
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	r, err := NewRunner(WithTimeout(100 * time.Millisecond))
	require.NoError(t, err)

	begin := time.Now()
	res, err := r.Run(context.Background(), "echo started; sleep 5")
	require.ErrorIs(t, err, ErrTimeout)
	assert.True(t, res.TimedOut)
	assert.Less(t, time.Since(begin), 4*time.Second)
}

func TestRunner_ContextCanceled(t *testing.T) {
	requireShell(t)
	r, err := NewRunner()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = r.Run(ctx, "sleep 5")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRunner_Encoding(t *testing.T) {
	requireShell(t)

	_, err := NewRunner(WithEncoding("klingon"))
	require.Error(t, err)

	r, err := NewRunner(WithEncoding("gbk"))
	require.NoError(t, err)
	assert.Equal(t, "gbk", r.Encoding())

	// "中文" encoded as GBK.
	res, err := r.Run(context.Background(), `printf '\326\320\316\304'`)
	require.NoError(t, err)
	assert.Equal(t, "中文", res.Stdout)
}

func TestRunner_Options(t *testing.T) {
	r, err := NewRunner()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, r.Timeout())
	assert.Equal(t, "utf-8", r.Encoding())

	_, err = NewRunner(WithShell(""))
	assert.Error(t, err)
}

func TestSession(t *testing.T) {
	requireShell(t)
	r, err := NewRunner(WithShell("sh", "-c"))
	require.NoError(t, err)
	c, err := ParseCatalog([]byte(sampleCatalog), "linux")
	require.NoError(t, err)
	ctx := context.Background()

	s := NewSession(r, c)
	assert.NotEmpty(t, s.ID)

	_, err = s.Run(ctx, "echo one")
	require.NoError(t, err)
	_, err = s.RunEntry(ctx, "Host name")
	require.NoError(t, err)
	_, err = s.RunEntry(ctx, "missing")
	assert.Error(t, err)
	_, err = s.Run(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, "echo one", history[0].Command)
	assert.Equal(t, "hostname", history[1].Command)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrSessionClosed)
	_, err = s.Run(ctx, "echo late")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.NotEqual(t, s.ID, NewSession(r, c).ID)
}
