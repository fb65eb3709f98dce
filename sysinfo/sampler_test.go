package sysinfo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSource) Collect(context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return Snapshot{CPUPercent: float64(f.calls), TakenAt: time.Now()}, f.err
}

type sinkRecorder struct {
	mu   sync.Mutex
	seen []Snapshot
}

func (r *sinkRecorder) Observe(s Snapshot) {
	r.mu.Lock()
	r.seen = append(r.seen, s)
	r.mu.Unlock()
}

func (r *sinkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestSampler_Sample(t *testing.T) {
	src := &fakeSource{}
	sink := &sinkRecorder{}
	s := NewSampler(src, "", nil, sink)

	_, ok := s.Latest()
	assert.False(t, ok)

	snap, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.CPUPercent)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, snap, latest)
	assert.Equal(t, 1, sink.count())
}

func TestSampler_PartialSnapshotIsKept(t *testing.T) {
	src := &fakeSource{err: errors.New("disk: access denied")}
	s := NewSampler(src, "", nil)

	_, err := s.Sample(context.Background())
	assert.Error(t, err)

	_, ok := s.Latest()
	assert.True(t, ok)
}

func TestSampler_Lifecycle(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	sink := &sinkRecorder{}
	s := NewSampler(src, "@every 1h", nil)
	s.AddSink(sink)

	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.IsInitialized())

	require.Eventually(t, func() bool { return sink.count() > 0 }, 2*time.Second, 10*time.Millisecond,
		"an initial sample is taken on start")

	require.NoError(t, s.Shutdown(ctx))
	assert.False(t, s.IsInitialized())
}

func TestSampler_BadSchedule(t *testing.T) {
	s := NewSampler(&fakeSource{}, "every now and then", nil)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsInitialized())
}

func TestCollector_Collect(t *testing.T) {
	c := NewCollector()
	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Logf("partial snapshot: %v", err)
	}
	assert.False(t, snap.TakenAt.IsZero())
	assert.NotZero(t, snap.Memory.Total)
	assert.NotEmpty(t, c.diskPath)
}

// blockingSource blocks until the collection context ends.
type blockingSource struct {
	started chan struct{}
}

func (b *blockingSource) Collect(ctx context.Context) (Snapshot, error) {
	close(b.started)
	<-ctx.Done()
	return Snapshot{}, ctx.Err()
}

func TestSampler_ShutdownCancelsInFlightSample(t *testing.T) {
	src := &blockingSource{started: make(chan struct{})}
	s := NewSampler(src, "@every 1h", nil)

	require.NoError(t, s.Initialize(context.Background()))
	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("initial sample never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, ok := s.Latest()
	assert.True(t, ok, "the canceled sample is still recorded")
}
