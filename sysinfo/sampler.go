package sysinfo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ARTM2000/winvault"
	cron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule samples twice a minute.
const DefaultSchedule = "@every 30s"

// Sink receives every snapshot the sampler takes.
type Sink interface {
	Observe(Snapshot)
}

// Source is anything that can produce a snapshot.
type Source interface {
	Collect(ctx context.Context) (Snapshot, error)
}

// Sampler collects snapshots on a cron schedule while it is initialized and
// keeps the most recent one.
type Sampler struct {
	*winvault.Base

	source   Source
	schedule string
	timeout  time.Duration
	log      *zap.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	latest Snapshot
	ok     bool
	sinks  []Sink
}

// NewSampler returns a sampler reading from src. An empty schedule uses
// [DefaultSchedule].
func NewSampler(src Source, schedule string, log *zap.Logger, sinks ...Sink) *Sampler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sampler{
		Base:     winvault.NewBase("sysinfo"),
		source:   src,
		schedule: schedule,
		timeout:  10 * time.Second,
		log:      log,
		sinks:    sinks,
	}
}

// AddSink registers another receiver.
func (s *Sampler) AddSink(k Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, k)
	s.mu.Unlock()
}

func (s *Sampler) Initialize(ctx context.Context) error {
	return s.Start(ctx, func(context.Context) error {
		runCtx, cancel := context.WithCancel(context.Background())
		c := cron.New()
		if _, err := c.AddFunc(s.schedule, func() { s.sample(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("sysinfo: schedule %q: %w", s.schedule, err)
		}
		c.Start()
		s.cron, s.cancel = c, cancel

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sample(runCtx)
		}()

		s.log.Info("system sampler started", zap.String("schedule", s.schedule))
		return nil
	})
}

func (s *Sampler) Shutdown(ctx context.Context) error {
	return s.Stop(ctx, func(ctx context.Context) error {
		if s.cron == nil {
			return nil
		}
		s.cancel()
		stopped := s.cron.Stop()
		done := make(chan struct{})
		go func() {
			<-stopped.Done()
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Sample collects one snapshot now and hands it to every sink.
func (s *Sampler) Sample(ctx context.Context) (Snapshot, error) {
	snap, err := s.source.Collect(ctx)
	if err != nil {
		s.log.Debug("partial system snapshot", zap.Error(err))
	}

	s.mu.Lock()
	s.latest, s.ok = snap, true
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.Unlock()

	for _, k := range sinks {
		k.Observe(snap)
	}
	return snap, err
}

func (s *Sampler) sample(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()
	_, _ = s.Sample(ctx)
}

// Latest returns the most recent snapshot and whether one has been taken.
func (s *Sampler) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}
