package winvault

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Observer receives the outcome of every service start and stop performed by
// a [Manager]. Implementations must be safe for concurrent use.
type Observer interface {
	ServiceStarted(name string, took time.Duration, err error)
	ServiceStopped(name string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ServiceStarted(string, time.Duration, error) {}
func (nopObserver) ServiceStopped(string, time.Duration, error) {}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithLogger sets the logger used for lifecycle events. The default discards
// everything.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithObserver reports every start and stop to o.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithInitTimeout bounds each service's Initialize call. A service that
// exceeds it is recorded as failed and startup moves on. Zero, the default,
// means no bound.
func WithInitTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.initTimeout = d
	}
}

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseStopped
)

// ServiceStatus is a point-in-time view of one managed service.
type ServiceStatus struct {
	Name           string       `json:"name"`
	Type           reflect.Type `json:"-"`
	Order          int          `json:"order"`
	AutoInitialize bool         `json:"auto_initialize"`
	State          State        `json:"-"`
	StateName      string       `json:"state"`
	Err            error        `json:"-"`
	Error          string       `json:"error,omitempty"`
}

// Manager drives startup and shutdown of every singleton [Service] in a
// [Container]. Startup runs in dependency order; shutdown runs in reverse.
// A failing service is logged and skipped; only cancellation of the caller's
// context aborts a phase.
type Manager struct {
	c           Container
	log         *zap.Logger
	observer    Observer
	initTimeout time.Duration

	// Separate locks so a shutdown is never queued behind a hung startup.
	initSem *semaphore.Weighted
	stopSem *semaphore.Weighted

	mu      sync.Mutex
	phase   phase
	partial bool
	errs    map[reflect.Type]error
}

// NewManager returns a Manager for c. The container is built on the first
// [Manager.InitializeAll] if the caller has not built it already.
func NewManager(c Container, opts ...ManagerOption) *Manager {
	m := &Manager{
		c:        c,
		log:      zap.NewNop(),
		observer: nopObserver{},
		initSem:  semaphore.NewWeighted(1),
		stopSem:  semaphore.NewWeighted(1),
		errs:     make(map[reflect.Type]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Container returns the managed container.
func (m *Manager) Container() Container { return m.c }

// Resolve implements [Resolver] so the manager can be passed to [Resolve].
func (m *Manager) Resolve(t reflect.Type) (reflect.Value, error) {
	return m.c.Resolve(t)
}

// Get returns the service registered for T.
func Get[T any](m *Manager) (T, error) {
	return Resolve[T](m)
}

// Initialized reports whether InitializeAll has completed.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == phaseRunning
}

func (m *Manager) currentPhase() (phase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase, m.partial
}

// InitializeAll initializes every auto-initialize service in ascending
// order. It is idempotent: once it has completed, further calls return nil
// immediately. Concurrent callers wait for the first to finish.
//
// Service failures are logged and recorded in [Manager.Status]; they do not
// stop the sequence. If ctx ends the remaining services are skipped and the
// returned error wraps ctx.Err().
func (m *Manager) InitializeAll(ctx context.Context) error {
	switch p, _ := m.currentPhase(); p {
	case phaseRunning:
		m.log.Debug("service manager already initialized, skipping")
		return nil
	case phaseStopped:
		return ErrAlreadyShutdown
	}

	if err := m.initSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for initialization: %w", err)
	}
	defer m.initSem.Release(1)

	switch p, _ := m.currentPhase(); p {
	case phaseRunning:
		m.log.Debug("service manager was initialized concurrently")
		return nil
	case phaseStopped:
		return ErrAlreadyShutdown
	}

	if err := m.c.Build(); err != nil && !errors.Is(err, ErrAlreadyBuilt) {
		return fmt.Errorf("building container: %w", err)
	}

	targets := m.targets(true)
	m.log.Info("initializing services", zap.Int("count", len(targets)))

	for _, d := range targets {
		name := d.Type.String()
		if err := ctx.Err(); err != nil {
			m.log.Warn("initialization canceled", zap.String("next", name))
			return fmt.Errorf("initializing %s: %w", name, err)
		}

		svc, err := m.service(d)
		if err != nil {
			m.log.Warn("unable to get service instance", zap.String("type", name), zap.Error(err))
			m.record(d.Type, err)
			continue
		}
		name = svc.Name()

		m.setPartial()
		m.log.Debug("initializing service", zap.String("service", name), zap.Int("order", d.Order))

		err = m.startOne(ctx, svc)
		if err != nil {
			if ctx.Err() != nil {
				m.log.Warn("initialization canceled", zap.String("service", name))
				return fmt.Errorf("initializing %s: %w", name, ctx.Err())
			}
			m.log.Error("failed to initialize service", zap.String("service", name), zap.Error(err))
			m.record(d.Type, err)
			continue
		}
		m.record(d.Type, nil)
	}

	m.mu.Lock()
	m.phase = phaseRunning
	m.mu.Unlock()

	m.log.Info("services initialized")
	return nil
}

func (m *Manager) startOne(ctx context.Context, svc Service) error {
	sctx := ctx
	if m.initTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, m.initTimeout)
		defer cancel()
	}

	begin := time.Now()
	err := svc.Initialize(sctx)
	m.observer.ServiceStarted(svc.Name(), time.Since(begin), err)
	return err
}

// ShutdownAll shuts down every initialized singleton service in descending
// order, then closes the container's remaining [io.Closer] singletons. It is
// a no-op when nothing was initialized and after a completed shutdown.
// Failure isolation and cancellation follow [Manager.InitializeAll].
func (m *Manager) ShutdownAll(ctx context.Context) error {
	p, partial := m.currentPhase()
	if p == phaseStopped || (p == phaseIdle && !partial) {
		m.log.Debug("service manager not initialized, nothing to shut down")
		return nil
	}

	if err := m.stopSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for shutdown: %w", err)
	}
	defer m.stopSem.Release(1)

	if p, _ := m.currentPhase(); p == phaseStopped {
		return nil
	}

	targets := m.targets(false)
	m.log.Info("shutting down services", zap.Int("count", len(targets)))

	for i := len(targets) - 1; i >= 0; i-- {
		d := targets[i]
		if err := ctx.Err(); err != nil {
			m.log.Warn("shutdown canceled", zap.String("next", d.Type.String()))
			return fmt.Errorf("shutting down %s: %w", d.Type, err)
		}

		svc, err := m.service(d)
		if err != nil || !svc.IsInitialized() {
			continue
		}
		name := svc.Name()
		m.log.Debug("shutting down service", zap.String("service", name), zap.Int("order", d.Order))

		begin := time.Now()
		err = svc.Shutdown(ctx)
		m.observer.ServiceStopped(name, time.Since(begin), err)
		if err != nil {
			if ctx.Err() != nil {
				m.log.Warn("shutdown canceled", zap.String("service", name))
				return fmt.Errorf("shutting down %s: %w", name, ctx.Err())
			}
			m.log.Error("failed to shut down service", zap.String("service", name), zap.Error(err))
			m.record(d.Type, err)
		}
	}

	m.mu.Lock()
	m.phase = phaseStopped
	m.mu.Unlock()

	if err := m.c.Shutdown(ctx); err != nil && !errors.Is(err, ErrAlreadyShutdown) {
		m.log.Error("failed to close container resources", zap.Error(err))
	}

	m.log.Info("services shut down")
	return nil
}

// Status reports every singleton service in initialization order. Before
// the container is built it returns nil.
func (m *Manager) Status() []ServiceStatus {
	var out []ServiceStatus
	for _, d := range m.targets(false) {
		st := ServiceStatus{Type: d.Type, Order: d.Order, AutoInitialize: d.AutoInitialize}

		svc, err := m.service(d)
		if err != nil {
			st.Name = d.Type.String()
			st.Err = err
		} else {
			st.Name = svc.Name()
			st.State = stateOf(svc)
		}

		m.mu.Lock()
		if recorded := m.errs[d.Type]; recorded != nil {
			st.Err = recorded
		}
		m.mu.Unlock()

		st.StateName = st.State.String()
		if st.Err != nil {
			st.Error = st.Err.Error()
		}
		out = append(out, st)
	}
	return out
}

func stateOf(svc Service) State {
	if s, ok := svc.(interface{ State() State }); ok {
		return s.State()
	}
	if svc.IsInitialized() {
		return Initialized
	}
	return Uninitialized
}

// targets returns the singleton services sorted by ascending order,
// optionally restricted to auto-initialize ones.
func (m *Manager) targets(autoOnly bool) []Descriptor {
	var out []Descriptor
	for _, d := range m.c.Descriptors() {
		if d.Lifetime != Singleton || d.Order < 0 || !d.Type.Implements(serviceType) {
			continue
		}
		if autoOnly && !d.AutoInitialize {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (m *Manager) service(d Descriptor) (Service, error) {
	v, err := m.c.Resolve(d.Type)
	if err != nil {
		return nil, err
	}
	if isNil(v) {
		return nil, fmt.Errorf("%s: constructor returned nil", d.Type)
	}
	svc, ok := v.Interface().(Service)
	if !ok {
		return nil, fmt.Errorf("%s does not implement Service", d.Type)
	}
	return svc, nil
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func (m *Manager) record(t reflect.Type, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, t)
		return
	}
	m.errs[t] = err
}

func (m *Manager) setPartial() {
	m.mu.Lock()
	m.partial = true
	m.mu.Unlock()
}
