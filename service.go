package winvault

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// State is the lifecycle state of a [Service].
type State int

const (
	Uninitialized State = iota
	Initialized
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case ShutDown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// StateChange describes a single lifecycle transition.
type StateChange struct {
	Service string
	From    State
	To      State
	At      time.Time
}

// StateListener receives state changes. Listeners run synchronously on the
// goroutine that performed the transition and must not block.
type StateListener func(StateChange)

// Service is a long-lived component managed by a [Manager].
type Service interface {
	Name() string
	IsInitialized() bool

	// Subscribe registers a listener for state changes and returns a function
	// that removes it.
	Subscribe(l StateListener) (unsubscribe func())

	// Initialize moves the service from Uninitialized to Initialized. Calling
	// it on an initialized service is a no-op.
	Initialize(ctx context.Context) error

	// Shutdown moves the service from Initialized to ShutDown. Calling it on
	// a service that is not initialized is a no-op.
	Shutdown(ctx context.Context) error
}

var serviceType = reflect.TypeOf((*Service)(nil)).Elem()

// Base implements the state machine shared by all services. Embed a *Base
// and call [Base.Start] and [Base.Stop] from Initialize and Shutdown.
type Base struct {
	name string

	// op serializes Start and Stop; mu guards the fields below and is never
	// held while a start or stop function runs.
	op sync.Mutex

	mu        sync.Mutex
	state     State
	listeners map[uint64]StateListener
	nextID    uint64
}

// NewBase returns an uninitialized Base for the named service.
func NewBase(name string) *Base {
	return &Base{name: name, listeners: make(map[uint64]StateListener)}
}

func (b *Base) Name() string { return b.name }

// State returns the current lifecycle state. It does not wait for a start
// or stop in progress.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) IsInitialized() bool { return b.State() == Initialized }

func (b *Base) Subscribe(l StateListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = l

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Start runs fn and marks the service initialized. It is a no-op when the
// service is already initialized and fails with [ErrServiceStopped] once it
// has been shut down. If fn fails the state is left unchanged. The state
// stays Uninitialized while fn runs.
func (b *Base) Start(ctx context.Context, fn func(context.Context) error) error {
	b.op.Lock()
	defer b.op.Unlock()

	switch b.State() {
	case Initialized:
		return nil
	case ShutDown:
		return fmt.Errorf("%w: %s", ErrServiceStopped, b.name)
	}

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	b.transition(Uninitialized, Initialized)
	return nil
}

// Stop runs fn and marks the service shut down. It is a no-op unless the
// service is initialized. If fn fails the service stays initialized.
func (b *Base) Stop(ctx context.Context, fn func(context.Context) error) error {
	// A service that is still starting is not initialized; do not wait for it.
	if b.State() != Initialized {
		return nil
	}

	b.op.Lock()
	defer b.op.Unlock()

	if b.State() != Initialized {
		return nil
	}
	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	b.transition(Initialized, ShutDown)
	return nil
}

// transition commits the new state and notifies listeners outside b.mu.
func (b *Base) transition(from, to State) {
	b.mu.Lock()
	b.state = to
	listeners := make([]StateListener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	change := StateChange{Service: b.name, From: from, To: to, At: time.Now().UTC()}
	for _, l := range listeners {
		l(change)
	}
}

// FuncService adapts a pair of functions to the [Service] interface. Either
// function may be nil.
type FuncService struct {
	*Base
	start func(context.Context) error
	stop  func(context.Context) error
}

// NewFuncService returns a [Service] that runs start on Initialize and stop
// on Shutdown.
func NewFuncService(name string, start, stop func(context.Context) error) *FuncService {
	return &FuncService{Base: NewBase(name), start: start, stop: stop}
}

func (s *FuncService) Initialize(ctx context.Context) error { return s.Start(ctx, s.start) }

func (s *FuncService) Shutdown(ctx context.Context) error { return s.Stop(ctx, s.stop) }
