package winvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Resolver is anything that can produce a value for a type: a [Container],
// a [Scope] or a [Manager].
type Resolver interface {
	Resolve(t reflect.Type) (reflect.Value, error)
}

// Descriptor is the registry's view of one provider.
type Descriptor struct {
	// Type is the provider's return type.
	Type reflect.Type

	// Capabilities are extra interface types resolving to the same instance.
	Capabilities []reflect.Type

	Lifetime       Lifetime
	AutoInitialize bool

	// Requires lists constructor parameters and explicit ordering
	// dependencies.
	Requires []reflect.Type

	// Order is the position in the initialization sequence; -1 before Build.
	Order int
}

// Container defines the interface for the dependency injection container.
// Use [New] to create an instance.
type Container interface {
	Resolver

	// Register adds a constructor to the container. The constructor must be a
	// function with the signature func(deps...) T or func(deps...) (T, error).
	// Dependencies are expressed as function parameters and resolved by type;
	// each parameter is also an ordering edge for the lifecycle.
	Register(constructor interface{}, opts ...Option) error

	// Supply registers an already constructed value as a singleton.
	Supply(value interface{}, opts ...Option) error

	// Install registers each module once. Installing a module whose name was
	// already installed is a no-op.
	Install(mods ...Module) error

	// Build validates the full dependency graph, detecting missing providers,
	// lifetime mismatches and circular dependencies, computes the
	// initialization order and eagerly instantiates all [Singleton]
	// providers. After Build succeeds no further registrations are accepted.
	Build() error

	// Descriptors returns every provider, sorted by initialization order once
	// built and by registration order before.
	Descriptors() []Descriptor

	// Descriptor returns the provider registered for t or for a capability t.
	Descriptor(t reflect.Type) (Descriptor, bool)

	// LifetimeOf returns the lifetime registered for t, [Singleton] when t is
	// unknown.
	LifetimeOf(t reflect.Type) Lifetime

	// AutoInitialize reports whether t participates in bulk startup.
	AutoInitialize(t reflect.Type) bool

	// NewScope opens a scope for resolving [Scoped] providers.
	NewScope() (Scope, error)

	// Shutdown closes all singleton providers that implement [io.Closer] but
	// not [Service], in reverse dependency order. Services are stopped by the
	// [Manager]. The context controls the overall deadline; if it expires,
	// remaining closers are skipped and the context error is included in the
	// result. Subsequent calls return [ErrAlreadyShutdown].
	Shutdown(ctx context.Context) error
}

type container struct {
	mu sync.RWMutex

	providers  map[reflect.Type]*provider
	aliases    map[reflect.Type]reflect.Type
	sequence   []reflect.Type
	installed  map[string]struct{}
	singletons map[reflect.Type]reflect.Value

	// closers holds singletons that implement io.Closer, recorded in
	// dependency order during Build. Shutdown iterates them in reverse.
	closers []io.Closer

	built    bool
	shutdown bool
}

// New creates an empty [Container] ready for registration.
func New() Container {
	return &container{
		providers:  make(map[reflect.Type]*provider),
		aliases:    make(map[reflect.Type]reflect.Type),
		installed:  make(map[string]struct{}),
		singletons: make(map[reflect.Type]reflect.Value),
	}
}

var errType = reflect.TypeOf((*error)(nil)).Elem()
var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

func (c *container) Register(constructor interface{}, opts ...Option) error {
	if constructor == nil {
		return errors.New("constructor must be a function")
	}
	val := reflect.ValueOf(constructor)
	typ := val.Type()

	if typ.Kind() != reflect.Func {
		return errors.New("constructor must be a function")
	}

	if typ.NumOut() == 0 || typ.NumOut() > 2 {
		return errors.New("constructor must return (T) or (T, error)")
	}

	if typ.NumOut() == 2 && !typ.Out(1).Implements(errType) {
		return errors.New("second return value must implement error")
	}

	for i := 0; i < typ.NumIn(); i++ {
		if typ.In(i) == ctxType {
			return fmt.Errorf("constructor for %s: context.Context is not injectable", typ.Out(0))
		}
	}

	return c.add(&provider{
		constructor: val,
		lifetime:    Singleton,
		outType:     typ.Out(0),
	}, opts)
}

func (c *container) Supply(value interface{}, opts ...Option) error {
	if value == nil {
		return errors.New("supplied value cannot be nil")
	}
	p := &provider{
		instance: reflect.ValueOf(value),
		supplied: true,
		lifetime: Singleton,
		outType:  reflect.TypeOf(value),
	}
	return c.add(p, opts)
}

func (c *container) add(p *provider, opts []Option) error {
	p.order = -1
	for _, opt := range opts {
		opt(p)
	}

	if p.supplied && p.lifetime != Singleton {
		return fmt.Errorf("%w: supplied %s must be a singleton", ErrLifetimeMismatch, p.outType)
	}
	if p.autoInit {
		if p.lifetime != Singleton {
			return fmt.Errorf("%w: auto-initialized %s must be a singleton", ErrLifetimeMismatch, p.outType)
		}
		if !p.outType.Implements(serviceType) {
			return fmt.Errorf("auto-initialized %s does not implement Service", p.outType)
		}
	}
	for _, capType := range p.capabilities {
		if capType.Kind() != reflect.Interface {
			return fmt.Errorf("capability %s of %s is not an interface", capType, p.outType)
		}
		if !p.outType.Implements(capType) {
			return fmt.Errorf("%s does not implement capability %s", p.outType, capType)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return ErrAlreadyBuilt
	}

	// Re-registering a type keeps the first provider.
	if _, ok := c.providers[p.outType]; ok {
		return nil
	}
	if _, ok := c.aliases[p.outType]; ok {
		return fmt.Errorf("%w: %s is already a capability", ErrDuplicateProvider, p.outType)
	}
	for _, capType := range p.capabilities {
		if c.known(capType) {
			return fmt.Errorf("%w: capability %s", ErrDuplicateProvider, capType)
		}
	}

	p.seq = len(c.sequence)
	c.providers[p.outType] = p
	c.sequence = append(c.sequence, p.outType)
	for _, capType := range p.capabilities {
		c.aliases[capType] = p.outType
	}
	return nil
}

func (c *container) known(t reflect.Type) bool {
	if _, ok := c.providers[t]; ok {
		return true
	}
	_, ok := c.aliases[t]
	return ok
}

func (c *container) Install(mods ...Module) error {
	for _, m := range mods {
		name := m.Name()

		c.mu.Lock()
		_, done := c.installed[name]
		if !done {
			c.installed[name] = struct{}{}
		}
		c.mu.Unlock()

		if done {
			continue
		}
		if err := m.Register(c); err != nil {
			return fmt.Errorf("module %q: %w", name, err)
		}
	}
	return nil
}

// canonical maps a capability type to the concrete provider type.
func (c *container) canonical(t reflect.Type) reflect.Type {
	if target, ok := c.aliases[t]; ok {
		return target
	}
	return t
}

func (c *container) lookup(t reflect.Type) (*provider, bool) {
	p, ok := c.providers[c.canonical(t)]
	return p, ok
}

func (c *container) Descriptors() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, 0, len(c.sequence))
	for _, t := range c.sequence {
		out = append(out, c.providers[t].descriptor())
	}
	if c.built {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	}
	return out
}

func (c *container) Descriptor(t reflect.Type) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.lookup(t)
	if !ok {
		return Descriptor{}, false
	}
	return p.descriptor(), true
}

func (c *container) LifetimeOf(t reflect.Type) Lifetime {
	if d, ok := c.Descriptor(t); ok {
		return d.Lifetime
	}
	return Singleton
}

func (c *container) AutoInitialize(t reflect.Type) bool {
	d, ok := c.Descriptor(t)
	return ok && d.AutoInitialize
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

type buildState int

const (
	unvisited buildState = iota
	visiting
	visited
)

func (c *container) Build() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return ErrAlreadyBuilt
	}

	states := make(map[reflect.Type]buildState)
	next := 0

	for _, t := range c.sequence {
		if err := c.buildResolve(t, states, nil, &next); err != nil {
			c.resetBuild()
			return err
		}
	}

	c.built = true
	return nil
}

// resetBuild discards the partial results of a failed Build so that a later
// Build starts from the registrations alone. c.mu must be held.
func (c *container) resetBuild() {
	c.singletons = make(map[reflect.Type]reflect.Value)
	c.closers = nil
	for _, p := range c.providers {
		p.order = -1
	}
}

// buildResolve walks the dependency graph depth-first using a local state map
// and stack. Each provider is numbered in post-order, so every dependency
// receives a lower order than its dependents. Singletons are instantiated and
// cached; scoped and transient providers are only validated.
func (c *container) buildResolve(t reflect.Type, states map[reflect.Type]buildState, stack []reflect.Type, next *int) error {
	t = c.canonical(t)

	switch states[t] {
	case visiting:
		return c.circularError(t, stack)
	case visited:
		return nil
	}

	p, ok := c.providers[t]
	if !ok {
		if len(stack) > 0 {
			return fmt.Errorf("%w: %s (required by %s)", ErrProviderNotFound, t, stack[len(stack)-1])
		}
		return fmt.Errorf("%w: %s", ErrProviderNotFound, t)
	}

	states[t] = visiting
	stack = append(stack, t)

	for _, dep := range p.deps() {
		if err := c.buildResolve(dep, states, stack, next); err != nil {
			return err
		}
		if p.lifetime == Singleton && c.providers[c.canonical(dep)].lifetime == Scoped {
			return fmt.Errorf("%w: singleton %s depends on scoped %s", ErrLifetimeMismatch, t, dep)
		}
	}

	if p.lifetime == Singleton {
		instance := p.instance
		if !p.supplied {
			var err error
			instance, err = c.construct(p, nil)
			if err != nil {
				return err
			}
		}
		c.singletons[t] = instance

		if instance.CanInterface() {
			v := instance.Interface()
			_, isService := v.(Service)
			if closer, ok := v.(io.Closer); ok && !isService {
				c.closers = append(c.closers, closer)
			}
		}
	}

	p.order = *next
	*next++
	states[t] = visited
	return nil
}

func (c *container) circularError(t reflect.Type, stack []reflect.Type) error {
	start := 0
	for i, s := range stack {
		if s == t {
			start = i
			break
		}
	}

	chain := make([]string, 0, len(stack)-start+1)
	for _, s := range stack[start:] {
		chain = append(chain, s.String())
	}
	chain = append(chain, t.String())

	return fmt.Errorf("%w: %s", ErrCircularDependency, strings.Join(chain, " -> "))
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func (c *container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.built {
		return ErrNotBuilt
	}

	if c.shutdown {
		return ErrAlreadyShutdown
	}

	c.shutdown = true

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
