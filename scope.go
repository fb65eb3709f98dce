package winvault

import (
	"errors"
	"io"
	"reflect"
	"sync"
)

// Scope resolves [Scoped] providers once per scope, a logical unit of work
// such as one command execution. Singletons and transients resolve exactly
// as they do on the root container.
type Scope interface {
	Resolver

	// Close closes scoped instances implementing [io.Closer] in reverse
	// creation order. Further use of the scope returns [ErrScopeClosed].
	Close() error
}

type scope struct {
	root *container

	mu        sync.Mutex
	instances map[reflect.Type]reflect.Value
	closers   []io.Closer
	closed    bool
}

func (c *container) NewScope() (Scope, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.built {
		return nil, ErrNotBuilt
	}
	return &scope{root: c, instances: make(map[reflect.Type]reflect.Value)}, nil
}

func (s *scope) Resolve(t reflect.Type) (reflect.Value, error) {
	c := s.root
	c.mu.RLock()
	defer c.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return reflect.Value{}, ErrScopeClosed
	}

	return c.dependency(c.canonical(t), s)
}

// resolveLocked returns the cached scoped instance for p, constructing it on
// first use. s.mu must be held.
func (s *scope) resolveLocked(p *provider) (reflect.Value, error) {
	if inst, ok := s.instances[p.outType]; ok {
		return inst, nil
	}

	inst, err := s.root.construct(p, s)
	if err != nil {
		return reflect.Value{}, err
	}
	s.instances[p.outType] = inst

	if inst.CanInterface() {
		if closer, ok := inst.Interface().(io.Closer); ok {
			s.closers = append(s.closers, closer)
		}
	}
	return inst, nil
}

func (s *scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}
	s.closed = true

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.instances = nil
	s.closers = nil

	return errors.Join(errs...)
}
