package winvault

import (
	"fmt"
	"reflect"
)

func (c *container) Resolve(t reflect.Type) (reflect.Value, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.built {
		return reflect.Value{}, ErrNotBuilt
	}
	return c.dependency(c.canonical(t), nil)
}

// Resolve returns the value registered for T from a container, scope or
// manager:
//
//	store, err := winvault.Resolve[*settings.Store](c)
func Resolve[T any](r Resolver) (T, error) {
	var zero T
	t := typeOf[T]()

	val, err := r.Resolve(t)
	if err != nil {
		return zero, err
	}
	out, ok := val.Interface().(T)
	if !ok {
		return zero, fmt.Errorf("cannot convert %s to %s", val.Type(), t)
	}
	return out, nil
}

// MustResolve is like [Resolve] but panics on error. Use it only where a
// missing provider is a programming error, such as after a successful Build.
func MustResolve[T any](r Resolver) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// dependency returns the instance for the canonical type t. Singletons come
// from the cache, scoped values from sc and transient values are built on
// the spot. Callers hold c.mu for reading and, when sc is non-nil, sc.mu.
func (c *container) dependency(t reflect.Type, sc *scope) (reflect.Value, error) {
	if inst, ok := c.singletons[t]; ok {
		return inst, nil
	}

	p, ok := c.providers[t]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrProviderNotFound, t)
	}
	if p.lifetime == Scoped {
		if sc == nil {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrScopeRequired, t)
		}
		return sc.resolveLocked(p)
	}
	return c.construct(p, sc)
}

// construct calls the provider's constructor with its parameters resolved
// through [container.dependency]. A supplied provider returns its value.
func (c *container) construct(p *provider, sc *scope) (reflect.Value, error) {
	if p.supplied {
		return p.instance, nil
	}

	fnType := p.constructor.Type()
	args := make([]reflect.Value, fnType.NumIn())
	for i := range args {
		depType := c.canonical(fnType.In(i))
		inst, err := c.dependency(depType, sc)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("resolving %s for %s: %w", depType, p.outType, err)
		}
		args[i] = inst
	}

	results := p.constructor.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return reflect.Value{}, fmt.Errorf("constructing %s: %w", p.outType, results[1].Interface().(error))
	}
	return results[0], nil
}
