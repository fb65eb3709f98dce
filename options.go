package winvault

import (
	"fmt"
	"reflect"
)

// provider holds the metadata for a single registered constructor or
// supplied value.
type provider struct {
	constructor reflect.Value
	instance    reflect.Value
	supplied    bool

	lifetime     Lifetime
	outType      reflect.Type
	capabilities []reflect.Type
	requires     []reflect.Type
	autoInit     bool

	// seq is the registration index; order is the position in the
	// topological sort computed by Build, -1 until then.
	seq   int
	order int
}

// deps returns the constructor parameter types followed by the explicit
// ordering requirements.
func (p *provider) deps() []reflect.Type {
	var out []reflect.Type
	if p.constructor.IsValid() {
		fnType := p.constructor.Type()
		for i := 0; i < fnType.NumIn(); i++ {
			out = append(out, fnType.In(i))
		}
	}
	return append(out, p.requires...)
}

func (p *provider) descriptor() Descriptor {
	return Descriptor{
		Type:           p.outType,
		Capabilities:   append([]reflect.Type(nil), p.capabilities...),
		Lifetime:       p.lifetime,
		AutoInitialize: p.autoInit,
		Requires:       p.deps(),
		Order:          p.order,
	}
}

// Lifetime says how often a provider's constructor runs.
type Lifetime int

const (
	// Singleton providers are built once, in dependency order, by
	// [Container.Build]. Only singletons take part in the service lifecycle.
	Singleton Lifetime = iota

	// Scoped providers are built once per [Scope]. Singletons may not depend
	// on them.
	Scoped

	// Transient providers are built on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	}
	return fmt.Sprintf("Lifetime(%d)", int(l))
}

// Option configures a provider during registration.
type Option func(*provider)

// WithLifetime sets the [Lifetime] of the provider. The default is
// [Singleton].
func WithLifetime(l Lifetime) Option {
	return func(p *provider) {
		p.lifetime = l
	}
}

// WithAutoInitialize marks a singleton [Service] for bulk startup by
// [Manager.InitializeAll]. Without it the service is only built.
func WithAutoInitialize() Option {
	return func(p *provider) {
		p.autoInit = true
	}
}

// WithCapabilities exposes the provider under additional interface types.
// Resolving any of them yields the same instance.
func WithCapabilities(types ...reflect.Type) Option {
	return func(p *provider) {
		p.capabilities = append(p.capabilities, types...)
	}
}

// As is the generic form of [WithCapabilities]:
//
//	c.Register(settings.NewService, winvault.As[settings.Reader]())
func As[I any]() Option {
	return WithCapabilities(typeOf[I]())
}

// WithRequires declares ordering dependencies that are not constructor
// parameters. The required providers are initialized first and shut down
// last.
func WithRequires(types ...reflect.Type) Option {
	return func(p *provider) {
		p.requires = append(p.requires, types...)
	}
}

// DependsOn is the generic form of [WithRequires].
func DependsOn[T any]() Option {
	return WithRequires(typeOf[T]())
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
