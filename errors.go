package winvault

import "errors"

var (
	// ErrNotBuilt is returned when Resolve is called before Build.
	ErrNotBuilt = errors.New("container not built")

	// ErrAlreadyBuilt is returned when Register or Build is called after the
	// container has already been built.
	ErrAlreadyBuilt = errors.New("container already built")

	// ErrProviderNotFound is returned when no provider is registered for the
	// requested type.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrCircularDependency is returned when the dependency graph contains a
	// cycle. The error message includes the full chain.
	ErrCircularDependency = errors.New("circular dependency detected")

	// ErrDuplicateProvider is returned when a capability is claimed by two
	// providers. Registering the same type twice is a no-op.
	ErrDuplicateProvider = errors.New("duplicate provider")

	// ErrLifetimeMismatch is returned when a singleton depends on a scoped
	// provider, or when an option is incompatible with the chosen lifetime.
	ErrLifetimeMismatch = errors.New("lifetime mismatch")

	// ErrScopeRequired is returned when a scoped provider is resolved from the
	// root container instead of a [Scope].
	ErrScopeRequired = errors.New("scoped provider requires a scope")

	// ErrScopeClosed is returned when a closed [Scope] is used.
	ErrScopeClosed = errors.New("scope closed")

	// ErrAlreadyShutdown is returned by Container.Shutdown on repeated calls
	// and by Manager.InitializeAll once the manager has been shut down.
	ErrAlreadyShutdown = errors.New("already shut down")

	// ErrServiceStopped is returned when a service that has been shut down is
	// asked to initialize again. Services are never resurrected.
	ErrServiceStopped = errors.New("service already shut down")
)
