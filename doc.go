// Package winvault provides the service runtime of the WinVault system
// utility: a reflection-based dependency injection container and a lifecycle
// manager that starts services in dependency order and stops them in
// reverse.
//
// Register constructors with the container, optionally grouped in a
// [Module]. Every constructor parameter is both an injected dependency and an
// ordering edge; [DependsOn] adds edges that are not parameters. Then hand
// the container to a [Manager]:
//
//	c := winvault.New()
//	c.Install(
//		settings.Module(store),
//		logging.Module(logger, winvault.DependsOn[*settings.Service]()),
//	)
//
//	m := winvault.NewManager(c, winvault.WithLogger(logger.Zap()))
//	if err := m.InitializeAll(ctx); err != nil {
//		return err
//	}
//	defer m.ShutdownAll(context.Background())
//
//	svc, err := winvault.Get[*settings.Service](m)
//
// # Lifetimes
//
// [Singleton] (default): one shared instance for the lifetime of the
// container. Only singletons take part in the lifecycle.
//
// [Scoped]: one instance per [Scope]:
//
//	sc, _ := c.NewScope()
//	defer sc.Close()
//	run, _ := winvault.Resolve[*command.Session](sc)
//
// [Transient]: a fresh instance on every [Container.Resolve] call.
//
// # Ordering
//
// [Container.Build] sorts providers topologically with three-color marking.
// A cycle is reported as [ErrCircularDependency] with the full chain instead
// of overflowing the stack.
package winvault
