package winvault

// Module groups the registrations of one feature area. Modules replace
// runtime type discovery: each package exports a Module and the application
// installs the ones it wants.
type Module interface {
	Name() string
	Register(c Container) error
}

// ModuleFunc adapts a registration function to the [Module] interface.
type ModuleFunc struct {
	ID string
	Fn func(c Container) error
}

func (m ModuleFunc) Name() string { return m.ID }

func (m ModuleFunc) Register(c Container) error { return m.Fn(c) }

// NewModule returns a [Module] named name that runs fn on install.
func NewModule(name string, fn func(c Container) error) Module {
	return ModuleFunc{ID: name, Fn: fn}
}
