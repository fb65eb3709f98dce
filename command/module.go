package command

import (
	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/logging"
)

// Module registers the built-in catalog, a shared [Runner] configured with
// opts and a scoped [Session].
func Module(opts ...RunnerOption) winvault.Module {
	return winvault.NewModule("command", func(c winvault.Container) error {
		if err := c.Register(DefaultCatalog); err != nil {
			return err
		}
		if err := c.Register(func(l *logging.Logger) (*Runner, error) {
			return NewRunner(append([]RunnerOption{WithLogger(l.Named("command"))}, opts...)...)
		}); err != nil {
			return err
		}
		return c.Register(NewSession, winvault.WithLifetime(winvault.Scoped))
	})
}
