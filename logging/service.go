package logging

import (
	"context"

	"github.com/ARTM2000/winvault"
	"go.uber.org/zap"
)

// Service is the lifecycle adapter of a [Logger]. Shutdown flushes and
// closes the log file.
type Service struct {
	*winvault.Base
	Logger *Logger
}

func NewService(l *Logger) *Service {
	return &Service{Base: winvault.NewBase("logging"), Logger: l}
}

func (s *Service) Initialize(ctx context.Context) error {
	return s.Start(ctx, func(context.Context) error {
		s.Logger.Information("logging started",
			zap.String("level", s.Logger.MinimumLevel().String()),
			zap.String("file", s.Logger.File()))
		return nil
	})
}

func (s *Service) Shutdown(ctx context.Context) error {
	return s.Stop(ctx, func(context.Context) error {
		s.Logger.Information("logging stopped")
		return s.Logger.Close()
	})
}

// Module supplies l and its lifecycle adapter. opts are added to the
// adapter's registration, typically a DependsOn on the level store's service.
func Module(l *Logger, opts ...winvault.Option) winvault.Module {
	return winvault.NewModule("logging", func(c winvault.Container) error {
		if err := c.Supply(l); err != nil {
			return err
		}
		return c.Register(NewService, append([]winvault.Option{winvault.WithAutoInitialize()}, opts...)...)
	})
}
