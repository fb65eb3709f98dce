package settings

import (
	"context"

	"github.com/ARTM2000/winvault"
	"go.uber.org/zap"
)

// Service ties a [Store] to the application lifecycle. Initialize starts
// the file watcher; Shutdown stops it and flushes the store.
type Service struct {
	*winvault.Base
	Store *Store

	watcher *Watcher
}

// NewService returns the lifecycle adapter for s.
func NewService(s *Store) *Service {
	return &Service{Base: winvault.NewBase("settings"), Store: s}
}

func (svc *Service) Initialize(ctx context.Context) error {
	return svc.Start(ctx, func(context.Context) error {
		w, err := svc.Store.Watch(context.Background())
		if err != nil {
			// Settings still work without live reload.
			svc.Store.logger().Warn("settings watcher unavailable", zap.Error(err))
			return nil
		}
		svc.watcher = w
		return nil
	})
}

func (svc *Service) Shutdown(ctx context.Context) error {
	return svc.Stop(ctx, func(context.Context) error {
		if svc.watcher != nil {
			_ = svc.watcher.Close()
			svc.watcher = nil
		}
		return svc.Store.Flush()
	})
}

// Module supplies s to the container together with its lifecycle adapter.
func Module(s *Store) winvault.Module {
	return winvault.NewModule("settings", func(c winvault.Container) error {
		if err := c.Supply(s); err != nil {
			return err
		}
		return c.Register(NewService, winvault.WithAutoInitialize())
	})
}
