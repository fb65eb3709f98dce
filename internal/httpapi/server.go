package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/logging"
	"github.com/ARTM2000/winvault/metrics"
	"github.com/ARTM2000/winvault/sysinfo"
	"go.uber.org/zap"
)

// Server runs the status router while it is initialized.
type Server struct {
	*winvault.Base

	addr    string
	handler http.Handler
	log     *zap.Logger

	srv  *http.Server
	ln   net.Listener
	done chan error
}

// NewServer returns a server for handler listening on addr.
func NewServer(addr string, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Base: winvault.NewBase("status-server"), addr: addr, handler: handler, log: log}
}

// Addr returns the bound address once initialized, otherwise the
// configured one.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Initialize binds the listener before returning so a port conflict fails
// the service instead of a background goroutine.
func (s *Server) Initialize(ctx context.Context) error {
	return s.Start(ctx, func(ctx context.Context) error {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", s.addr)
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		s.ln = ln
		s.srv = &http.Server{
			Handler:           s.handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		s.done = make(chan error, 1)

		go func() {
			err := s.srv.Serve(ln)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			s.done <- err
		}()

		s.log.Info("status server listening", zap.String("addr", ln.Addr().String()))
		return nil
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Stop(ctx, func(ctx context.Context) error {
		if err := s.srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		if err := <-s.done; err != nil {
			s.log.Warn("status server exited with error", zap.Error(err))
		}
		s.log.Info("status server stopped")
		return nil
	})
}

// Module registers the status server on addr. It expects a [StatusSource]
// capability, the system sampler and the metrics in the container.
func Module(addr string) winvault.Module {
	return winvault.NewModule("httpapi", func(c winvault.Container) error {
		return c.Register(func(status StatusSource, sampler *sysinfo.Sampler, m *metrics.Metrics, l *logging.Logger) *Server {
			log := l.Named("httpapi")
			return NewServer(addr, NewRouter(status, sampler, m, log), log)
		}, winvault.WithAutoInitialize())
	})
}
