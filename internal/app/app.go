// Package app assembles the WinVault runtime: it prepares the data
// directory, opens the settings store and logger, installs every module and
// drives the lifecycle manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ARTM2000/winvault"
	"github.com/ARTM2000/winvault/command"
	"github.com/ARTM2000/winvault/diagnostics"
	"github.com/ARTM2000/winvault/internal/config"
	"github.com/ARTM2000/winvault/internal/httpapi"
	"github.com/ARTM2000/winvault/logging"
	"github.com/ARTM2000/winvault/metrics"
	"github.com/ARTM2000/winvault/settings"
	"github.com/ARTM2000/winvault/sysinfo"
	"github.com/ARTM2000/winvault/telemetry"
	"go.uber.org/zap"
)

// App is one assembled runtime.
type App struct {
	cfg   *config.Config
	paths config.Paths

	store   *settings.Store
	logger  *logging.Logger
	metrics *metrics.Metrics

	container winvault.Container
	manager   *winvault.Manager
}

// New prepares the runtime without starting any service. The settings
// store and logger exist before the container so that every later failure
// can be logged.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	paths := cfg.Paths()
	if err := paths.Ensure(); err != nil {
		return nil, err
	}
	if err := diagnostics.WriteReport(paths.Diagnostics, diagnostics.Collect(ctx, paths.Settings)); err != nil {
		return nil, fmt.Errorf("writing startup report: %w", err)
	}

	store, err := settings.Open(paths.Settings)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Dir:        paths.Logs,
		Console:    cfg.Logging.Console,
		Level:      cfg.Logging.Level,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}, store)
	if err != nil {
		return nil, err
	}
	store.SetLogger(logger.Zap())

	a := &App{
		cfg:       cfg,
		paths:     paths,
		store:     store,
		logger:    logger,
		metrics:   metrics.New(),
		container: winvault.New(),
	}
	a.manager = winvault.NewManager(a.container,
		winvault.WithLogger(logger.Named("lifecycle")),
		winvault.WithObserver(a.metrics),
		winvault.WithInitTimeout(cfg.Lifecycle.InitTimeout),
	)

	if err := a.container.Install(a.modules()...); err != nil {
		logger.ErrorErr(err, "module registration failed")
		return nil, err
	}
	return a, nil
}

func (a *App) modules() []winvault.Module {
	timeout := a.cfg.Command.Timeout
	if secs := a.store.Int(settings.KeyCommandTimeout, 0); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	mods := []winvault.Module{
		settings.Module(a.store),
		logging.Module(a.logger, winvault.DependsOn[*settings.Service]()),
		metrics.Module(a.metrics),
		winvault.NewModule("runtime", func(c winvault.Container) error {
			return c.Supply(a.manager, winvault.As[httpapi.StatusSource]())
		}),
		command.Module(command.WithTimeout(timeout), command.WithEncoding(a.cfg.Command.Encoding)),
		sysinfo.Module(a.cfg.Sampler.Schedule, a.cfg.Sampler.Enabled, sysinfo.WithDiskPath(a.cfg.Sampler.DiskPath)),
	}
	if a.cfg.Telemetry.Enabled {
		mods = append(mods, telemetry.Module(a.paths.Telemetry))
	}
	if a.cfg.Status.Enabled {
		mods = append(mods, httpapi.Module(a.cfg.Status.Addr))
	}
	return mods
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Paths() config.Paths { return a.paths }
func (a *App) Store() *settings.Store { return a.store }
func (a *App) Logger() *logging.Logger { return a.logger }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
func (a *App) Container() winvault.Container { return a.container }
func (a *App) Manager() *winvault.Manager { return a.manager }

// Start initializes every auto-started service once.
func (a *App) Start(ctx context.Context) error {
	a.logger.Information("starting WinVault", zap.String("data_dir", a.paths.Root))
	if err := a.manager.InitializeAll(ctx); err != nil {
		a.logger.ErrorErr(err, "startup aborted")
		return err
	}
	for _, st := range a.manager.Status() {
		if st.Err != nil {
			a.logger.Warning("service unavailable", zap.String("service", st.Name), zap.Error(st.Err))
		}
	}
	return nil
}

// Stop shuts every service down, bounded by the configured shutdown
// timeout.
func (a *App) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Lifecycle.ShutdownTimeout)
	defer cancel()
	if err := a.manager.ShutdownAll(ctx); err != nil {
		a.logger.ErrorErr(err, "shutdown incomplete")
		return err
	}
	return nil
}

// Run starts the runtime, waits for ctx to end and stops it.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}
	<-ctx.Done()
	a.logger.Information("stop requested")
	return a.Stop(context.Background())
}

// Exec runs one command line in a fresh console session. It does not
// require Start.
func (a *App) Exec(ctx context.Context, line string) (command.Result, error) {
	if err := a.container.Build(); err != nil && !errors.Is(err, winvault.ErrAlreadyBuilt) {
		return command.Result{}, err
	}
	sc, err := a.container.NewScope()
	if err != nil {
		return command.Result{}, err
	}
	defer sc.Close()

	session, err := winvault.Resolve[*command.Session](sc)
	if err != nil {
		return command.Result{}, err
	}
	res, err := session.Run(ctx, line)
	if tr, terr := winvault.Resolve[*telemetry.Tracker](a.manager); terr == nil {
		if err := tr.Track(telemetry.EventCommand, line); err != nil {
			a.logger.Debug("telemetry event not recorded", zap.String("event", telemetry.EventCommand), zap.Error(err))
		}
	}
	return res, err
}
