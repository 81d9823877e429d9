package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "PriceFusion/pkg/http"
	applogger "PriceFusion/pkg/logger"
)

// Runner is a background component started with the application and
// stopped in reverse order on shutdown.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RunnerFuncs adapts a pair of functions to Runner.
type RunnerFuncs struct {
	StartFn func(ctx context.Context) error
	StopFn  func(ctx context.Context) error
}

func (r RunnerFuncs) Start(ctx context.Context) error {
	if r.StartFn == nil {
		return nil
	}
	return r.StartFn(ctx)
}

func (r RunnerFuncs) Stop(ctx context.Context) error {
	if r.StopFn == nil {
		return nil
	}
	return r.StopFn(ctx)
}

type namedRunner struct {
	name string
	r    Runner
}

type namedCloser struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	log             *applogger.Logger
	httpServer      *xhttp.Server
	runners         []namedRunner
	closers         []namedCloser
	shutdownTimeout time.Duration
}

type Option func(*App)

// WithRunner adds a background component. Runners start in the order given.
func WithRunner(name string, r Runner) Option {
	return func(a *App) {
		if r != nil {
			a.runners = append(a.runners, namedRunner{name: name, r: r})
		}
	}
}

// WithCloser registers a resource released after every runner stopped.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, namedCloser{name: name, fn: fn})
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New creates a new App around the HTTP server.
func New(log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{log: log.With("app"), httpServer: httpServer, shutdownTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts everything and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts everything and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started, err := a.start(runCtx)
	if err != nil {
		a.log.Error("startup failed", applogger.Error(err))
		cancel()
		a.shutdown(started)
		return err
	}
	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			cancel()
			a.shutdown(started)
			return err
		}
	}
	a.log.Info("application started", applogger.Int("components", len(started)))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	a.shutdown(started)
	return nil
}

func (a *App) start(ctx context.Context) ([]namedRunner, error) {
	started := make([]namedRunner, 0, len(a.runners))
	for _, nr := range a.runners {
		if err := nr.r.Start(ctx); err != nil {
			return started, errors.Join(errors.New("start "+nr.name), err)
		}
		a.log.Info("component started", applogger.String("component", nr.name))
		started = append(started, nr)
	}
	return started, nil
}

// shutdown stops the HTTP server first so no new work arrives, then the
// runners in reverse start order, then the closers.
func (a *App) shutdown(started []namedRunner) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	for i := len(started) - 1; i >= 0; i-- {
		nr := started[i]
		if err := nr.r.Stop(ctx); err != nil {
			a.log.Warn("component stop error", applogger.String("component", nr.name), applogger.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
