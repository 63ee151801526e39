package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/metrics"
	"github.com/Tyrowin/gorelay/internal/relay"
)

// App assembles the relay engine, the transport listener, the static responder
// and the optional metrics listener, and owns their lifecycle.
type App struct {
	cfg     *Config
	logger  *zap.Logger
	engine  *relay.Engine
	metrics *metrics.Collector

	listener *Listener
	static   *StaticResponder

	httpServer    *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc
	errs          chan error
}

// NewApp wires every component from cfg. Nothing is started until Start or Serve.
func NewApp(cfg *Config, logger *zap.Logger) *App {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := metrics.NewCollector()
	engine := relay.NewEngine(logger.Named("relay"), collector)

	return &App{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		metrics:  collector,
		listener: NewListener(cfg, engine, logger.Named("transport")),
		static: NewStaticResponder(cfg.StaticDir, DefaultStaticRoutes(), DefaultStaticFallback(),
			logger.Named("static")),
		errs: make(chan error, 2),
	}
}

// Engine returns the relay engine.
func (a *App) Engine() *relay.Engine {
	return a.engine
}

// Handler returns the handler for the relay port.
func (a *App) Handler() http.Handler {
	return SetupRoutes(a.listener, a.static)
}

// Errors reports serve failures after startup.
func (a *App) Errors() <-chan error {
	return a.errs
}

// Start binds the relay port (and the metrics port when configured) and begins
// serving. If any bind fails nothing is served.
func (a *App) Start() error {
	ln, err := Listen(a.cfg.Addr())
	if err != nil {
		return err
	}

	var metricsLn net.Listener
	if a.cfg.MetricsAddr != "" {
		metricsLn, err = Listen(a.cfg.MetricsAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
	}

	a.serve(ln, metricsLn)
	return nil
}

// Serve starts the engine and serves the relay port on an existing listener.
func (a *App) Serve(ln net.Listener) {
	a.serve(ln, nil)
}

func (a *App) serve(ln, metricsLn net.Listener) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.engine.Run(ctx)

	a.httpServer = CreateServer(ln.Addr().String(), a.Handler())
	go func() {
		if err := StartServer(a.httpServer, ln, a.logger); err != nil {
			a.errs <- err
		}
	}()

	if metricsLn == nil {
		return
	}
	a.metricsServer = CreateServer(metricsLn.Addr().String(), SetupMetricsRoutes(a.metrics.Handler()))
	go func() {
		if err := StartServer(a.metricsServer, metricsLn, a.logger); err != nil {
			a.errs <- err
		}
	}()
}

// Shutdown stops accepting requests, closes every relay connection and waits
// for connection goroutines, each step bounded by the configured timeout.
func (a *App) Shutdown() error {
	timeout := a.cfg.ShutdownTimeout
	var errs []error

	if a.httpServer != nil {
		if err := ShutdownServer(a.httpServer, timeout, a.logger); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.engine.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}
	if err := a.listener.Wait(timeout); err != nil {
		errs = append(errs, err)
	}
	if a.metricsServer != nil {
		if err := ShutdownServer(a.metricsServer, timeout, a.logger); err != nil {
			errs = append(errs, err)
		}
	}
	if a.cancel != nil {
		a.cancel()
	}

	return errors.Join(errs...)
}
