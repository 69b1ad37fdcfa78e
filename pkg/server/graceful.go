package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/icsrange/netsim/pkg/logging"
)

// ReloadFunc is called when a configuration reload is requested
type ReloadFunc func() error

// StopFunc is called before the process exits on a shutdown signal
type StopFunc func()

// GracefulServer wraps an HTTP server with signal-driven lifecycle
// management. SIGINT and SIGTERM drain connections and exit, SIGHUP
// triggers a configuration reload.
type GracefulServer struct {
	server       *http.Server
	logger       logging.Logger
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	mu       sync.RWMutex
	reloadFn ReloadFunc
	stopFn   StopFunc
}

// NewGracefulServer creates a graceful HTTP server on addr
func NewGracefulServer(addr string, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GracefulServer{
		server: &http.Server{
			Addr:           addr,
			Handler:        handler,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
		logger:     logger.With(logging.Component("http-server")),
		shutdownCh: make(chan struct{}),
	}
}

// Start runs the server and blocks until it is shut down
func (gs *GracefulServer) Start() error {
	go gs.handleSignals()

	gs.logger.Info("http server starting", logging.Listener(gs.server.Addr))
	if err := gs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the server
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("initiating graceful shutdown",
			logging.Duration("timeout", timeout))

		if shutdownErr := gs.server.Shutdown(ctx); shutdownErr != nil {
			err = shutdownErr
			gs.logger.Error("shutdown failed", logging.Error(shutdownErr))
		}

		gs.mu.RLock()
		stopFn := gs.stopFn
		gs.mu.RUnlock()
		if stopFn != nil {
			stopFn()
		}
	})
	return err
}

// IsShuttingDown reports whether shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown begins
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetReloadFunc sets the function invoked on SIGHUP
func (gs *GracefulServer) SetReloadFunc(fn ReloadFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.reloadFn = fn
}

// SetStopFunc sets the function invoked after the HTTP server drains
// during shutdown, used to stop the gateway listeners
func (gs *GracefulServer) SetStopFunc(fn StopFunc) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.stopFn = fn
}

// Reload triggers a configuration reload
func (gs *GracefulServer) Reload() error {
	gs.mu.RLock()
	reloadFn := gs.reloadFn
	gs.mu.RUnlock()

	if reloadFn == nil {
		gs.logger.Warn("reload requested but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		gs.logger.Error("configuration reload failed", logging.Error(err))
		return err
	}
	gs.logger.Info("configuration reload complete")
	return nil
}

func (gs *GracefulServer) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			gs.logger.Info("shutdown signal received",
				logging.String("signal", sig.String()))
			if err := gs.Shutdown(30 * time.Second); err != nil {
				os.Exit(1)
			}
			return

		case syscall.SIGHUP:
			gs.logger.Info("reload signal received")
			if err := gs.Reload(); err != nil {
				gs.logger.Warn("reload failed, keeping previous configuration")
			}
		}
	}
}
