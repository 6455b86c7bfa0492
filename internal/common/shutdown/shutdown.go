// Package shutdown coordinates graceful shutdown: HTTP servers are drained
// first, then cleanup hooks run in reverse registration order.
package shutdown

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type shutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

type serverEntry struct {
	Name   string
	Server *http.Server
}

// ShutdownManager coordinates graceful shutdown of servers and cleanup hooks
type ShutdownManager struct {
	logger  *zap.Logger
	timeout time.Duration
	hooks   []shutdownHook
	servers []*serverEntry
	mu      sync.Mutex
}

// NewShutdownManager creates a ShutdownManager whose whole sequence must
// finish within timeout
func NewShutdownManager(logger *zap.Logger, timeout time.Duration) *ShutdownManager {
	return &ShutdownManager{
		logger:  logger.With(zap.String("component", "shutdown")),
		timeout: timeout,
	}
}

// RegisterHook adds a cleanup hook. Hooks run LIFO.
func (sm *ShutdownManager) RegisterHook(name string, fn func(ctx context.Context) error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{Name: name, Fn: fn})
	sm.logger.Debug("Registered shutdown hook", zap.String("hook", name))
}

// RegisterServer adds an HTTP server to be drained before hooks run
func (sm *ShutdownManager) RegisterServer(name string, server *http.Server) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.servers = append(sm.servers, &serverEntry{Name: name, Server: server})
}

// GracefulServe registers the server and starts it in the background. It
// returns an error only if the server fails right away (port in use, etc).
func (sm *ShutdownManager) GracefulServe(name string, server *http.Server) error {
	sm.RegisterServer(name, server)

	errCh := make(chan error, 1)
	go func() {
		sm.logger.Info("Starting server",
			zap.String("server", name),
			zap.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server %s failed: %w", name, err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	sm.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	sm.Shutdown()
}

// Shutdown drains all servers concurrently and then runs the hooks,
// bounded by the manager's timeout.
func (sm *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	sm.mu.Lock()
	servers := append([]*serverEntry(nil), sm.servers...)
	hooks := append([]shutdownHook(nil), sm.hooks...)
	sm.mu.Unlock()

	sm.shutdownServers(ctx, servers)
	sm.executeHooks(ctx, hooks)

	sm.logger.Info("Graceful shutdown complete")
}

func (sm *ShutdownManager) shutdownServers(ctx context.Context, servers []*serverEntry) {
	if len(servers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, entry := range servers {
		wg.Add(1)
		go func(e *serverEntry) {
			defer wg.Done()
			if err := e.Server.Shutdown(ctx); err != nil {
				sm.logger.Error("Server shutdown error",
					zap.String("server", e.Name),
					zap.Error(err),
				)
				return
			}
			sm.logger.Info("Server shut down", zap.String("server", e.Name))
		}(entry)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Server shutdown timed out, some connections may be dropped")
	}
}

func (sm *ShutdownManager) executeHooks(ctx context.Context, hooks []shutdownHook) {
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]

		if ctx.Err() != nil {
			sm.logger.Warn("Shutdown timeout reached, skipping remaining hooks",
				zap.String("skipped_hook", hook.Name),
				zap.Int("remaining", i+1),
			)
			return
		}

		start := time.Now()
		if err := hook.Fn(ctx); err != nil {
			sm.logger.Error("Shutdown hook failed",
				zap.String("hook", hook.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		sm.logger.Debug("Shutdown hook completed",
			zap.String("hook", hook.Name),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
