// Package shutdown coordinates stopping the long-running commands (serve,
// watch, browse): a signal or an explicit call cancels a shared context and
// the registered cleanups run in reverse order.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"gameshelf/internal/utils"
)

// CleanupFunc releases one resource. ctx expires when the shutdown deadline
// passes.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name string
	fn   CleanupFunc
}

// Manager handles graceful shutdown coordination.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanupEntry
	shutdown bool
	reason   string
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
	stopSig  func()
}

// NewManager creates a new shutdown manager.
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first called).
func (m *Manager) RegisterCleanup(name string, fn CleanupFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanupEntry{name: name, fn: fn})
}

// HandleSignals starts shutdown on the first SIGINT or SIGTERM.
func (m *Manager) HandleSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	stop := make(chan struct{})
	m.mu.Lock()
	m.stopSig = func() {
		signal.Stop(ch)
		close(stop)
	}
	m.mu.Unlock()

	go func() {
		select {
		case sig := <-ch:
			m.ShutdownWithReason(sig.String())
		case <-stop:
		}
	}()
}

// Shutdown initiates a graceful shutdown. Only the first call has effect.
func (m *Manager) Shutdown() {
	m.ShutdownWithReason("requested")
}

// ShutdownWithReason is Shutdown with a note for the debug log.
func (m *Manager) ShutdownWithReason(reason string) {
	m.once.Do(func() {
		m.mu.Lock()
		m.shutdown = true
		m.reason = reason
		stop := m.stopSig
		m.stopSig = nil
		m.mu.Unlock()

		utils.Debugf("shutting down: %s", reason)
		m.cancel()
		if stop != nil {
			stop()
		}
	})
}

// runCleanups executes all cleanup functions in LIFO order. A failing
// cleanup is logged and the rest still run.
func (m *Manager) runCleanups(ctx context.Context) {
	m.mu.Lock()
	cleanups := make([]cleanupEntry, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.cleanups = nil
	m.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if err := cleanups[i].fn(ctx); err != nil {
			utils.Warnf("cleanup %s failed: %v", cleanups[i].name, err)
		}
	}
}

// Wait runs the cleanups and returns once they finish or ctx expires.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.runCleanups(ctx)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown returns true if shutdown has been initiated.
func (m *Manager) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Reason returns why shutdown started, or "" while running.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Context returns a context that is cancelled when shutdown is initiated.
func (m *Manager) Context() context.Context {
	return m.ctx
}
