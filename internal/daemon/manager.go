// Package daemon owns the process lifecycle: component registration,
// ordered startup, signal-driven shutdown, and the runtime-dir file lock
// that keeps two daemons from polling the same inbox.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jjurach/pigeon/internal/config"
	"github.com/jjurach/pigeon/internal/state"
)

type Daemon struct {
	cfg        *config.Config
	components []Component
	health     HealthStatus
	lock       *state.FileLock
	mu         sync.RWMutex
}

func NewDaemon(cfg *config.Config) *Daemon {
	return &Daemon{
		cfg:    cfg,
		health: StatusStarting,
	}
}

func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, comp)
	slog.Info("Component registered", "component", comp.Name(), "total_components", len(d.components))
}

// Run validates config, takes the runtime lock, starts every component in
// registration order, and blocks until a signal or ctx cancellation, then
// stops components in reverse order under the shutdown timeout.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Pigeon daemon starting...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	staleTTL, err := config.DurationOrDefault(d.cfg.Daemon.StaleLockTTL, config.DefaultDaemonStaleLockTTL)
	if err != nil {
		return fmt.Errorf("parse daemon stale lock ttl: %w", err)
	}
	if err := state.CleanupStaleLock(d.cfg.Daemon.RuntimeDir, staleTTL); err != nil {
		slog.Warn("Failed to cleanup stale lock", "error", err)
	}

	lockCfg, err := d.lockConfig()
	if err != nil {
		return err
	}
	lock, err := state.NewFileLock(d.cfg.Daemon.RuntimeDir, lockCfg)
	if err != nil {
		return fmt.Errorf("acquire runtime lock: %w", err)
	}
	d.lock = lock
	defer d.lock.Unlock()

	if err := d.initComponents(ctx); err != nil {
		d.stopComponents(context.Background())
		return err
	}
	if err := d.startComponents(ctx); err != nil {
		d.gracefulShutdown()
		return err
	}

	d.setHealth(StatusRunning)
	slog.Info("Pigeon daemon is running", "components", len(d.components))

	<-ctx.Done()

	slog.Info("Context cancelled, initiating graceful shutdown", "reason", ctx.Err())
	d.setHealth(StatusStopping)

	if err := d.gracefulShutdown(); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

func (d *Daemon) ComponentHealth(ctx context.Context) map[string]*ComponentHealth {
	d.mu.RLock()
	components := make([]Component, len(d.components))
	copy(components, d.components)
	d.mu.RUnlock()

	result := make(map[string]*ComponentHealth)
	for _, comp := range components {
		health, err := comp.Health(ctx)
		if health == nil {
			health = &ComponentHealth{Name: comp.Name()}
		}
		if err != nil {
			health.Error = err
		}
		result[comp.Name()] = health
	}
	return result
}

func (d *Daemon) lockConfig() (*state.FileLockConfig, error) {
	timeout, err := config.DurationOrDefault(d.cfg.Daemon.LockTimeout, config.DefaultDaemonLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse daemon lock timeout: %w", err)
	}
	retry, err := config.DurationOrDefault(d.cfg.Daemon.LockRetry, config.DefaultDaemonLockRetry)
	if err != nil {
		return nil, fmt.Errorf("parse daemon lock retry: %w", err)
	}
	maxRetry := d.cfg.Daemon.LockMaxRetry
	if maxRetry <= 0 {
		maxRetry = config.DefaultDaemonLockMaxRetry
	}
	return &state.FileLockConfig{Timeout: timeout, Retry: retry, MaxRetry: maxRetry}, nil
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = status
}

func (d *Daemon) initComponents(ctx context.Context) error {
	for _, comp := range d.components {
		slog.Info("Initializing component...", "component", comp.Name())
		if err := comp.Init(ctx); err != nil {
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
	}
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	for _, comp := range d.components {
		slog.Info("Starting component...", "component", comp.Name())
		if err := comp.Start(ctx); err != nil {
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
	}
	return nil
}

func (d *Daemon) gracefulShutdown() error {
	timeout, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon shutdown timeout: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.stopComponents(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		slog.Error("Shutdown timeout exceeded", "timeout", timeout)
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// stopComponents stops in reverse registration order so dependents go down
// before their dependencies.
func (d *Daemon) stopComponents(ctx context.Context) {
	for i := len(d.components) - 1; i >= 0; i-- {
		comp := d.components[i]
		slog.Info("Stopping component...", "component", comp.Name())
		if err := comp.Stop(ctx); err != nil {
			slog.Error("Component stop failed", "component", comp.Name(), "error", err)
		}
	}
	d.setHealth(StatusStopped)
}
