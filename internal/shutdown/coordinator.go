// Package shutdown runs the server's graceful shutdown in ordered phases.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Phase orders shutdown steps. Steps of one phase run concurrently; phases
// run one after the other.
type Phase int

const (
	// PhaseDrain lets in-flight requests and chat streams finish.
	PhaseDrain Phase = iota
	// PhaseShutdown stops background workers (limiter sweeps, session sweeper).
	PhaseShutdown
	// PhaseCleanup closes stores, caches and idle provider connections.
	PhaseCleanup
)

var phases = []Phase{PhaseDrain, PhaseShutdown, PhaseCleanup}

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseShutdown:
		return "shutdown"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// DefaultTimeout bounds the whole shutdown when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the shutdown coordinator.
type Config struct {
	// Timeout is the total time allowed for shutdown.
	Timeout time.Duration
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// Coordinator runs registered steps phase by phase once shutdown starts.
type Coordinator struct {
	mu      sync.Mutex
	steps   map[Phase][]step
	timeout time.Duration
	logger  *zap.Logger

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	err          error
}

// NewCoordinator creates a coordinator. cfg may be nil.
func NewCoordinator(cfg *Config, logger *zap.Logger) *Coordinator {
	timeout := DefaultTimeout
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return &Coordinator{
		steps:      make(map[Phase][]step),
		timeout:    timeout,
		logger:     logger.Named("shutdown"),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// RegisterFunc adds fn to phase under name.
func (c *Coordinator) RegisterFunc(phase Phase, name string, fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps[phase] = append(c.steps[phase], step{name: name, fn: fn})
}

// ShutdownCh is closed when shutdown starts.
func (c *Coordinator) ShutdownCh() <-chan struct{} {
	return c.shutdownCh
}

// Shutdown starts the shutdown sequence once and waits for it, or for ctx.
// The sequence itself is bounded by the configured timeout, not by ctx.
// The returned error joins every failed step.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
		go c.run()
	})

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("starting graceful shutdown", zap.Duration("timeout", c.timeout))

	var errs []error
	for _, phase := range phases {
		c.mu.Lock()
		steps := c.steps[phase]
		c.mu.Unlock()
		if len(steps) == 0 {
			continue
		}

		errs = append(errs, c.runPhase(ctx, phase, steps)...)

		if ctx.Err() != nil {
			c.logger.Error("shutdown timeout exceeded", zap.Stringer("phase", phase))
			errs = append(errs, fmt.Errorf("%s phase: %w", phase, ctx.Err()))
			break
		}
	}

	c.err = errors.Join(errs...)
	if c.err != nil {
		c.logger.Error("shutdown completed with errors", zap.Int("error_count", len(errs)))
		return
	}
	c.logger.Info("graceful shutdown complete")
}

func (c *Coordinator) runPhase(ctx context.Context, phase Phase, steps []step) []error {
	c.logger.Info("executing shutdown phase",
		zap.Stringer("phase", phase),
		zap.Int("steps", len(steps)),
	)

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range steps {
		g.Go(func() error {
			start := time.Now()
			if err := s.fn(ctx); err != nil {
				c.logger.Error("shutdown step failed",
					zap.String("step", s.name),
					zap.Stringer("phase", phase),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				mu.Unlock()
				return nil
			}
			c.logger.Debug("shutdown step complete",
				zap.String("step", s.name),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// ReadinessProbe reports ready until shutdown starts.
type ReadinessProbe struct {
	coordinator *Coordinator
}

// NewReadinessProbe creates a probe bound to coordinator.
func NewReadinessProbe(coordinator *Coordinator) *ReadinessProbe {
	return &ReadinessProbe{coordinator: coordinator}
}

// IsReady is false once shutdown has started.
func (rp *ReadinessProbe) IsReady() bool {
	select {
	case <-rp.coordinator.ShutdownCh():
		return false
	default:
		return true
	}
}
