package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tably-labs/tably/events"
)

// DefaultReconcileInterval is the tick interval of the status reconciler.
// Sub-minute granularity is required so a tick always lands inside the
// one-minute boundary window the pre-filter looks at.
const DefaultReconcileInterval = 50 * time.Second

// StatusReconcilerConfig configures the background restaurant-status
// reconciler.
type StatusReconcilerConfig struct {
	Store    RestaurantStore
	Hub      *events.Hub
	Interval time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// StatusReconciler periodically derives each active restaurant's open or
// closed state from its weekly hours and corrects the persisted state on a
// transition, publishing a restaurant:status event exactly once per
// transition. Ticks run serialized on a single goroutine, so two passes
// never inspect the same restaurant set concurrently.
type StatusReconciler struct {
	store    RestaurantStore
	hub      *events.Hub
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStatusReconciler creates a status reconciler instance.
func NewStatusReconciler(cfg StatusReconcilerConfig) (*StatusReconciler, error) {
	if cfg.Store == nil {
		return nil, errors.New("status reconciler store is nil")
	}
	if cfg.Hub == nil {
		return nil, errors.New("status reconciler hub is nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultReconcileInterval
	}
	if cfg.Now == nil {
		// Schedules are written in the restaurant's wall-clock time, so
		// derivation uses the process-local clock, not UTC.
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &StatusReconciler{
		store:    cfg.Store,
		hub:      cfg.Hub,
		interval: cfg.Interval,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Start begins background ticking. Calling Start on a running reconciler is
// a no-op.
func (r *StatusReconciler) Start(ctx context.Context) error {
	if r == nil {
		return errors.New("status reconciler is nil")
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.tick(loopCtx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				r.tick(loopCtx)
			}
		}
	}()

	_ = ctx
	return nil
}

// Stop halts background ticking and waits for an in-flight tick to finish.
func (r *StatusReconciler) Stop(ctx context.Context) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs one pass and logs a tick-level failure. The next scheduled tick
// retries from scratch; each pass independently re-derives truth from the
// schedules.
func (r *StatusReconciler) tick(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("restaurant status reconcile tick", "error", err)
	}
}

// RunOnce executes a single reconciliation pass: load active restaurants,
// pre-filter to those with an open/close boundary on the current or next
// minute, derive each one's state, and persist plus publish on change.
// Per-restaurant failures are logged and skipped; only the initial listing
// failure abandons the pass.
func (r *StatusReconciler) RunOnce(ctx context.Context) error {
	if r == nil || r.store == nil || r.hub == nil {
		return errors.New("status reconciler is not configured")
	}

	now := r.now()
	restaurants, err := r.store.ListActiveRestaurants(ctx)
	if err != nil {
		return err
	}

	checked := 0
	transitions := 0
	for _, rest := range restaurants {
		if !rest.Hours.BoundaryWithin(now) {
			continue
		}
		checked++

		derived := rest.Hours.OpenAt(now)
		if derived == rest.IsOpen {
			continue
		}

		if err := r.store.UpdateRestaurantOpen(ctx, rest.ID, derived); err != nil {
			r.logger.Error("persist restaurant status",
				"restaurant_id", rest.ID,
				"is_open", derived,
				"error", err,
			)
			continue
		}

		message := rest.Name + " is now closed"
		if derived {
			message = rest.Name + " is now open"
		}
		r.hub.Publish(events.NewRestaurantStatus(rest.ID, derived, message))
		transitions++

		r.logger.Info("restaurant status transition",
			"restaurant_id", rest.ID,
			"name", rest.Name,
			"is_open", derived,
		)
	}

	if checked > 0 {
		r.logger.Debug("status reconcile pass",
			"candidates", checked,
			"transitions", transitions,
			"total", len(restaurants),
		)
	}
	return nil
}
