package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule sweeps expired sessions once an hour.
const DefaultJanitorSchedule = "@hourly"

// SessionJanitorConfig configures a SessionJanitor.
type SessionJanitorConfig struct {
	Auth AuthStore

	// Schedule is a cron expression; empty means DefaultJanitorSchedule.
	Schedule string

	Logger *slog.Logger
}

// SessionJanitor deletes expired auth sessions on a cron schedule. Expired
// sessions are already rejected at lookup time; the janitor only keeps the
// table from growing without bound.
type SessionJanitor struct {
	auth   AuthStore
	runner *cron.Cron
	logger *slog.Logger
}

// NewSessionJanitor creates a janitor and validates its schedule.
func NewSessionJanitor(cfg SessionJanitorConfig) (*SessionJanitor, error) {
	if cfg.Auth == nil {
		return nil, errors.New("session janitor requires an auth store")
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	j := &SessionJanitor{
		auth:   cfg.Auth,
		runner: cron.New(),
		logger: logger,
	}
	if _, err := j.runner.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins the cron runner.
func (j *SessionJanitor) Start() {
	j.runner.Start()
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (j *SessionJanitor) Stop() {
	<-j.runner.Stop().Done()
}

// RunOnce performs a single sweep immediately.
func (j *SessionJanitor) RunOnce(ctx context.Context) error {
	return j.auth.CleanExpiredSessions(ctx)
}

func (j *SessionJanitor) sweep() {
	if err := j.RunOnce(context.Background()); err != nil {
		j.logger.Error("clean expired sessions", "error", err)
		return
	}
	j.logger.Debug("expired sessions swept")
}
