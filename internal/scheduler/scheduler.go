// Package scheduler runs the periodic purge of old completed tasks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// Purger deletes Completed tasks finished before cutoff and returns them.
type Purger interface {
	PurgeCompleted(ctx context.Context, cutoff time.Time) ([]*tasks.Task, error)
}

// Config holds dependencies for the scheduler.
type Config struct {
	Purger        Purger
	Bus           *events.Bus // nil-safe: deletions are not announced without a bus
	Schedule      string      // 5-field cron expression
	RetentionDays int         // negative disables the purge
}

// Scheduler runs a purge at each activation of its cron schedule.
type Scheduler struct {
	purger Purger
	bus    *events.Bus

	mu        sync.Mutex
	trigger   *trigger
	retention int

	done chan struct{}
	once sync.Once
}

// New validates the schedule and creates a Scheduler.
func New(cfg Config) (*Scheduler, error) {
	tr, err := newTrigger(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Purger == nil {
		return nil, fmt.Errorf("scheduler: purger is required")
	}
	return &Scheduler{
		purger:    cfg.Purger,
		bus:       cfg.Bus,
		trigger:   tr,
		retention: cfg.RetentionDays,
		done:      make(chan struct{}),
	}, nil
}

// Start begins the minute ticker. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("scheduler started", "schedule", s.trigger.String(), "retention_days", s.Retention(),
		"next", s.trigger.nextAfter(time.Now()).Format(time.RFC3339))
	go s.cronLoop(ctx)
}

// Stop halts the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.done)
		slog.Info("scheduler stopped")
	})
}

// Retention returns the current retention in days.
func (s *Scheduler) Retention() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retention
}

// SetRetention changes the retention, typically after a config reload.
func (s *Scheduler) SetRetention(days int) {
	s.mu.Lock()
	s.retention = days
	s.mu.Unlock()
}

func (s *Scheduler) cronLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.checkCron(ctx, now)
		}
	}
}

func (s *Scheduler) checkCron(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := s.trigger.due(now)
	s.mu.Unlock()
	if !due {
		return
	}

	if _, err := s.RunOnce(ctx, now); err != nil {
		slog.Error("scheduler: purge failed", "error", err)
	}
}

// RunOnce purges tasks completed more than the retention before now and
// announces each deletion. It returns the number of purged tasks.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	days := s.Retention()
	if days < 0 {
		return 0, nil
	}
	cutoff := now.UTC().AddDate(0, 0, -days)

	removed, err := s.purger.PurgeCompleted(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge completed tasks: %w", err)
	}
	for _, t := range removed {
		if s.bus != nil {
			s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, "", events.TaskDeletedPayload{
				TaskID:     t.ID,
				Title:      t.Title,
				CreatedBy:  t.CreatedBy,
				AssignedTo: t.AssignedTo,
			}))
		}
	}
	if len(removed) > 0 {
		slog.Info("scheduler: purged completed tasks", "count", len(removed), "cutoff", cutoff.Format(time.RFC3339))
	}
	return len(removed), nil
}
