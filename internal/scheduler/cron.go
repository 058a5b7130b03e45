package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// trigger fires once per activation of a cron schedule. A tick that arrives
// after the activation still fires, so a late minute never skips a purge.
type trigger struct {
	expr     string
	schedule cron.Schedule
	next     time.Time // zero until the first check
}

// newTrigger accepts a 5-field expression ("0 3 * * *") or a descriptor (@daily).
func newTrigger(expr string) (*trigger, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &trigger{expr: expr, schedule: sched}, nil
}

// due reports whether an activation fell at or before now since the last
// firing, and arms the following one when it did. The first check counts
// activations from the start of its own minute.
func (t *trigger) due(now time.Time) bool {
	if t.next.IsZero() {
		t.next = t.schedule.Next(now.Truncate(time.Minute).Add(-time.Second))
	}
	if now.Before(t.next) {
		return false
	}
	t.next = t.schedule.Next(now)
	return true
}

// nextAfter returns the activation following now, without arming anything.
func (t *trigger) nextAfter(now time.Time) time.Time {
	return t.schedule.Next(now)
}

func (t *trigger) String() string { return t.expr }
