package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronExecutor runs weekly rules and global jobs on a robfig/cron scheduler.
// Each job runs in its own goroutine; a panicking job is recovered and logged.
type CronExecutor struct {
	c *cron.Cron
}

var _ Executor = (*CronExecutor)(nil)

// NewCronExecutor creates a stopped executor evaluating plain specs in loc.
func NewCronExecutor(loc *time.Location, log *zap.Logger) *CronExecutor {
	cl := cronLogger{s: log.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return &CronExecutor{c: c}
}

// AddWeekly installs fn to run every week at rule's weekday and time.
func (e *CronExecutor) AddWeekly(rule Rule, fn func()) (Handle, error) {
	id, err := e.c.AddFunc(weeklySpec(rule), fn)
	if err != nil {
		return 0, err
	}
	return Handle(id), nil
}

// AddFunc installs fn on a standard five-field cron spec.
func (e *CronExecutor) AddFunc(spec string, fn func()) (Handle, error) {
	id, err := e.c.AddFunc(spec, fn)
	if err != nil {
		return 0, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return Handle(id), nil
}

// Remove uninstalls a rule; unknown handles are ignored.
func (e *CronExecutor) Remove(h Handle) {
	e.c.Remove(cron.EntryID(h))
}

// Len returns the number of installed rules.
func (e *CronExecutor) Len() int {
	return len(e.c.Entries())
}

// Start begins running jobs in the background.
func (e *CronExecutor) Start() { e.c.Start() }

// Stop halts the scheduler and returns a context done once running jobs finish.
func (e *CronExecutor) Stop() context.Context { return e.c.Stop() }

// weeklySpec renders a rule as "CRON_TZ=<loc> M H * * DOW". cron counts
// Sunday as 0 while domain weekdays start at Monday.
func weeklySpec(r Rule) string {
	loc := r.Loc
	if loc == nil {
		loc = time.UTC
	}
	dow := (int(r.Weekday) + 1) % 7
	return fmt.Sprintf("CRON_TZ=%s %d %d * * %d", loc.String(), r.Minute, r.Hour, dow)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
