package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/store"
)

// Global job specs, evaluated in the executor's location.
const (
	WeighInSpec       = "0 8 * * 1" // Mondays 08:00
	MonthlyReportSpec = "0 9 1 * *" // 1st of the month 09:00
)

// UserSource is the store capability global jobs need.
type UserSource interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	LatestWeight(ctx context.Context, chatID int64) (*domain.WeightEntry, error)
}

// Reporter builds a user's report for a period.
type Reporter interface {
	MonthlyReport(ctx context.Context, chatID int64, start, end time.Time) (domain.MonthlyReport, error)
}

// Announcer delivers the global jobs' messages.
type Announcer interface {
	SendWeighInPrompt(chatID int64, last *domain.WeightEntry, now time.Time) error
	SendMonthlyReport(chatID int64, r domain.MonthlyReport) error
}

// Jobs runs the non-per-user recurring jobs.
type Jobs struct {
	users    UserSource
	reporter Reporter
	announce Announcer
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewJobs creates the global jobs.
func NewJobs(users UserSource, reporter Reporter, announce Announcer, loc *time.Location, log *zap.Logger) *Jobs {
	if loc == nil {
		loc = time.UTC
	}
	return &Jobs{users: users, reporter: reporter, announce: announce, log: log, loc: loc, now: time.Now}
}

// WeeklyWeighIn asks every user for their current weight.
func (j *Jobs) WeeklyWeighIn(ctx context.Context) {
	now := j.now().In(j.loc)
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		j.log.Error("weigh-in: list users failed", zap.Error(err))
		return
	}
	j.log.Info("weigh-in prompt started", zap.Int("users", len(users)))

	for _, u := range users {
		last, err := j.users.LatestWeight(ctx, u.ChatID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			j.log.Error("weigh-in: latest weight failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
			continue
		}
		if err := j.announce.SendWeighInPrompt(u.ChatID, last, now); err != nil {
			j.log.Error("weigh-in: send failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
		}
	}
}

// MonthlyReports sends every user the report for the previous month.
func (j *Jobs) MonthlyReports(ctx context.Context) {
	start, end := domain.PreviousMonthRange(j.now().In(j.loc))
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		j.log.Error("monthly report: list users failed", zap.Error(err))
		return
	}
	j.log.Info("monthly reports started", zap.Int("users", len(users)), zap.Time("start", start))

	for _, u := range users {
		r, err := j.reporter.MonthlyReport(ctx, u.ChatID, start, end)
		if err != nil {
			j.log.Error("monthly report: build failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
			continue
		}
		if err := j.announce.SendMonthlyReport(u.ChatID, r); err != nil {
			j.log.Error("monthly report: send failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
		}
	}
}
