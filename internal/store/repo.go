package store

import (
	"context"
	"errors"
	"time"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for users, schedules, workout logs, weights
// and calorie intake.
// Range queries are inclusive on both ends.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, chatID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetTargetWeight(ctx context.Context, chatID int64, weight float64) error
	SetBodyParams(ctx context.Context, chatID int64, b domain.BodyParams) error
	SetSubscriptionEnd(ctx context.Context, chatID int64, end time.Time) error

	GetSchedule(ctx context.Context, chatID int64) ([]domain.ScheduleEntry, error)
	ReplaceSchedule(ctx context.Context, chatID int64, wt domain.WeekType, entries []domain.ScheduleEntry, parityOffset *int) error

	UpsertWorkoutLog(ctx context.Context, l domain.WorkoutLog) error
	InsertWorkoutLogIfAbsent(ctx context.Context, l domain.WorkoutLog) (bool, error)
	GetWorkoutLog(ctx context.Context, chatID int64, at time.Time) (*domain.WorkoutLog, error)
	WorkoutStats(ctx context.Context, chatID int64, start, end time.Time) (domain.WorkoutStats, error)
	ListWorkoutLogs(ctx context.Context, chatID int64, start, end time.Time) ([]domain.WorkoutLog, error)

	AddWeight(ctx context.Context, e domain.WeightEntry) error
	LatestWeight(ctx context.Context, chatID int64) (*domain.WeightEntry, error)
	ListWeights(ctx context.Context, chatID int64, start, end time.Time) ([]domain.WeightEntry, error)

	AddCalories(ctx context.Context, l domain.CalorieLog) error
	CaloriesForDay(ctx context.Context, chatID int64, day string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
