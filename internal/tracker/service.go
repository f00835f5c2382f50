// Package tracker implements the bot's use cases on top of the store and the
// trigger planner.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/store"
)

// StatsWindow is the rolling period of the /stats summary.
const StatsWindow = 30 * 24 * time.Hour

// replanLimit bounds concurrent replans at startup.
const replanLimit = 8

// lockStripes is the number of mutexes user schedule changes are spread over.
const lockStripes = 64

// Replanner installs a user's triggers.
type Replanner interface {
	Replan(ctx context.Context, chatID int64, parityOffset int, entries []domain.ScheduleEntry) (int, error)
}

// Service is the application layer shared by chat handlers and jobs.
type Service struct {
	repo store.Repo
	plan Replanner
	gate domain.AccessGate
	loc  *time.Location
	log  *zap.Logger
	now  func() time.Time

	// locks serialize schedule writes and replans of one user, so the
	// schedule read for a replan is never older than one already installed.
	locks [lockStripes]sync.Mutex
}

// New creates a Service. loc is the timezone schedules are interpreted in.
func New(repo store.Repo, plan Replanner, gate domain.AccessGate, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, plan: plan, gate: gate, loc: loc, log: log, now: time.Now}
}

func (s *Service) lockUser(chatID int64) func() {
	l := &s.locks[uint64(chatID)%lockStripes]
	l.Lock()
	return l.Unlock
}

// Location returns the service timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Now returns the current time in the service timezone.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// Register creates the user on first contact. created is false for a
// returning user, whose record is left untouched.
func (s *Service) Register(ctx context.Context, chatID int64) (u *domain.User, created bool, err error) {
	u, err = s.repo.GetUser(ctx, chatID)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	u = &domain.User{ChatID: chatID, CreatedAt: s.now().UTC()}
	if err := s.repo.UpsertUser(ctx, u); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.Int64("chatID", chatID))
	return u, true, nil
}

// User returns a registered user or store.ErrNotFound.
func (s *Service) User(ctx context.Context, chatID int64) (*domain.User, error) {
	return s.repo.GetUser(ctx, chatID)
}

// Access returns the access status of chatID and whether tracking features
// are available. Unregistered users have no access.
func (s *Service) Access(ctx context.Context, chatID int64) (domain.AccessStatus, bool, error) {
	u, err := s.repo.GetUser(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AccessStatus{Kind: domain.AccessNone}, false, nil
	}
	if err != nil {
		return domain.AccessStatus{}, false, err
	}
	now := s.Now()
	return s.gate.Status(chatID, u, now), s.gate.HasAccess(chatID, u, now), nil
}

// IsAdmin reports whether chatID may run admin commands.
func (s *Service) IsAdmin(chatID int64) bool { return s.gate.IsAdmin(chatID) }

// ExtendSubscription adds months to the user's subscription, starting from
// its current end when still active and from today otherwise.
func (s *Service) ExtendSubscription(ctx context.Context, chatID int64, months int) (time.Time, error) {
	if months <= 0 {
		return time.Time{}, fmt.Errorf("%w: months must be positive", domain.ErrValidation)
	}
	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return time.Time{}, err
	}
	from := s.Now()
	if s.gate.SubscriptionActive(u, from) && u.SubscriptionEndsAt.After(from) {
		from = *u.SubscriptionEndsAt
	}
	end := domain.SubscriptionEndAfter(from, months)
	if err := s.repo.SetSubscriptionEnd(ctx, chatID, end); err != nil {
		return time.Time{}, err
	}
	s.log.Info("subscription extended", zap.Int64("chatID", chatID), zap.Time("until", end))
	return end, nil
}

// SetTargetWeight stores the user's goal weight.
func (s *Service) SetTargetWeight(ctx context.Context, chatID int64, weight float64) error {
	if weight <= 0 || weight > 500 {
		return fmt.Errorf("%w: target weight out of range", domain.ErrValidation)
	}
	return s.repo.SetTargetWeight(ctx, chatID, weight)
}

// Schedule returns the user's schedule sorted by weekday and time.
func (s *Service) Schedule(ctx context.Context, chatID int64) ([]domain.ScheduleEntry, error) {
	entries, err := s.repo.GetSchedule(ctx, chatID)
	if err != nil {
		return nil, err
	}
	domain.SortEntries(entries)
	return entries, nil
}

// SetScheduleForWeekType replaces the user's entries of week type wt and
// replans the user's triggers. claimsEven answers "is the current week even
// for you"; it is required for even/odd batches unless an offset is already
// stored. An "any" batch only sets the offset when none is stored yet.
// Validation happens before anything is written.
func (s *Service) SetScheduleForWeekType(ctx context.Context, chatID int64, wt domain.WeekType, entries []domain.ScheduleEntry, claimsEven *bool) ([]domain.ScheduleEntry, error) {
	valid, err := domain.ValidateEntries(chatID, wt, entries)
	if err != nil {
		return nil, err
	}
	defer s.lockUser(chatID)()

	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var newOffset *int
	switch {
	case claimsEven != nil:
		off := domain.UserWeekOffset(s.Now(), *claimsEven)
		newOffset = &off
	case wt != domain.WeekAny && u.WeekParityOffset == nil:
		return nil, fmt.Errorf("%w: week parity is not set", domain.ErrValidation)
	case u.WeekParityOffset == nil:
		zero := 0
		newOffset = &zero
	}

	if err := s.repo.ReplaceSchedule(ctx, chatID, wt, valid, newOffset); err != nil {
		return nil, fmt.Errorf("replace schedule: %w", err)
	}

	s.log.Info("schedule replaced",
		zap.Int64("chatID", chatID),
		zap.String("weekType", string(wt)),
		zap.Int("entries", len(valid)),
	)
	if err := s.replan(ctx, chatID); err != nil {
		return nil, err
	}
	return valid, nil
}

// ClearSchedule removes every entry of the user and their triggers.
func (s *Service) ClearSchedule(ctx context.Context, chatID int64) error {
	defer s.lockUser(chatID)()
	for _, wt := range []domain.WeekType{domain.WeekAny, domain.WeekEven, domain.WeekOdd} {
		if err := s.repo.ReplaceSchedule(ctx, chatID, wt, nil, nil); err != nil {
			return fmt.Errorf("clear %s schedule: %w", wt, err)
		}
	}
	return s.replan(ctx, chatID)
}

// Replan reloads the user's schedule and offset and reinstalls their triggers.
func (s *Service) Replan(ctx context.Context, chatID int64) error {
	defer s.lockUser(chatID)()
	return s.replan(ctx, chatID)
}

// replan requires the user's lock.
func (s *Service) replan(ctx context.Context, chatID int64) error {
	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return err
	}
	entries, err := s.repo.GetSchedule(ctx, chatID)
	if err != nil {
		return err
	}
	if _, err := s.plan.Replan(ctx, chatID, u.ParityOffset(), entries); err != nil {
		return fmt.Errorf("replan %d: %w", chatID, err)
	}
	return nil
}

// ReplanAll installs triggers for every user, typically once at startup.
// A failing user is logged and skipped. It returns the number of users
// planned successfully.
func (s *Service) ReplanAll(ctx context.Context) (int, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	ok := make([]bool, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replanLimit)
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			if err := s.Replan(gctx, u.ChatID); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Error("replan failed", zap.Error(err), zap.Int64("chatID", u.ChatID))
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, v := range ok {
		if v {
			n++
		}
	}
	s.log.Info("triggers planned", zap.Int("users", n), zap.Int("total", len(users)))
	return n, nil
}

// ConfirmWorkout records the user's answer for a scheduled occurrence,
// overwriting any earlier log of that occurrence.
func (s *Service) ConfirmWorkout(ctx context.Context, chatID int64, occurrence time.Time, status domain.Status) error {
	l := domain.WorkoutLog{ChatID: chatID, At: occurrence, Status: status}
	if err := s.repo.UpsertWorkoutLog(ctx, l); err != nil {
		return err
	}
	s.log.Info("workout confirmed",
		zap.Int64("chatID", chatID),
		zap.String("status", string(status)),
		zap.Time("occurrence", occurrence),
	)
	return nil
}

// LogWorkout records an unscheduled workout at the current minute.
func (s *Service) LogWorkout(ctx context.Context, chatID int64, status domain.Status, duration *int, notes *string) (domain.WorkoutLog, error) {
	l := domain.WorkoutLog{
		ChatID:   chatID,
		At:       s.Now(),
		Status:   status,
		Duration: duration,
		Notes:    notes,
	}
	if err := l.Validate(); err != nil {
		return domain.WorkoutLog{}, err
	}
	if err := s.repo.UpsertWorkoutLog(ctx, l); err != nil {
		return domain.WorkoutLog{}, err
	}
	return l, nil
}

// LogWeight appends a weight measurement taken now and returns the previous
// one, if any.
func (s *Service) LogWeight(ctx context.Context, chatID int64, weight float64) (prev *domain.WeightEntry, err error) {
	prev, err = s.repo.LatestWeight(ctx, chatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	e := domain.WeightEntry{ChatID: chatID, At: s.now().UTC(), Weight: weight}
	if err := s.repo.AddWeight(ctx, e); err != nil {
		return nil, err
	}
	return prev, nil
}

// LatestWeight returns the last measurement or store.ErrNotFound.
func (s *Service) LatestWeight(ctx context.Context, chatID int64) (*domain.WeightEntry, error) {
	return s.repo.LatestWeight(ctx, chatID)
}

// MonthlyReport builds the report of chatID for [start, end].
func (s *Service) MonthlyReport(ctx context.Context, chatID int64, start, end time.Time) (domain.MonthlyReport, error) {
	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	schedule, err := s.repo.GetSchedule(ctx, chatID)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	stats, err := s.repo.WorkoutStats(ctx, chatID, start, end)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	weights, err := s.repo.ListWeights(ctx, chatID, start, end)
	if err != nil {
		return domain.MonthlyReport{}, err
	}
	return domain.BuildMonthlyReport(domain.ReportInput{
		Start:    start.In(s.loc),
		End:      end.In(s.loc),
		Offset:   u.ParityOffset(),
		Schedule: schedule,
		Stats:    stats,
		Weights:  weights,
	}), nil
}

// CurrentReport covers the current month up to now.
func (s *Service) CurrentReport(ctx context.Context, chatID int64) (domain.MonthlyReport, error) {
	now := s.Now()
	start, _ := domain.MonthRange(now)
	return s.MonthlyReport(ctx, chatID, start, now)
}

// Stats covers the last StatsWindow up to now.
func (s *Service) Stats(ctx context.Context, chatID int64) (domain.MonthlyReport, error) {
	now := s.Now()
	return s.MonthlyReport(ctx, chatID, now.Add(-StatsWindow), now)
}

// UpdateBody sets one calorie profile field of the user from text input.
func (s *Service) UpdateBody(ctx context.Context, chatID int64, field, value string) (domain.BodyParams, error) {
	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return domain.BodyParams{}, err
	}
	body := u.Body
	if err := body.Set(field, value, s.Now()); err != nil {
		return domain.BodyParams{}, err
	}
	if err := s.repo.SetBodyParams(ctx, chatID, body); err != nil {
		return domain.BodyParams{}, err
	}
	s.log.Info("profile updated", zap.Int64("chatID", chatID), zap.String("field", field))
	return body, nil
}

// AddCalories records an intake now and returns today's total.
func (s *Service) AddCalories(ctx context.Context, chatID int64, kcal int) (int, error) {
	if kcal <= 0 {
		return 0, fmt.Errorf("%w: calories must be positive", domain.ErrValidation)
	}
	now := s.Now()
	day := domain.CalorieDay(now)
	if err := s.repo.AddCalories(ctx, domain.CalorieLog{ChatID: chatID, Day: day, At: now, Calories: kcal}); err != nil {
		return 0, err
	}
	total, err := s.repo.CaloriesForDay(ctx, chatID, day)
	if err != nil {
		return 0, err
	}
	s.log.Info("calories added", zap.Int64("chatID", chatID), zap.Int("kcal", kcal), zap.Int("today", total))
	return total, nil
}

// Profile is everything the profile screen shows.
type Profile struct {
	User          domain.User
	Access        domain.AccessStatus
	Latest        *domain.WeightEntry
	Schedule      []domain.ScheduleEntry
	WeekEven      *bool // set when the schedule depends on week parity
	Calories      *domain.CalorieProfile
	TodayCalories int
}

// Profile assembles the user's profile as of now.
func (s *Service) Profile(ctx context.Context, chatID int64) (Profile, error) {
	u, err := s.repo.GetUser(ctx, chatID)
	if err != nil {
		return Profile{}, err
	}
	now := s.Now()
	p := Profile{User: *u, Access: s.gate.Status(chatID, u, now)}

	if p.Latest, err = s.repo.LatestWeight(ctx, chatID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return Profile{}, err
	}
	if p.Schedule, err = s.Schedule(ctx, chatID); err != nil {
		return Profile{}, err
	}
	if domain.HasParityEntries(p.Schedule) && u.WeekParityOffset != nil {
		even := domain.IsUserWeekEven(now, *u.WeekParityOffset)
		p.WeekEven = &even
	}
	if p.TodayCalories, err = s.repo.CaloriesForDay(ctx, chatID, domain.CalorieDay(now)); err != nil {
		return Profile{}, err
	}
	if p.Latest != nil {
		if cp, ok := domain.ComputeCalorieProfile(p.Latest.Weight, u.Body, now); ok {
			p.Calories = &cp
		}
	}
	return p, nil
}
