package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/store"
)

type replanCall struct {
	chatID  int64
	offset  int
	entries []domain.ScheduleEntry
}

type fakeReplanner struct {
	mu      sync.Mutex
	calls   []replanCall
	failFor int64
}

func (f *fakeReplanner) Replan(_ context.Context, chatID int64, offset int, entries []domain.ScheduleEntry) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatID == f.failFor {
		return 0, errors.New("executor closed")
	}
	f.calls = append(f.calls, replanCall{chatID: chatID, offset: offset, entries: entries})
	return len(entries) * 8, nil
}

// Monday of ISO week 2.
var testNow = time.Date(2024, time.January, 8, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, admins ...int64) (*Service, *store.SQLiteRepo, *fakeReplanner) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	plan := &fakeReplanner{}
	svc := New(repo, plan, domain.NewAccessGate(5, admins, time.UTC), time.UTC, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, repo, plan
}

func register(t *testing.T, svc *Service, chatID int64) {
	t.Helper()
	if _, _, err := svc.Register(context.Background(), chatID); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestRegister_KeepsReturningUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	u, created, err := svc.Register(ctx, 7)
	if err != nil || !created {
		t.Fatalf("first register: created=%v err=%v", created, err)
	}
	svc.now = func() time.Time { return testNow.AddDate(0, 1, 0) }
	again, created, err := svc.Register(ctx, 7)
	if err != nil || created {
		t.Fatalf("second register: created=%v err=%v", created, err)
	}
	if !again.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at changed: %s -> %s", u.CreatedAt, again.CreatedAt)
	}
}

func TestSetSchedule_InvalidBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, repo, plan := newTestService(t)
	register(t, svc, 1)

	entries := []domain.ScheduleEntry{
		{Weekday: domain.Monday, Time: "19:00"},
		{Weekday: domain.Tuesday, Time: "25:00"},
	}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, entries, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, nil, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty selection: want validation error, got %v", err)
	}

	got, _ := repo.GetSchedule(ctx, 1)
	if len(got) != 0 || len(plan.calls) != 0 {
		t.Fatalf("nothing must be written: schedule=%v replans=%d", got, len(plan.calls))
	}
}

func TestSetSchedule_ParityBatchNeedsClaim(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, 1)

	entries := []domain.ScheduleEntry{{Weekday: domain.Wednesday, Time: "07:00"}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekEven, entries, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSetSchedule_ClaimSetsOffsetAndReplans(t *testing.T) {
	ctx := context.Background()
	svc, repo, plan := newTestService(t)
	register(t, svc, 1)

	// ISO week 2 is even; the user says it is odd for them.
	entries := []domain.ScheduleEntry{{Weekday: domain.Wednesday, Time: "7:00"}}
	saved, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekEven, entries, boolPtr(false))
	if err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	want := []domain.ScheduleEntry{{ChatID: 1, Weekday: domain.Wednesday, Time: "07:00", WeekType: domain.WeekEven}}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("saved mismatch (-want +got):\n%s", diff)
	}

	u, _ := repo.GetUser(ctx, 1)
	if u.ParityOffset() != 1 || u.WeekParityOffset == nil {
		t.Fatalf("offset: got %v", u.WeekParityOffset)
	}
	if len(plan.calls) != 1 || plan.calls[0].offset != 1 {
		t.Fatalf("replan calls: %+v", plan.calls)
	}
	if diff := cmp.Diff(want, plan.calls[0].entries); diff != "" {
		t.Fatalf("replanned entries (-want +got):\n%s", diff)
	}

	// An "any" batch keeps the stored offset and replans the whole schedule.
	anyEntries := []domain.ScheduleEntry{{Weekday: domain.Friday, Time: "18:30"}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, anyEntries, nil); err != nil {
		t.Fatalf("set any: %v", err)
	}
	u, _ = repo.GetUser(ctx, 1)
	if u.ParityOffset() != 1 {
		t.Fatalf("any batch must not reset offset, got %d", u.ParityOffset())
	}
	last := plan.calls[len(plan.calls)-1]
	if last.offset != 1 || len(last.entries) != 2 {
		t.Fatalf("replan after any batch: %+v", last)
	}
}

func TestSetSchedule_AnyBatchInitializesOffset(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	register(t, svc, 1)

	entries := []domain.ScheduleEntry{{Weekday: domain.Monday, Time: "19:00"}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, entries, nil); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	u, _ := repo.GetUser(ctx, 1)
	if u.WeekParityOffset == nil || *u.WeekParityOffset != 0 {
		t.Fatalf("offset: got %v", u.WeekParityOffset)
	}
}

func TestClearSchedule(t *testing.T) {
	ctx := context.Background()
	svc, repo, plan := newTestService(t)
	register(t, svc, 1)

	entries := []domain.ScheduleEntry{{Weekday: domain.Monday, Time: "19:00"}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, entries, nil); err != nil {
		t.Fatal(err)
	}
	if err := svc.ClearSchedule(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := repo.GetSchedule(ctx, 1)
	if len(got) != 0 {
		t.Fatalf("schedule left: %v", got)
	}
	if last := plan.calls[len(plan.calls)-1]; len(last.entries) != 0 {
		t.Fatalf("last replan must be empty: %+v", last)
	}
}

func TestReplanAll_SkipsFailingUser(t *testing.T) {
	ctx := context.Background()
	svc, _, plan := newTestService(t)
	for _, id := range []int64{1, 2, 3} {
		register(t, svc, id)
	}
	plan.failFor = 2

	n, err := svc.ReplanAll(ctx)
	if err != nil {
		t.Fatalf("replan all: %v", err)
	}
	if n != 2 || len(plan.calls) != 2 {
		t.Fatalf("want 2 planned users, got n=%d calls=%d", n, len(plan.calls))
	}
}

func TestMonthlyReport_MondayEveningScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, 1)

	entries := []domain.ScheduleEntry{{Weekday: domain.Monday, Time: "19:00"}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, entries, nil); err != nil {
		t.Fatal(err)
	}
	for _, day := range []int{1, 8, 15} {
		at := time.Date(2024, time.January, day, 19, 0, 0, 0, time.UTC)
		if err := svc.ConfirmWorkout(ctx, 1, at, domain.StatusDone); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}
	if err := svc.ConfirmWorkout(ctx, 1, time.Date(2024, time.January, 22, 19, 0, 0, 0, time.UTC), domain.StatusMissed); err != nil {
		t.Fatal(err)
	}
	for i, w := range []float64{80, 79, 78.5} {
		svc.now = func() time.Time { return time.Date(2024, time.January, 2+i*10, 8, 0, 0, 0, time.UTC) }
		if _, err := svc.LogWeight(ctx, 1, w); err != nil {
			t.Fatalf("log weight: %v", err)
		}
	}

	start, end := domain.MonthRange(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	r, err := svc.MonthlyReport(ctx, 1, start, end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Scheduled != 5 || r.Completed != 3 || r.Missed != 1 || r.Score != 60 {
		t.Fatalf("counts: %+v", r)
	}
	if !r.LowDiscipline() {
		t.Fatalf("60%% must be flagged as low discipline")
	}
	if r.Diff == nil || *r.Diff != -1.5 || r.DiffPercent == nil || *r.DiffPercent != -1.88 {
		t.Fatalf("weight delta: diff=%v pct=%v", r.Diff, r.DiffPercent)
	}
	if len(r.Points) != 3 {
		t.Fatalf("points: %v", r.Points)
	}
}

func TestLogWorkout_TruncatesToMinute(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	register(t, svc, 1)
	svc.now = func() time.Time { return testNow.Add(42 * time.Second) }

	dur := 45
	l, err := svc.LogWorkout(ctx, 1, domain.StatusDone, &dur, nil)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if !l.At.Equal(testNow) {
		t.Fatalf("at: got %s", l.At)
	}
	got, err := repo.GetWorkoutLog(ctx, 1, testNow)
	if err != nil || got.Duration == nil || *got.Duration != 45 {
		t.Fatalf("stored: %+v (%v)", got, err)
	}
}

func TestLogWeight_ReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, 1)

	prev, err := svc.LogWeight(ctx, 1, 82.4)
	if err != nil || prev != nil {
		t.Fatalf("first weight: prev=%v err=%v", prev, err)
	}
	svc.now = func() time.Time { return testNow.AddDate(0, 0, 7) }
	prev, err = svc.LogWeight(ctx, 1, 81.9)
	if err != nil || prev == nil || prev.Weight != 82.4 {
		t.Fatalf("second weight: prev=%v err=%v", prev, err)
	}
}

func TestAccessAndSubscription(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 99)
	register(t, svc, 1)

	if _, ok, _ := svc.Access(ctx, 404); ok {
		t.Fatalf("unregistered user must not have access")
	}
	if st, ok, err := svc.Access(ctx, 1); err != nil || !ok || st.Kind != domain.AccessTrial {
		t.Fatalf("trial: %+v ok=%v err=%v", st, ok, err)
	}

	svc.now = func() time.Time { return testNow.AddDate(0, 0, 10) }
	if st, ok, _ := svc.Access(ctx, 1); ok || st.Kind != domain.AccessExpired {
		t.Fatalf("expired: %+v ok=%v", st, ok)
	}

	end, err := svc.ExtendSubscription(ctx, 1, 1)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := time.Date(2024, time.February, 17, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end: want %s, got %s", want, end)
	}
	end2, err := svc.ExtendSubscription(ctx, 1, 1)
	if err != nil || !end2.Equal(end.AddDate(0, 0, 30)) {
		t.Fatalf("second extension must stack: %s (%v)", end2, err)
	}
	if st, ok, _ := svc.Access(ctx, 1); !ok || st.Kind != domain.AccessSubscribed {
		t.Fatalf("subscribed: %+v ok=%v", st, ok)
	}
	if !svc.IsAdmin(99) || svc.IsAdmin(1) {
		t.Fatalf("admin check")
	}
}

func TestSetSchedule_ConcurrentWritesInstallLatestSchedule(t *testing.T) {
	ctx := context.Background()
	svc, repo, plan := newTestService(t)
	register(t, svc, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries := []domain.ScheduleEntry{{Weekday: domain.Monday, Time: fmt.Sprintf("07:%02d", i), WeekType: domain.WeekAny}}
			if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekAny, entries, nil); err != nil {
				t.Errorf("set schedule #%d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	stored, err := repo.GetSchedule(ctx, 1)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	plan.mu.Lock()
	last := plan.calls[len(plan.calls)-1]
	plan.mu.Unlock()
	if diff := cmp.Diff(stored, last.entries); diff != "" {
		t.Fatalf("last installed schedule differs from stored one (-stored +installed):\n%s", diff)
	}
}

func TestAddCalories_SumsToday(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, 1)

	if total, err := svc.AddCalories(ctx, 1, 500); err != nil || total != 500 {
		t.Fatalf("first intake: total=%d err=%v", total, err)
	}
	if total, err := svc.AddCalories(ctx, 1, 700); err != nil || total != 1200 {
		t.Fatalf("second intake: total=%d err=%v", total, err)
	}
	svc.now = func() time.Time { return testNow.AddDate(0, 0, 1) }
	if total, err := svc.AddCalories(ctx, 1, 300); err != nil || total != 300 {
		t.Fatalf("next day: total=%d err=%v", total, err)
	}
	if _, err := svc.AddCalories(ctx, 1, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestProfile_TargetWeightAndCalories(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	register(t, svc, 1)

	p, err := svc.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("empty profile: %v", err)
	}
	if p.User.TargetWeight != nil || p.Latest != nil || p.Calories != nil || p.WeekEven != nil {
		t.Fatalf("new user profile: %+v", p)
	}
	if p.Access.Kind != domain.AccessTrial {
		t.Fatalf("access: got %v", p.Access.Kind)
	}

	if err := svc.SetTargetWeight(ctx, 1, 75); err != nil {
		t.Fatalf("set target: %v", err)
	}
	for _, f := range [][2]string{{"height", "180"}, {"born", "1994"}, {"gender", "m"}, {"activity", "moderate"}, {"goal", "lose"}} {
		if _, err := svc.UpdateBody(ctx, 1, f[0], f[1]); err != nil {
			t.Fatalf("update %s: %v", f[0], err)
		}
	}
	if _, err := svc.UpdateBody(ctx, 1, "height", "tall"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if _, err := svc.LogWeight(ctx, 1, 80); err != nil {
		t.Fatalf("log weight: %v", err)
	}
	if _, err := svc.AddCalories(ctx, 1, 900); err != nil {
		t.Fatalf("add calories: %v", err)
	}
	entries := []domain.ScheduleEntry{{Weekday: domain.Friday, Time: "18:00", WeekType: domain.WeekEven}}
	if _, err := svc.SetScheduleForWeekType(ctx, 1, domain.WeekEven, entries, boolPtr(true)); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	p, err = svc.Profile(ctx, 1)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.User.TargetWeight == nil || *p.User.TargetWeight != 75 {
		t.Fatalf("target: %v", p.User.TargetWeight)
	}
	if p.Latest == nil || p.Latest.Weight != 80 {
		t.Fatalf("latest: %+v", p.Latest)
	}
	if p.Calories == nil || p.Calories.DailyTarget != 2259 || p.Calories.BMI != 24.7 {
		t.Fatalf("calories: %+v", p.Calories)
	}
	if p.TodayCalories != 900 {
		t.Fatalf("today: got %d", p.TodayCalories)
	}
	if p.WeekEven == nil || !*p.WeekEven {
		t.Fatalf("week parity: %v", p.WeekEven)
	}
}
