package telegram

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/session"
	"github.com/ykvlv/discipline-bot/internal/store"
	"github.com/ykvlv/discipline-bot/internal/tracker"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range b.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	msgs := b.messages()
	if len(msgs) == 0 {
		t.Fatalf("no messages sent")
	}
	return msgs[len(msgs)-1].Text
}

type noopReplanner struct{}

func (noopReplanner) Replan(context.Context, int64, int, []domain.ScheduleEntry) (int, error) {
	return 0, nil
}

type fixture struct {
	router *Router
	bot    *fakeBot
	repo   *store.SQLiteRepo
}

func newFixture(t *testing.T, admins ...int64) *fixture {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := tracker.New(repo, noopReplanner{}, domain.NewAccessGate(5, admins, time.UTC), time.UTC, zap.NewNop())
	bot := &fakeBot{}
	r := NewRouter(NewSender(bot, zap.NewNop(), 1000), zap.NewNop(), svc, session.NewMemoryStore())
	return &fixture{router: r, bot: bot, repo: repo}
}

func (f *fixture) text(chatID int64, text string) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text},
	})
}

func (f *fixture) press(chatID int64, data string) {
	f.router.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			Data:    data,
			Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: chatID}},
		},
	})
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, cmd, args string
	}{
		{"/start", "/start", ""},
		{"/log done 45 legs", "/log", "done 45 legs"},
		{"/Weight@discipline_bot 82,4", "/weight", "82,4"},
		{"19:30", "", "19:30"},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.cmd || args != tt.args {
			t.Errorf("%q: want (%q, %q), got (%q, %q)", tt.in, tt.cmd, tt.args, cmd, args)
		}
	}
}

func TestParseLogArgs(t *testing.T) {
	status, dur, notes, err := parseLogArgs("done 1h30m heavy legs")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != domain.StatusDone || dur == nil || *dur != 90 || notes == nil || *notes != "heavy legs" {
		t.Fatalf("got status=%s dur=%v notes=%v", status, dur, notes)
	}

	status, dur, notes, err = parseLogArgs("missed sick")
	if err != nil || status != domain.StatusMissed || dur != nil || notes == nil || *notes != "sick" {
		t.Fatalf("got status=%s dur=%v notes=%v err=%v", status, dur, notes, err)
	}

	if _, _, _, err := parseLogArgs("skipped"); err == nil {
		t.Fatalf("want error for unknown status")
	}
}

func TestRouter_UnregisteredAndExpiredUsers(t *testing.T) {
	f := newFixture(t)
	f.text(1, "/schedule")
	if got := f.bot.lastText(t); got != noUserText {
		t.Fatalf("unregistered: got %q", got)
	}

	old := &domain.User{ChatID: 2, CreatedAt: time.Now().AddDate(0, 0, -30)}
	if err := f.repo.UpsertUser(context.Background(), old); err != nil {
		t.Fatal(err)
	}
	f.text(2, "/report")
	if got := f.bot.lastText(t); got != noAccessText {
		t.Fatalf("expired: got %q", got)
	}
	f.text(2, "/status")
	if got := f.bot.lastText(t); !strings.Contains(got, "Trial ended") {
		t.Fatalf("status: got %q", got)
	}
}

func TestRouter_ScheduleWizardParityFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.text(1, "/start")
	if got := f.bot.lastText(t); got != startText {
		t.Fatalf("start: got %q", got)
	}

	f.text(1, "/schedule")
	f.press(1, cbMode+"even")
	f.press(1, cbDay+"done")
	f.press(1, cbDay+"toggle:2")
	f.press(1, cbDay+"toggle:4")
	f.press(1, cbDay+"toggle:4")
	f.press(1, cbDay+"done")
	f.press(1, cbTimeMode+"single")
	f.text(1, "25:00")
	if got := f.bot.lastText(t); got != badTimeText {
		t.Fatalf("bad time: got %q", got)
	}
	f.text(1, "7:00")
	if got := f.bot.lastText(t); !strings.Contains(got, chooseParityText) {
		t.Fatalf("want parity question, got %q", got)
	}
	f.press(1, cbParity+"odd")

	if got := f.bot.lastText(t); !strings.HasPrefix(got, "✅ Schedule updated!") {
		t.Fatalf("finish: got %q", got)
	}
	got, err := f.repo.GetSchedule(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := []domain.ScheduleEntry{{ChatID: 1, Weekday: domain.Wednesday, Time: "07:00", WeekType: domain.WeekEven}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schedule mismatch (-want +got):\n%s", diff)
	}
	u, _ := f.repo.GetUser(ctx, 1)
	if u.WeekParityOffset == nil || domain.IsUserWeekEven(time.Now(), *u.WeekParityOffset) {
		t.Fatalf("current week must be odd for the user, offset=%v", u.WeekParityOffset)
	}

	// The finished wizard leaves no session behind.
	f.press(1, cbParity+"even")
	if got := f.bot.lastText(t); got != sessionResetText {
		t.Fatalf("stale button: got %q", got)
	}
}

func TestRouter_PerDayTimesForEveryWeek(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.text(1, "/start")
	f.text(1, "/schedule")
	f.press(1, cbMode+"any")
	f.press(1, cbDay+"toggle:0")
	f.press(1, cbDay+"toggle:3")
	f.press(1, cbDay+"done")
	f.press(1, cbTimeMode+"perday")
	f.text(1, "19:00")
	if got := f.bot.lastText(t); !strings.Contains(got, "Day 2 of 2: Thu") {
		t.Fatalf("want second day prompt, got %q", got)
	}
	f.text(1, "07:30")

	got, _ := f.repo.GetSchedule(ctx, 1)
	want := []domain.ScheduleEntry{
		{ChatID: 1, Weekday: domain.Monday, Time: "19:00", WeekType: domain.WeekAny},
		{ChatID: 1, Weekday: domain.Thursday, Time: "07:30", WeekType: domain.WeekAny},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schedule mismatch (-want +got):\n%s", diff)
	}
}

func TestRouter_WorkoutConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.text(1, "/start")

	occurrence := time.Date(2024, time.January, 8, 19, 0, 0, 0, time.UTC)
	if err := f.router.SendConfirmation(1, occurrence); err != nil {
		t.Fatalf("send confirmation: %v", err)
	}
	msg := f.bot.messages()[len(f.bot.messages())-1]
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("confirmation without inline keyboard: %T", msg.ReplyMarkup)
	}
	done := kb.InlineKeyboard[0][0].CallbackData
	if done == nil || *done != cbWorkout+"done:"+strconv.FormatInt(occurrence.Unix(), 10) {
		t.Fatalf("callback data: %v", done)
	}

	f.press(1, *done)
	l, err := f.repo.GetWorkoutLog(ctx, 1, occurrence)
	if err != nil || l.Status != domain.StatusDone {
		t.Fatalf("log: %+v (%v)", l, err)
	}
	if got := f.bot.lastText(t); got != doneText {
		t.Fatalf("reply: got %q", got)
	}
}

func TestRouter_WeightPromptAndLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.text(1, "/start")

	f.text(1, "/weight")
	if got := f.bot.lastText(t); got != enterWeightText {
		t.Fatalf("prompt: got %q", got)
	}
	f.text(1, "heavy")
	if got := f.bot.lastText(t); got != badWeightText {
		t.Fatalf("bad weight: got %q", got)
	}
	f.text(1, "82,4")
	if got := f.bot.lastText(t); !strings.Contains(got, "82.4 kg") {
		t.Fatalf("saved: got %q", got)
	}
	if w, err := f.repo.LatestWeight(ctx, 1); err != nil || w.Weight != 82.4 {
		t.Fatalf("stored weight: %+v (%v)", w, err)
	}

	n := len(f.bot.messages())
	f.text(1, "81")
	if len(f.bot.messages()) != n {
		t.Fatalf("text after the prompt finished must be ignored")
	}

	f.text(1, "/log done 45 legs")
	logs, err := f.repo.ListWorkoutLogs(ctx, 1, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil || len(logs) != 1 || logs[0].Duration == nil || *logs[0].Duration != 45 {
		t.Fatalf("manual log: %+v (%v)", logs, err)
	}
}

func TestRouter_GrantIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 99)
	f.text(1, "/start")

	f.text(1, "/grant 1 3")
	if u, _ := f.repo.GetUser(ctx, 1); u.SubscriptionEndsAt != nil {
		t.Fatalf("non-admin granted a subscription")
	}

	f.text(99, "/grant 1 2")
	u, _ := f.repo.GetUser(ctx, 1)
	if u.SubscriptionEndsAt == nil {
		t.Fatalf("admin grant not stored")
	}
	if got := f.bot.lastText(t); !strings.HasPrefix(got, "✅ Your subscription is active until") {
		t.Fatalf("user notice: got %q", got)
	}

	f.text(99, "/grant 404")
	if got := f.bot.lastText(t); got != "User not found." {
		t.Fatalf("unknown user: got %q", got)
	}
}

func TestFormatReport(t *testing.T) {
	start, end := 80.0, 78.5
	diff, pct := -1.5, -1.88
	r := domain.MonthlyReport{
		Start:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC),
		Scheduled:   5,
		Completed:   3,
		Missed:      1,
		Score:       60,
		StartWeight: &start,
		EndWeight:   &end,
		Diff:        &diff,
		DiffPercent: &pct,
	}
	got := formatReport("Monthly report", r)
	for _, want := range []string{"01.01.2024 — 31.01.2024", "Scheduled: 5", "Discipline: 60.0%", "-1.50 kg (-1.88%)"} {
		if !strings.Contains(got, want) {
			t.Errorf("report lacks %q:\n%s", want, got)
		}
	}
}

func TestRouter_ProfileTargetWeight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.text(1, "/profile")
	if got := f.bot.lastText(t); got != noUserText {
		t.Fatalf("unregistered: got %q", got)
	}

	f.text(1, "/start")
	f.text(1, "/profile")
	if got := f.bot.lastText(t); !strings.Contains(got, "Target weight: not set") || !strings.Contains(got, "Trial") {
		t.Fatalf("empty profile: got %q", got)
	}

	f.text(1, "/profile target")
	if got := f.bot.lastText(t); got != enterTargetText {
		t.Fatalf("prompt: got %q", got)
	}
	f.text(1, "light")
	if got := f.bot.lastText(t); got != badWeightText {
		t.Fatalf("bad target: got %q", got)
	}
	f.text(1, "75,5")
	u, err := f.repo.GetUser(ctx, 1)
	if err != nil || u.TargetWeight == nil || *u.TargetWeight != 75.5 {
		t.Fatalf("stored target: %+v (%v)", u, err)
	}

	f.text(1, "/profile target 74")
	f.text(1, "/weight 80")
	f.text(1, "/profile")
	got := f.bot.lastText(t)
	for _, want := range []string{"Target weight: 74.0 kg", "Current weight: 80.0 kg", "Set height, birth year and gender"} {
		if !strings.Contains(got, want) {
			t.Errorf("profile lacks %q:\n%s", want, got)
		}
	}
}

func TestRouter_ProfileBodyAndCalories(t *testing.T) {
	f := newFixture(t)
	f.text(1, "/start")
	f.text(1, "/weight 80")

	f.text(1, "/profile height tall")
	if got := f.bot.lastText(t); !strings.Contains(got, profileUsageText) {
		t.Fatalf("bad height: got %q", got)
	}
	for _, cmd := range []string{"/profile height 180", "/profile born 1990", "/profile gender m", "/profile goal maintain"} {
		f.text(1, cmd)
	}
	if got := f.bot.lastText(t); !strings.Contains(got, "Calorie norm") || !strings.Contains(got, "BMI: 24.7 (normal)") {
		t.Fatalf("profile with norm: got %q", got)
	}

	f.text(1, "/calories 450")
	if got := f.bot.lastText(t); !strings.Contains(got, "Today in total: 450 kcal") {
		t.Fatalf("inline calories: got %q", got)
	}
	f.text(1, "/calories")
	if got := f.bot.lastText(t); got != enterCaloriesText {
		t.Fatalf("prompt: got %q", got)
	}
	f.text(1, "a lot")
	if got := f.bot.lastText(t); got != badCaloriesText {
		t.Fatalf("bad calories: got %q", got)
	}
	f.text(1, "700")
	if got := f.bot.lastText(t); !strings.Contains(got, "Today in total: 1150 kcal") {
		t.Fatalf("prompted calories: got %q", got)
	}

	n := len(f.bot.messages())
	f.text(1, "300")
	if len(f.bot.messages()) != n {
		t.Fatalf("text after the prompt finished must be ignored")
	}
}

func TestRouter_ScheduleTypedDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.text(1, "/start")
	f.text(1, "/schedule")
	f.press(1, cbMode+"any")
	f.text(1, "someday")
	if got := f.bot.lastText(t); got != badDaysText {
		t.Fatalf("bad days: got %q", got)
	}
	f.text(1, "tue, fri")
	if got := f.bot.lastText(t); !strings.Contains(got, "Days: Tue, Fri") {
		t.Fatalf("days accepted: got %q", got)
	}
	f.press(1, cbTimeMode+"single")
	f.text(1, "18:00")

	got, _ := f.repo.GetSchedule(ctx, 1)
	want := []domain.ScheduleEntry{
		{ChatID: 1, Weekday: domain.Tuesday, Time: "18:00", WeekType: domain.WeekAny},
		{ChatID: 1, Weekday: domain.Friday, Time: "18:00", WeekType: domain.WeekAny},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schedule mismatch (-want +got):\n%s", diff)
	}
}
