package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/session"
	"github.com/ykvlv/discipline-bot/internal/store"
)

// requireAccess reports whether chatID may use tracking features and tells
// the user why not otherwise.
func (r *Router) requireAccess(ctx context.Context, chatID int64) bool {
	st, ok, err := r.svc.Access(ctx, chatID)
	if err != nil {
		r.log.Error("access check failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return false
	}
	if ok {
		return true
	}
	if st.Kind == domain.AccessNone {
		r.sendText(chatID, noUserText)
	} else {
		r.sendText(chatID, noAccessText)
	}
	return false
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	_, created, err := r.svc.Register(ctx, chatID)
	if err != nil {
		r.log.Error("register failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	text := welcomeBackText
	if created {
		text = startText
	}
	r.sendWithMarkup(chatID, text, mainMenuKeyboard())
}

func (r *Router) handleCancel(ctx context.Context, chatID int64) {
	if err := r.sessions.Delete(ctx, chatID); err != nil {
		r.log.Warn("delete session failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
	r.sendWithMarkup(chatID, cancelledText, mainMenuKeyboard())
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	st, _, err := r.svc.Access(ctx, chatID)
	if err != nil {
		r.log.Error("access check failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Error reading your status.")
		return
	}
	r.sendText(chatID, statusText(st))
}

// handleGrant extends a user's subscription; admins only.
func (r *Router) handleGrant(ctx context.Context, chatID int64, args string) {
	if !r.svc.IsAdmin(chatID) {
		r.sendText(chatID, helpText)
		return
	}
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		r.sendText(chatID, grantUsageText)
		return
	}
	target, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		r.sendText(chatID, grantUsageText)
		return
	}
	months := domain.SubscriptionMonth
	if len(fields) == 2 {
		if months, err = strconv.Atoi(fields[1]); err != nil || months <= 0 {
			r.sendText(chatID, grantUsageText)
			return
		}
	}

	until, err := r.svc.ExtendSubscription(ctx, target, months)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.sendText(chatID, "User not found.")
		return
	case err != nil:
		r.log.Error("grant failed", zap.Error(err), zap.Int64("target", target))
		r.sendText(chatID, genericErrorText)
		return
	}
	r.log.Info("subscription granted", zap.Int64("admin", chatID), zap.Int64("target", target), zap.Int("months", months))
	r.sendText(chatID, "✅ Subscription of "+fields[0]+" active until "+until.Format("02.01.2006")+".")
	r.sendText(target, "✅ Your subscription is active until "+until.Format("02.01.2006")+".")
}

// --- Workouts ---

func (r *Router) handleWorkoutCallback(ctx context.Context, chatID int64, data, cbID string) {
	parts := strings.SplitN(strings.TrimPrefix(data, cbWorkout), ":", 2)
	if len(parts) != 2 {
		r.log.Warn("bad workout callback", zap.String("data", data))
		_ = r.answerCallback(cbID, "❌ Invalid format")
		return
	}
	status, err := domain.ParseStatus(parts[0])
	if err != nil {
		_ = r.answerCallback(cbID, "❌ Invalid status")
		return
	}
	sec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		_ = r.answerCallback(cbID, "❌ Invalid format")
		return
	}
	if _, err := r.svc.User(ctx, chatID); err != nil {
		_ = r.answerCallback(cbID, "")
		r.sendText(chatID, noUserText)
		return
	}

	occurrence := time.Unix(sec, 0).In(r.svc.Location())
	if err := r.svc.ConfirmWorkout(ctx, chatID, occurrence, status); err != nil {
		r.log.Error("confirm workout failed", zap.Error(err), zap.Int64("chatID", chatID))
		_ = r.answerCallback(cbID, "❌ Error")
		return
	}
	r.replyWorkoutLogged(chatID, status, cbID)
}

func (r *Router) replyWorkoutLogged(chatID int64, status domain.Status, cbID string) {
	if status == domain.StatusDone {
		_ = r.answerCallback(cbID, "✅ Counted")
		r.sendWithMarkup(chatID, doneText, mainMenuKeyboard())
		return
	}
	_ = r.answerCallback(cbID, "⚠️ Recorded")
	r.sendWithMarkup(chatID, missedLoggedText, mainMenuKeyboard())
}

// parseLogArgs parses "done|missed [duration] [notes...]".
func parseLogArgs(args string) (domain.Status, *int, *string, error) {
	tokens := strings.Fields(args)
	if len(tokens) == 0 {
		return "", nil, nil, domain.ErrValidation
	}
	status, err := domain.ParseStatus(tokens[0])
	if err != nil {
		return "", nil, nil, err
	}
	rest := tokens[1:]
	var duration *int
	if len(rest) > 0 {
		if d, err := domain.ParseDurationHuman(rest[0]); err == nil {
			mins := int(d / time.Minute)
			duration = &mins
			rest = rest[1:]
		}
	}
	var notes *string
	if len(rest) > 0 {
		n := strings.Join(rest, " ")
		notes = &n
	}
	return status, duration, notes, nil
}

func (r *Router) handleLog(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.sendWithMarkup(chatID, "Choose the workout status:", logStatusKeyboard())
		return
	}
	status, duration, notes, err := parseLogArgs(args)
	if err != nil {
		r.sendText(chatID, logUsageText)
		return
	}
	if _, err := r.svc.LogWorkout(ctx, chatID, status, duration, notes); err != nil {
		r.log.Error("log workout failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	if status == domain.StatusDone {
		r.sendWithMarkup(chatID, doneText, mainMenuKeyboard())
	} else {
		r.sendWithMarkup(chatID, missedLoggedText, mainMenuKeyboard())
	}
}

func (r *Router) handleLogCallback(ctx context.Context, chatID int64, raw, cbID string) {
	status, err := domain.ParseStatus(raw)
	if err != nil {
		_ = r.answerCallback(cbID, "❌ Invalid status")
		return
	}
	if _, err := r.svc.LogWorkout(ctx, chatID, status, nil, nil); err != nil {
		r.log.Error("log workout failed", zap.Error(err), zap.Int64("chatID", chatID))
		_ = r.answerCallback(cbID, "❌ Error")
		return
	}
	r.replyWorkoutLogged(chatID, status, cbID)
}

// --- Weight ---

func (r *Router) handleWeight(ctx context.Context, chatID int64, args string) {
	if args == "" {
		if err := r.sessions.Put(ctx, chatID, session.NewWeightPrompt(r.svc.Now())); err != nil {
			r.log.Error("save session failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendText(chatID, enterWeightText)
		return
	}
	r.saveWeight(ctx, chatID, args)
}

// saveWeight parses and stores a weight; it reports whether it succeeded.
func (r *Router) saveWeight(ctx context.Context, chatID int64, text string) bool {
	w, err := domain.ParseWeight(text)
	if err != nil {
		r.sendText(chatID, badWeightText)
		return false
	}
	prev, err := r.svc.LogWeight(ctx, chatID, w)
	if err != nil {
		r.log.Error("log weight failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save weight.")
		return false
	}
	r.sendWithMarkup(chatID, weightSavedText(w, prev), mainMenuKeyboard())
	return true
}

// --- Calories ---

func (r *Router) handleCalories(ctx context.Context, chatID int64, args string) {
	if args == "" {
		if err := r.sessions.Put(ctx, chatID, session.NewCaloriePrompt(r.svc.Now())); err != nil {
			r.log.Error("save session failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendText(chatID, enterCaloriesText)
		return
	}
	r.saveCalories(ctx, chatID, args)
}

func (r *Router) saveCalories(ctx context.Context, chatID int64, text string) bool {
	kcal, err := domain.ParseCalories(text)
	if err != nil {
		r.sendText(chatID, badCaloriesText)
		return false
	}
	total, err := r.svc.AddCalories(ctx, chatID, kcal)
	if err != nil {
		r.log.Error("add calories failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save calories.")
		return false
	}
	r.sendWithMarkup(chatID, fmt.Sprintf("✅ +%d kcal added.\n\n📅 Today in total: %d kcal", kcal, total), mainMenuKeyboard())
	return true
}

// --- Profile ---

// handleProfile shows the profile or updates one of its fields:
// "target [kg]", "height", "born", "gender", "activity" or "goal".
func (r *Router) handleProfile(ctx context.Context, chatID int64, args string) {
	if _, err := r.svc.User(ctx, chatID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Error("load user failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
		r.sendText(chatID, noUserText)
		return
	}

	fields := strings.Fields(args)
	switch {
	case len(fields) == 0:
		r.showProfile(ctx, chatID)
	case strings.EqualFold(fields[0], "target") && len(fields) == 1:
		if err := r.sessions.Put(ctx, chatID, session.NewTargetWeightPrompt(r.svc.Now())); err != nil {
			r.log.Error("save session failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendText(chatID, enterTargetText)
	case strings.EqualFold(fields[0], "target") && len(fields) == 2:
		r.saveTarget(ctx, chatID, fields[1])
	case len(fields) == 2:
		if _, err := r.svc.UpdateBody(ctx, chatID, fields[0], fields[1]); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				r.sendText(chatID, "❌ "+err.Error()+"\n\n"+profileUsageText)
				return
			}
			r.log.Error("update profile failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.showProfile(ctx, chatID)
	default:
		r.sendText(chatID, profileUsageText)
	}
}

func (r *Router) showProfile(ctx context.Context, chatID int64) {
	p, err := r.svc.Profile(ctx, chatID)
	if err != nil {
		r.log.Error("build profile failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	r.sendWithMarkup(chatID, formatProfile(p), mainMenuKeyboard())
}

// saveTarget parses and stores the target weight; it reports whether it succeeded.
func (r *Router) saveTarget(ctx context.Context, chatID int64, text string) bool {
	w, err := domain.ParseWeight(text)
	if err != nil {
		r.sendText(chatID, badWeightText)
		return false
	}
	if err := r.svc.SetTargetWeight(ctx, chatID, w); err != nil {
		r.log.Error("set target weight failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return false
	}
	r.sendWithMarkup(chatID, fmt.Sprintf("🎯 Target weight saved: %.1f kg", w), mainMenuKeyboard())
	return true
}

// --- Reports ---

func (r *Router) handleReport(ctx context.Context, chatID int64) {
	rep, err := r.svc.CurrentReport(ctx, chatID)
	if err != nil {
		r.log.Error("build report failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	r.sendText(chatID, formatReport("Monthly report", rep))
	if rep.LowDiscipline() {
		r.sendText(chatID, lowDisciplineText)
	}
}

func (r *Router) handleStats(ctx context.Context, chatID int64) {
	rep, err := r.svc.Stats(ctx, chatID)
	if err != nil {
		r.log.Error("build stats failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	r.sendText(chatID, formatReport("Last 30 days", rep))
	if rep.LowDiscipline() {
		r.sendText(chatID, lowDisciplineText)
	}
}

// --- Free-form dispatcher ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	w, err := r.sessions.Get(ctx, chatID)
	if errors.Is(err, session.ErrNoSession) {
		// No pending flow: ignore free-form message
		return
	}
	if err != nil {
		r.log.Error("load session failed", zap.Error(err), zap.Int64("chatID", chatID))
		return
	}

	switch w.State {
	case session.StateEnterTime, session.StateEnterDayTime:
		r.handleTimeInput(ctx, chatID, w, text)
	case session.StateChooseDays:
		r.handleDaysInput(ctx, chatID, w, text)
	case session.StateEnterWeight:
		r.answerPrompt(ctx, chatID, w, r.saveWeight(ctx, chatID, text))
	case session.StateEnterTarget:
		r.answerPrompt(ctx, chatID, w, r.saveTarget(ctx, chatID, text))
	case session.StateEnterCalories:
		r.answerPrompt(ctx, chatID, w, r.saveCalories(ctx, chatID, text))
	default:
		// Waiting for a button press; ignore text.
	}
}

// answerPrompt closes a single-answer prompt once its answer was saved.
func (r *Router) answerPrompt(ctx context.Context, chatID int64, w *session.Wizard, saved bool) {
	if !saved {
		return
	}
	_ = w.Answered(w.State)
	r.dropSession(ctx, chatID)
}

func (r *Router) dropSession(ctx context.Context, chatID int64) {
	if err := r.sessions.Delete(ctx, chatID); err != nil {
		r.log.Warn("delete session failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}
