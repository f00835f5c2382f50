package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/session"
)

// --- Schedule wizard ---

func (r *Router) handleSchedule(ctx context.Context, chatID int64) {
	entries, err := r.svc.Schedule(ctx, chatID)
	if err != nil {
		r.log.Error("load schedule failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	if err := r.sessions.Put(ctx, chatID, session.NewScheduleWizard(r.svc.Now())); err != nil {
		r.log.Error("save session failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return
	}
	r.sendWithMarkup(chatID, "📋 Your schedule\n\n"+formatSchedule(entries)+"\n\n"+chooseModeText, scheduleModeKeyboard())
}

// loadWizard returns the chat's wizard or tells the user the session is gone.
func (r *Router) loadWizard(ctx context.Context, chatID int64) (*session.Wizard, bool) {
	w, err := r.sessions.Get(ctx, chatID)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			r.log.Error("load session failed", zap.Error(err), zap.Int64("chatID", chatID))
		}
		r.sendText(chatID, sessionResetText)
		return nil, false
	}
	return w, true
}

// stepFailed reports a rejected wizard step; out-of-order input resets the session.
func (r *Router) stepFailed(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, session.ErrUnexpectedStep) {
		r.dropSession(ctx, chatID)
		r.sendText(chatID, sessionResetText)
		return
	}
	r.log.Error("wizard step failed", zap.Error(err), zap.Int64("chatID", chatID))
	r.sendText(chatID, genericErrorText)
}

func (r *Router) saveWizard(ctx context.Context, chatID int64, w *session.Wizard) bool {
	if err := r.sessions.Put(ctx, chatID, w); err != nil {
		r.log.Error("save session failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, genericErrorText)
		return false
	}
	return true
}

func (r *Router) handleModeCallback(ctx context.Context, chatID int64, mode, cbID string) {
	_ = r.answerCallback(cbID, "")

	switch mode {
	case "view":
		r.dropSession(ctx, chatID)
		entries, err := r.svc.Schedule(ctx, chatID)
		if err != nil {
			r.log.Error("load schedule failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendWithMarkup(chatID, "📋 Your schedule\n\n"+formatSchedule(entries), mainMenuKeyboard())
		return
	case "clear":
		r.dropSession(ctx, chatID)
		if err := r.svc.ClearSchedule(ctx, chatID); err != nil {
			r.log.Error("clear schedule failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, genericErrorText)
			return
		}
		r.sendWithMarkup(chatID, "🗑 Schedule cleared. No more reminders.", mainMenuKeyboard())
		return
	}

	wt, err := domain.ParseWeekType(mode)
	if err != nil {
		r.sendText(chatID, "❌ Invalid choice")
		return
	}
	w, ok := r.loadWizard(ctx, chatID)
	if !ok {
		return
	}
	if err := w.ChooseMode(wt); err != nil {
		r.stepFailed(ctx, chatID, err)
		return
	}
	if !r.saveWizard(ctx, chatID, w) {
		return
	}

	text := "Setting up: " + weekTypeLabel(wt) + "\n\n"
	if entries, err := r.svc.Schedule(ctx, chatID); err == nil {
		if current := domain.FilterWeekType(entries, wt); len(current) > 0 {
			text += "Current:\n" + formatSchedule(current) + "\n\n⚠️ The new schedule will replace it.\n\n"
		}
	}
	r.sendWithMarkup(chatID, text+chooseDaysText, weekdaysKeyboard(nil))
}

func (r *Router) handleDayCallback(ctx context.Context, chatID int64, messageID int, action, cbID string) {
	w, ok := r.loadWizard(ctx, chatID)
	if !ok {
		_ = r.answerCallback(cbID, "")
		return
	}

	var err error
	switch {
	case strings.HasPrefix(action, "toggle:"):
		n, convErr := strconv.Atoi(strings.TrimPrefix(action, "toggle:"))
		if convErr != nil {
			_ = r.answerCallback(cbID, "❌ Invalid choice")
			return
		}
		err = w.ToggleDay(domain.Weekday(n))
	case action == "reset":
		err = w.ResetDays()
	case action == "done":
		err = w.DaysDone()
		if errors.Is(err, session.ErrNoDays) {
			_, _ = r.bot.Request(tgbotapi.NewCallbackWithAlert(cbID, noDaysText))
			return
		}
	default:
		_ = r.answerCallback(cbID, "")
		return
	}
	if err != nil {
		_ = r.answerCallback(cbID, "")
		r.stepFailed(ctx, chatID, err)
		return
	}
	if !r.saveWizard(ctx, chatID, w) {
		_ = r.answerCallback(cbID, "")
		return
	}
	_ = r.answerCallback(cbID, "")

	if w.State == session.StateChooseDays {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, weekdaysKeyboard(w.Days))
		if _, err := r.bot.Request(edit); err != nil {
			r.log.Debug("edit keyboard failed", zap.Error(err))
		}
		return
	}
	r.sendWithMarkup(chatID, "✅ Days: "+formatDays(w.Days)+"\n\n"+chooseTimeModeText, timeModeKeyboard())
}

// handleDaysInput accepts the day selection typed as text.
func (r *Router) handleDaysInput(ctx context.Context, chatID int64, w *session.Wizard, text string) {
	err := w.EnterDays(text)
	switch {
	case errors.Is(err, domain.ErrValidation):
		r.sendText(chatID, badDaysText)
		return
	case err != nil:
		r.stepFailed(ctx, chatID, err)
		return
	}
	if r.saveWizard(ctx, chatID, w) {
		r.sendWithMarkup(chatID, "✅ Days: "+formatDays(w.Days)+"\n\n"+chooseTimeModeText, timeModeKeyboard())
	}
}

func (r *Router) handleTimeModeCallback(ctx context.Context, chatID int64, mode, cbID string) {
	_ = r.answerCallback(cbID, "")
	w, ok := r.loadWizard(ctx, chatID)
	if !ok {
		return
	}
	if mode != "single" && mode != "perday" {
		r.sendText(chatID, "❌ Invalid choice")
		return
	}
	if err := w.ChooseTimeMode(mode == "perday"); err != nil {
		r.stepFailed(ctx, chatID, err)
		return
	}
	if !r.saveWizard(ctx, chatID, w) {
		return
	}
	if w.State == session.StateEnterDayTime {
		r.askDayTime(chatID, w)
		return
	}
	r.sendText(chatID, "✅ Days: "+formatDays(w.Days)+"\n\n"+enterTimeText)
}

func (r *Router) askDayTime(chatID int64, w *session.Wizard) {
	day, pos := w.CurrentDay()
	r.sendText(chatID, fmt.Sprintf("📅 Day %d of %d: %s\n\n%s", pos, len(w.Days), day, enterTimeText))
}

// handleTimeInput accepts the shared time or the time of the current day.
func (r *Router) handleTimeInput(ctx context.Context, chatID int64, w *session.Wizard, text string) {
	var err error
	if w.State == session.StateEnterTime {
		err = w.EnterTime(text)
	} else {
		err = w.EnterDayTime(text)
	}
	switch {
	case errors.Is(err, domain.ErrValidation):
		r.sendText(chatID, badTimeText)
		return
	case err != nil:
		r.stepFailed(ctx, chatID, err)
		return
	}

	switch w.State {
	case session.StateEnterDayTime:
		if r.saveWizard(ctx, chatID, w) {
			r.askDayTime(chatID, w)
		}
	case session.StateChooseParity:
		if r.saveWizard(ctx, chatID, w) {
			r.sendWithMarkup(chatID, "Setting up: "+weekTypeLabel(w.WeekType)+"\n\n"+chooseParityText, parityKeyboard())
		}
	case session.StateDone:
		r.finishWizard(ctx, chatID, w)
	}
}

func (r *Router) handleParityCallback(ctx context.Context, chatID int64, parity, cbID string) {
	_ = r.answerCallback(cbID, "")
	if parity != "even" && parity != "odd" {
		r.sendText(chatID, "❌ Invalid choice")
		return
	}
	w, ok := r.loadWizard(ctx, chatID)
	if !ok {
		return
	}
	if err := w.ChooseParity(parity == "even"); err != nil {
		r.stepFailed(ctx, chatID, err)
		return
	}
	r.finishWizard(ctx, chatID, w)
}

// finishWizard saves the collected batch and replans the user's triggers.
func (r *Router) finishWizard(ctx context.Context, chatID int64, w *session.Wizard) {
	r.dropSession(ctx, chatID)
	if _, err := r.svc.SetScheduleForWeekType(ctx, chatID, w.WeekType, w.Entries(), w.Parity); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			r.sendText(chatID, "❌ "+err.Error()+"\n\nPlease run /schedule again.")
			return
		}
		r.log.Error("save schedule failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Could not save schedule.")
		return
	}
	entries, err := r.svc.Schedule(ctx, chatID)
	if err != nil {
		r.log.Error("load schedule failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "✅ Schedule updated!")
		return
	}
	r.sendWithMarkup(chatID, "✅ Schedule updated!\n\n"+formatSchedule(entries), mainMenuKeyboard())
}
