package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/scheduler"
)

// Sender delivers outgoing messages through one rate limiter shared by all
// chats. It renders scheduler notifications into chat texts.
type Sender struct {
	bot     BotAPI
	log     *zap.Logger
	limiter *rate.Limiter
}

var (
	_ scheduler.Notifier  = (*Sender)(nil)
	_ scheduler.Announcer = (*Sender)(nil)
)

// NewSender creates a sender allowing perSecond messages with an equal burst.
func NewSender(bot BotAPI, log *zap.Logger, perSecond float64) *Sender {
	if perSecond <= 0 {
		perSecond = 25
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Sender{bot: bot, log: log, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// send delivers c once the global rate limiter allows it.
func (r *Sender) send(c tgbotapi.Chattable) error {
	if err := r.limiter.Wait(context.Background()); err != nil {
		return err
	}
	_, err := r.bot.Send(c)
	return err
}

// sendText sends a plain text message; failures are logged only.
func (r *Sender) sendText(chatID int64, text string) {
	if err := r.send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Sender) sendWithMarkup(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if err := r.send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Sender) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// SendMessage sends a plain text message to the given chat.
func (r *Sender) SendMessage(chatID int64, text string) error {
	return r.send(tgbotapi.NewMessage(chatID, text))
}

// SendReminder announces an upcoming workout.
func (r *Sender) SendReminder(chatID int64, lead time.Duration, occurrence time.Time) error {
	return r.SendMessage(chatID, reminderText(lead, occurrence))
}

// SendConfirmation asks whether the workout at occurrence happened.
func (r *Sender) SendConfirmation(chatID int64, occurrence time.Time) error {
	msg := tgbotapi.NewMessage(chatID, confirmationText(occurrence))
	msg.ReplyMarkup = workoutKeyboard(occurrence)
	return r.send(msg)
}

// SendMissed tells the user an unconfirmed workout was marked missed.
func (r *Sender) SendMissed(chatID int64, occurrence time.Time) error {
	return r.SendMessage(chatID, missedText(occurrence))
}

// SendWeighInPrompt asks for the weekly weight.
func (r *Sender) SendWeighInPrompt(chatID int64, last *domain.WeightEntry, now time.Time) error {
	return r.SendMessage(chatID, weighInText(last, now))
}

// SendMonthlyReport delivers a finished month's report, with a warning when
// discipline is low.
func (r *Sender) SendMonthlyReport(chatID int64, rep domain.MonthlyReport) error {
	if err := r.SendMessage(chatID, formatReport("Monthly report", rep)); err != nil {
		return err
	}
	if rep.LowDiscipline() {
		return r.SendMessage(chatID, lowDisciplineText)
	}
	return nil
}
