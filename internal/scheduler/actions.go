package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// Notifier delivers trigger effects to a user. Implementations render text;
// the scheduler only decides what to send and when.
type Notifier interface {
	SendReminder(chatID int64, lead time.Duration, occurrence time.Time) error
	SendConfirmation(chatID int64, occurrence time.Time) error
	SendMissed(chatID int64, occurrence time.Time) error
}

// LogWriter is the store capability the missed-check needs.
type LogWriter interface {
	InsertWorkoutLogIfAbsent(ctx context.Context, l domain.WorkoutLog) (bool, error)
}

// Dispatcher performs trigger actions. Failures are logged per firing and
// never retried; next week's firing gets another chance.
type Dispatcher struct {
	logs   LogWriter
	notify Notifier
	log    *zap.Logger
}

var _ Handler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher writing missed logs to logs.
func NewDispatcher(logs LogWriter, notify Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{logs: logs, notify: notify, log: log}
}

// Fire handles one firing of t.
func (d *Dispatcher) Fire(ctx context.Context, t Trigger, firedAt time.Time) {
	occurrence := OccurrenceAt(firedAt, t.Occurrence, t.Offset)
	log := d.log.With(
		zap.String("fireID", uuid.NewString()),
		zap.Int64("chatID", t.Key.ChatID),
		zap.String("kind", string(t.Key.Kind)),
		zap.String("weekType", string(t.Key.WeekType)),
		zap.Time("occurrence", occurrence),
	)

	if !ShouldAct(t, occurrence) {
		log.Debug("trigger skipped: week type does not match")
		return
	}

	switch {
	case t.Key.Kind.IsReminder():
		if err := d.notify.SendReminder(t.Key.ChatID, t.Lead(), occurrence); err != nil {
			log.Error("send reminder failed", zap.Error(err))
			return
		}
		log.Info("reminder sent")

	case t.Key.Kind == Confirm:
		if err := d.notify.SendConfirmation(t.Key.ChatID, occurrence); err != nil {
			log.Error("send confirmation failed", zap.Error(err))
			return
		}
		log.Info("confirmation requested")

	case t.Key.Kind == MissedCheck:
		d.markMissed(ctx, log, t.Key.ChatID, occurrence)
	}
}

// markMissed records a missed workout unless the occurrence already has a log.
func (d *Dispatcher) markMissed(ctx context.Context, log *zap.Logger, chatID int64, occurrence time.Time) {
	inserted, err := d.logs.InsertWorkoutLogIfAbsent(ctx, domain.WorkoutLog{
		ChatID: chatID,
		At:     occurrence,
		Status: domain.StatusMissed,
	})
	if err != nil {
		log.Error("missed-check store failed", zap.Error(err))
		return
	}
	if !inserted {
		log.Debug("occurrence already logged")
		return
	}
	log.Info("workout marked missed")
	if err := d.notify.SendMissed(chatID, occurrence); err != nil {
		log.Error("send missed notice failed", zap.Error(err))
	}
}
