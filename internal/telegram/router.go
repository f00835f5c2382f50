package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/discipline-bot/internal/session"
	"github.com/ykvlv/discipline-bot/internal/tracker"
)

// BotAPI is the part of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router wires Telegram updates to handlers and keeps wizard state in sessions.
type Router struct {
	*Sender
	log      *zap.Logger
	svc      *tracker.Service
	sessions session.Store
}

// NewRouter creates a new Telegram router replying through sender.
func NewRouter(sender *Sender, log *zap.Logger, svc *tracker.Service, sessions session.Store) *Router {
	return &Router{
		Sender:   sender,
		log:      log,
		svc:      svc,
		sessions: sessions,
	}
}

// splitCommand returns "/cmd" without a "@botname" suffix and the rest of
// the text, or empty cmd for plain text.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		cmd, args := splitCommand(strings.TrimSpace(msg.Text))

		switch cmd {
		case "/start":
			r.handleStart(ctx, chatID)
		case "/help":
			r.sendText(chatID, helpText)
		case "/cancel":
			r.handleCancel(ctx, chatID)
		case "/status":
			r.handleStatus(ctx, chatID)
		case "/grant":
			r.handleGrant(ctx, chatID, args)
		case "/profile":
			r.handleProfile(ctx, chatID, args)
		case "/schedule":
			if r.requireAccess(ctx, chatID) {
				r.handleSchedule(ctx, chatID)
			}
		case "/log":
			if r.requireAccess(ctx, chatID) {
				r.handleLog(ctx, chatID, args)
			}
		case "/weight":
			if r.requireAccess(ctx, chatID) {
				r.handleWeight(ctx, chatID, args)
			}
		case "/calories":
			if r.requireAccess(ctx, chatID) {
				r.handleCalories(ctx, chatID, args)
			}
		case "/report":
			if r.requireAccess(ctx, chatID) {
				r.handleReport(ctx, chatID)
			}
		case "/stats":
			if r.requireAccess(ctx, chatID) {
				r.handleStats(ctx, chatID)
			}
		case "":
			// Free-form text answers the pending wizard step, if any.
			r.handleFreeForm(ctx, chatID, args)
		default:
			r.sendText(chatID, helpText)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			_ = r.answerCallback(cb.ID, "")
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID
		messageID := cb.Message.MessageID

		switch {
		case strings.HasPrefix(data, cbWorkout):
			r.handleWorkoutCallback(ctx, chatID, data, cb.ID)
		case !r.requireAccess(ctx, chatID):
			_ = r.answerCallback(cb.ID, "")

		case strings.HasPrefix(data, cbMode):
			r.handleModeCallback(ctx, chatID, strings.TrimPrefix(data, cbMode), cb.ID)
		case strings.HasPrefix(data, cbDay):
			r.handleDayCallback(ctx, chatID, messageID, strings.TrimPrefix(data, cbDay), cb.ID)
		case strings.HasPrefix(data, cbTimeMode):
			r.handleTimeModeCallback(ctx, chatID, strings.TrimPrefix(data, cbTimeMode), cb.ID)
		case strings.HasPrefix(data, cbParity):
			r.handleParityCallback(ctx, chatID, strings.TrimPrefix(data, cbParity), cb.ID)
		case strings.HasPrefix(data, cbLog):
			r.handleLogCallback(ctx, chatID, strings.TrimPrefix(data, cbLog), cb.ID)

		default:
			// Unknown callback: ignore silently
			_ = r.answerCallback(cb.ID, "")
		}
	}
}
