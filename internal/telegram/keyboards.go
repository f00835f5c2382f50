package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// Callback data prefixes.
const (
	cbMode     = "mode:"     // mode:any|even|odd|view|clear
	cbDay      = "day:"      // day:toggle:<n>|day:reset|day:done
	cbTimeMode = "timemode:" // timemode:single|perday
	cbParity   = "parity:"   // parity:even|odd
	cbWorkout  = "workout:"  // workout:done|missed:<unix>
	cbLog      = "log:"      // log:done|missed
)

// mainMenuKeyboard is the persistent reply keyboard.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/schedule"),
			tgbotapi.NewKeyboardButton("/weight"),
			tgbotapi.NewKeyboardButton("/calories"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/report"),
			tgbotapi.NewKeyboardButton("/stats"),
			tgbotapi.NewKeyboardButton("/profile"),
		),
	)
}

func scheduleModeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Every week", cbMode+string(domain.WeekAny)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("2️⃣ Even weeks", cbMode+string(domain.WeekEven)),
			tgbotapi.NewInlineKeyboardButtonData("1️⃣ Odd weeks", cbMode+string(domain.WeekOdd)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👀 View", cbMode+"view"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear", cbMode+"clear"),
		),
	)
}

// weekdaysKeyboard marks selected days with a check.
func weekdaysKeyboard(selected []domain.Weekday) tgbotapi.InlineKeyboardMarkup {
	isSel := make(map[domain.Weekday]bool, len(selected))
	for _, d := range selected {
		isSel[d] = true
	}
	button := func(d domain.Weekday) tgbotapi.InlineKeyboardButton {
		label := d.String()
		if isSel[d] {
			label = "✅ " + label
		}
		return tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%stoggle:%d", cbDay, int(d)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(domain.Monday), button(domain.Tuesday), button(domain.Wednesday), button(domain.Thursday)),
		tgbotapi.NewInlineKeyboardRow(button(domain.Friday), button(domain.Saturday), button(domain.Sunday)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Reset", cbDay+"reset"),
			tgbotapi.NewInlineKeyboardButtonData("✔️ Done", cbDay+"done"),
		),
	)
}

func timeModeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏰ Same time", cbTimeMode+"single"),
			tgbotapi.NewInlineKeyboardButtonData("🕐 Per day", cbTimeMode+"perday"),
		),
	)
}

func parityKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Even", cbParity+"even"),
			tgbotapi.NewInlineKeyboardButtonData("Odd", cbParity+"odd"),
		),
	)
}

// workoutKeyboard carries the occurrence instant so the answer is logged
// against the exact occurrence that was asked about.
func workoutKeyboard(occurrence time.Time) tgbotapi.InlineKeyboardMarkup {
	at := strconv.FormatInt(occurrence.Unix(), 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbWorkout+string(domain.StatusDone)+":"+at),
			tgbotapi.NewInlineKeyboardButtonData("❌ Missed", cbWorkout+string(domain.StatusMissed)+":"+at),
		),
	)
}

func logStatusKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbLog+string(domain.StatusDone)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Missed", cbLog+string(domain.StatusMissed)),
		),
	)
}
