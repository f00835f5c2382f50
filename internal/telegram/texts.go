package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/ykvlv/discipline-bot/internal/domain"
	"github.com/ykvlv/discipline-bot/internal/tracker"
)

// UI texts in English
const (
	startText = "👋 I am your workout discipline bot.\n\n" +
		"Set your weekly training schedule and I will remind you 24, 12, 6, 3, 2 and 1 hours before, " +
		"ask whether you trained, and count the workouts you skip.\n\n" +
		"Every Monday I ask for your weight; on the 1st you get a monthly report.\n\n" +
		"Start with /schedule."
	welcomeBackText = "👋 Welcome back! Use /schedule to change your plan or /report to see your progress."
	helpText        = "Commands:\n" +
		"/schedule — view or change your training schedule\n" +
		"/log done|missed [minutes] [notes] — log a workout now\n" +
		"/weight 82.4 — record your weight\n" +
		"/calories 450 — add calories eaten today\n" +
		"/profile — your goal, weight and calorie norm\n" +
		"/report — this month's report\n" +
		"/stats — last 30 days\n" +
		"/status — your access\n" +
		"/cancel — abort the current dialog"

	noUserText         = "👋 Please run /start first."
	noAccessText       = "⛔ Your trial has ended. Subscribe to keep tracking your workouts.\n\nSee /status."
	sessionResetText   = "⚠️ Session reset.\n\nPlease run /schedule again."
	genericErrorText   = "Something went wrong. Please try again later."
	cancelledText      = "Cancelled."
	chooseModeText     = "What do you want to set up?"
	chooseDaysText     = "📅 Choose training days, then press \"Done\".\n\nOr type them, e.g. mon wed fri"
	noDaysText         = "⚠️ Select at least one day"
	badDaysText        = "❌ No days recognized. Type e.g. mon wed fri or use the buttons."
	chooseTimeModeText = "⏰ One time for all days or a separate time for each day?"
	enterTimeText      = "⏰ Enter the workout time as HH:MM, e.g. 19:30"
	badTimeText        = "❌ Invalid time. Use HH:MM, e.g. 19:30 or 08:00"
	chooseParityText   = "📆 Which week is it now on your schedule?"
	enterWeightText    = "⚖️ Send your current weight in kg, e.g. 82.4"
	badWeightText      = "❌ Invalid weight. Send a number in kg, e.g. 82.4"
	logUsageText       = "Usage: /log done|missed [minutes] [notes]\nExample: /log done 45 legs"
	grantUsageText     = "Usage: /grant <chat id> [months]"
	doneText           = "✅ Workout counted!\n\n💪 Great job, keep the rhythm!"
	missedLoggedText   = "⚠️ Skip recorded.\n\n💪 Don't give up, make the next one count!"
	enterTargetText    = "🎯 Send your target weight in kg, e.g. 75"
	enterCaloriesText  = "🔥 Send the calories you ate as a whole number, e.g. 450"
	badCaloriesText    = "❌ Invalid calories. Send a whole number, e.g. 450 or 1200"
	lowDisciplineText  = "⚠️ Warning!\n\nYour discipline is below 70%.\n\n💪 Consistency is the foundation of progress. Get back on track!"
	profileUsageText   = "Usage:\n/profile target 75\n/profile height 180\n/profile born 1990\n/profile gender m|f\n" +
		"/profile activity sedentary|light|moderate|active|very_active\n/profile goal lose|maintain|gain"
)

// weekTypeLabel names a week type for humans.
func weekTypeLabel(wt domain.WeekType) string {
	switch wt {
	case domain.WeekEven:
		return "Even weeks"
	case domain.WeekOdd:
		return "Odd weeks"
	default:
		return "Every week"
	}
}

// formatSchedule groups entries by week type.
func formatSchedule(entries []domain.ScheduleEntry) string {
	if len(entries) == 0 {
		return "⚠️ No schedule yet."
	}
	var b strings.Builder
	for _, wt := range []domain.WeekType{domain.WeekAny, domain.WeekEven, domain.WeekOdd} {
		group := domain.FilterWeekType(entries, wt)
		if len(group) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("📅 " + weekTypeLabel(wt) + ":")
		for _, e := range group {
			fmt.Fprintf(&b, "\n• %s %s", e.Weekday, e.Time)
		}
	}
	return b.String()
}

func formatDays(days []domain.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}

func formatLead(lead time.Duration) string {
	h := int(lead.Hours())
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}

func formatOccurrence(t time.Time) string {
	return t.Format("Mon 02.01 15:04")
}

func reminderText(lead time.Duration, occurrence time.Time) string {
	return fmt.Sprintf("⏰ Workout in %s: %s.\n\nGet ready!", formatLead(lead), formatOccurrence(occurrence))
}

func confirmationText(occurrence time.Time) string {
	return fmt.Sprintf("🏋️ Workout time: %s.\n\nDid you train?", formatOccurrence(occurrence))
}

func missedText(occurrence time.Time) string {
	return fmt.Sprintf("❌ The workout on %s was not confirmed and is marked as missed.", formatOccurrence(occurrence))
}

func weighInText(last *domain.WeightEntry, now time.Time) string {
	if last == nil {
		return "⚖️ Weekly weigh-in!\n\nSend your current weight, e.g. /weight 82.4"
	}
	days := int(now.Sub(last.At).Hours() / 24)
	return fmt.Sprintf("⚖️ Weekly weigh-in!\n\nLast time: %.1f kg, %d days ago.\nSend your current weight, e.g. /weight 82.4", last.Weight, days)
}

func weightSavedText(w float64, prev *domain.WeightEntry) string {
	if prev == nil {
		return fmt.Sprintf("✅ Weight saved: %.1f kg", w)
	}
	return fmt.Sprintf("✅ Weight saved: %.1f kg (%+.1f kg since last time)", w, w-prev.Weight)
}

func optKg(v *float64) string {
	if v == nil {
		return "no data"
	}
	return fmt.Sprintf("%.1f kg", *v)
}

func formatReport(title string, r domain.MonthlyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s\n📅 %s — %s\n\n", title, r.Start.Format("02.01.2006"), r.End.Format("02.01.2006"))
	fmt.Fprintf(&b, "🏋️ Workouts:\n• Scheduled: %d\n• Done: %d\n• Missed: %d\n\n", r.Scheduled, r.Completed, r.Missed)
	fmt.Fprintf(&b, "📈 Discipline: %.1f%%\n\n", r.Score)
	b.WriteString("⚖️ Weight:\n")
	fmt.Fprintf(&b, "• Start: %s\n• End: %s\n", optKg(r.StartWeight), optKg(r.EndWeight))
	if r.Diff != nil {
		fmt.Fprintf(&b, "• Change: %+.2f kg", *r.Diff)
		if r.DiffPercent != nil {
			fmt.Fprintf(&b, " (%+.2f%%)", *r.DiffPercent)
		}
	} else {
		b.WriteString("• Change: no data")
	}
	if len(r.Points) > 1 {
		b.WriteString("\n\n📉 Progress:")
		for _, p := range r.Points {
			fmt.Fprintf(&b, "\n%s  %.1f kg", p.At.Format("02.01"), p.Weight)
		}
	}
	return b.String()
}

var goalLabels = map[domain.Goal]string{
	domain.GoalLose:     "lose weight",
	domain.GoalMaintain: "maintain",
	domain.GoalGain:     "gain mass",
}

func formatProfile(p tracker.Profile) string {
	var b strings.Builder
	b.WriteString("📊 Profile\n\n")
	if p.User.TargetWeight != nil {
		fmt.Fprintf(&b, "🎯 Target weight: %.1f kg\n", *p.User.TargetWeight)
	} else {
		b.WriteString("🎯 Target weight: not set (/profile target 75)\n")
	}
	if p.Latest != nil {
		fmt.Fprintf(&b, "⚖️ Current weight: %.1f kg\n", p.Latest.Weight)
	} else {
		b.WriteString("⚖️ Current weight: no data\n")
	}

	if c := p.Calories; c != nil {
		b.WriteString("\n🔥 Calorie norm (Mifflin–St Jeor)\n")
		fmt.Fprintf(&b, "• Basal metabolism: %.0f kcal\n", c.BMR)
		fmt.Fprintf(&b, "• Daily expenditure: %.0f kcal/day\n", c.TDEE)
		fmt.Fprintf(&b, "• Goal %s: %d kcal/day\n", goalLabels[c.Goal], c.DailyTarget)
		fmt.Fprintf(&b, "• BMI: %.1f (%s)\n", c.BMI, c.BMICategory)
		fmt.Fprintf(&b, "• Eaten today: %d kcal\n", p.TodayCalories)
	} else {
		b.WriteString("\n⚠️ Set height, birth year and gender to get your calorie norm and BMI. See /profile help.\n")
	}

	b.WriteString("\n" + formatSchedule(p.Schedule) + "\n")
	if p.WeekEven != nil {
		if *p.WeekEven {
			b.WriteString("\n📆 Current week: even\n")
		} else {
			b.WriteString("\n📆 Current week: odd\n")
		}
	}
	b.WriteString("\n" + statusText(p.Access))
	return b.String()
}

func statusText(st domain.AccessStatus) string {
	switch st.Kind {
	case domain.AccessAdmin:
		return "👑 Admin: unlimited access."
	case domain.AccessSubscribed:
		return "✅ Subscription active until " + st.Until.Format("02.01.2006") + "."
	case domain.AccessTrial:
		return fmt.Sprintf("🆓 Trial: %d day(s) left.", st.DaysLeft)
	case domain.AccessExpired:
		return "⛔ Trial ended. Ask an admin to activate your subscription."
	default:
		return noUserText
	}
}
