package domain

import (
	"math"
	"time"
)

// CountScheduled counts the occurrences the schedule asked for in the inclusive
// calendar-day range [start, end], evaluated in start's location. Entries with
// different week types on the same weekday count independently.
func CountScheduled(entries []ScheduleEntry, start, end time.Time, offset int) int {
	if start.After(end) {
		return 0
	}
	byWeekday := make(map[Weekday][]WeekType, 7)
	for _, e := range entries {
		byWeekday[e.Weekday] = append(byWeekday[e.Weekday], e.WeekType)
	}

	loc := start.Location()
	day := dateOf(start, loc)
	last := dateOf(end.In(loc), loc)
	total := 0
	for !day.After(last) {
		for _, wt := range byWeekday[WeekdayOf(day)] {
			if IsOccurrenceAllowed(day, offset, wt) {
				total++
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// Score is the share of scheduled occurrences completed, in percent with two decimals.
func Score(completed, scheduled int) float64 {
	if scheduled <= 0 {
		return 0
	}
	return round2(float64(completed) / float64(scheduled) * 100)
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
