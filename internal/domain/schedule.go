package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WeekType filters which weeks a schedule entry applies to.
type WeekType string

const (
	WeekAny  WeekType = "any"
	WeekEven WeekType = "even"
	WeekOdd  WeekType = "odd"
)

// ParseWeekType normalizes s into one of the known week types.
func ParseWeekType(s string) (WeekType, error) {
	switch wt := WeekType(strings.ToLower(strings.TrimSpace(s))); wt {
	case WeekAny, WeekEven, WeekOdd:
		return wt, nil
	default:
		return "", fmt.Errorf("%w: unknown week type %q", ErrValidation, s)
	}
}

// Weekday is a Monday-based day of week: Monday = 0 ... Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayShort = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayShort[d]
}

// Valid reports whether d is within 0..6.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// WeekdayOf converts t's day of week to the Monday-based numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// ScheduleEntry is one recurring weekly workout slot.
type ScheduleEntry struct {
	ChatID   int64
	Weekday  Weekday
	Time     string // normalized "HH:MM"
	WeekType WeekType
}

// Minutes returns the entry's time of day as minutes since midnight.
// The entry is assumed to be validated.
func (e ScheduleEntry) Minutes() int {
	m, err := parseHHMM(e.Time)
	if err != nil {
		return 0
	}
	return m
}

// Validate checks weekday, time and week type, normalizing the time in place.
func (e *ScheduleEntry) Validate() error {
	if !e.Weekday.Valid() {
		return fmt.Errorf("%w: weekday %d out of range", ErrValidation, int(e.Weekday))
	}
	t, err := NormalizeTime(e.Time)
	if err != nil {
		return err
	}
	e.Time = t
	wt, err := ParseWeekType(string(e.WeekType))
	if err != nil {
		return err
	}
	e.WeekType = wt
	return nil
}

// ValidateEntries validates a replacement batch for one week type. Any invalid
// entry fails the whole batch; the returned slice is normalized, de-duplicated
// and sorted by weekday and time.
func ValidateEntries(chatID int64, wt WeekType, entries []ScheduleEntry) ([]ScheduleEntry, error) {
	if _, err := ParseWeekType(string(wt)); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no days selected", ErrValidation)
	}
	seen := make(map[ScheduleEntry]struct{}, len(entries))
	out := make([]ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		e.ChatID = chatID
		if e.WeekType == "" {
			e.WeekType = wt
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.WeekType != wt {
			return nil, fmt.Errorf("%w: entry week type %q does not match %q", ErrValidation, e.WeekType, wt)
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	SortEntries(out)
	return out, nil
}

// SortEntries orders entries by weekday, time and week type.
func SortEntries(entries []ScheduleEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.WeekType < b.WeekType
	})
}

// FilterWeekType returns the entries of the given week type.
func FilterWeekType(entries []ScheduleEntry, wt WeekType) []ScheduleEntry {
	var out []ScheduleEntry
	for _, e := range entries {
		if e.WeekType == wt {
			out = append(out, e)
		}
	}
	return out
}

// HasParityEntries reports whether any entry depends on week parity.
func HasParityEntries(entries []ScheduleEntry) bool {
	for _, e := range entries {
		if e.WeekType != WeekAny {
			return true
		}
	}
	return false
}

// Slot is a weekly wall-clock position.
type Slot struct {
	Weekday Weekday
	Minutes int // since midnight
}

func (s Slot) Hour() int   { return s.Minutes / 60 }
func (s Slot) Minute() int { return s.Minutes % 60 }

func (s Slot) String() string {
	return s.Weekday.String() + " " + FormatMinutes(s.Minutes)
}

// slotReference is a Monday used as the anchor for weekly slot arithmetic.
var slotReference = time.Date(2000, time.January, 3, 0, 0, 0, 0, time.UTC)

// ShiftSlot moves a weekly slot by delta using ordinary calendar arithmetic,
// rolling over to neighbouring weekdays: Mon 01:00 shifted by -24h is Sun 01:00.
func ShiftSlot(s Slot, delta time.Duration) Slot {
	base := slotReference.AddDate(0, 0, int(s.Weekday)).Add(time.Duration(s.Minutes) * time.Minute)
	adjusted := base.Add(delta)
	return Slot{
		Weekday: WeekdayOf(adjusted),
		Minutes: adjusted.Hour()*60 + adjusted.Minute(),
	}
}

// SlotOf returns the slot of a validated entry.
func SlotOf(e ScheduleEntry) Slot {
	return Slot{Weekday: e.Weekday, Minutes: e.Minutes()}
}
