package scheduler

import (
	"fmt"
	"time"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// Kind names what a trigger does when it fires.
type Kind string

const (
	Reminder24h Kind = "reminder-24h"
	Reminder12h Kind = "reminder-12h"
	Reminder6h  Kind = "reminder-6h"
	Reminder3h  Kind = "reminder-3h"
	Reminder2h  Kind = "reminder-2h"
	Reminder1h  Kind = "reminder-1h"
	Confirm     Kind = "confirm"
	MissedCheck Kind = "missed-check"
)

// GracePeriod is how long after an occurrence an unconfirmed workout is marked missed.
const GracePeriod = 3 * time.Hour

// kindOffsets lists every trigger kind with its fire time relative to the
// occurrence, in firing order.
var kindOffsets = []struct {
	kind   Kind
	offset time.Duration
}{
	{Reminder24h, -24 * time.Hour},
	{Reminder12h, -12 * time.Hour},
	{Reminder6h, -6 * time.Hour},
	{Reminder3h, -3 * time.Hour},
	{Reminder2h, -2 * time.Hour},
	{Reminder1h, -time.Hour},
	{Confirm, 0},
	{MissedCheck, GracePeriod},
}

// Kinds returns all trigger kinds in firing order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOffsets))
	for i, k := range kindOffsets {
		out[i] = k.kind
	}
	return out
}

// IsReminder reports whether k is one of the lead-time reminders.
func (k Kind) IsReminder() bool {
	return k != Confirm && k != MissedCheck
}

// Key identifies one installed trigger of a user.
type Key struct {
	ChatID   int64
	Kind     Kind
	Weekday  domain.Weekday
	Time     string
	WeekType domain.WeekType
}

func (k Key) String() string {
	return fmt.Sprintf("user:%d:%s:%d:%s:%s", k.ChatID, k.Kind, int(k.Weekday), k.Time, k.WeekType)
}

// Trigger is a weekly recurring action derived from one schedule entry.
type Trigger struct {
	Key          Key
	Occurrence   domain.Slot   // the workout slot the trigger belongs to
	Fire         domain.Slot   // when the trigger fires each week
	Offset       time.Duration // Fire minus Occurrence
	ParityOffset int
}

// Lead returns how long before the occurrence a reminder fires.
func (t Trigger) Lead() time.Duration {
	return -t.Offset
}

// BuildTriggers expands a user's schedule into every trigger it needs.
// Entries are expected to be validated.
func BuildTriggers(chatID int64, parityOffset int, entries []domain.ScheduleEntry) []Trigger {
	out := make([]Trigger, 0, len(entries)*len(kindOffsets))
	for _, e := range entries {
		occ := domain.SlotOf(e)
		for _, ko := range kindOffsets {
			out = append(out, Trigger{
				Key: Key{
					ChatID:   chatID,
					Kind:     ko.kind,
					Weekday:  e.Weekday,
					Time:     e.Time,
					WeekType: e.WeekType,
				},
				Occurrence:   occ,
				Fire:         domain.ShiftSlot(occ, ko.offset),
				Offset:       ko.offset,
				ParityOffset: parityOffset,
			})
		}
	}
	return out
}

// OccurrenceAt returns the canonical occurrence instant for a trigger that
// fired at firedAt: the fire instant minus the trigger offset, snapped to the
// nearest instant carrying the occurrence slot's weekday and time. It is
// computed once per firing and threaded through every later decision.
func OccurrenceAt(firedAt time.Time, occ domain.Slot, offset time.Duration) time.Time {
	expected := firedAt.Add(-offset)
	loc := expected.Location()

	var (
		best     time.Time
		bestDist time.Duration
	)
	for d := -3; d <= 3; d++ {
		day := time.Date(expected.Year(), expected.Month(), expected.Day()+d, occ.Hour(), occ.Minute(), 0, 0, loc)
		if domain.WeekdayOf(day) != occ.Weekday {
			continue
		}
		dist := day.Sub(expected)
		if dist < 0 {
			dist = -dist
		}
		if best.IsZero() || dist < bestDist {
			best, bestDist = day, dist
		}
	}
	return best
}

// ShouldAct decides whether a firing acts for the occurrence or stays silent
// because the occurrence falls into a week the entry does not apply to.
func ShouldAct(t Trigger, occurrence time.Time) bool {
	return domain.IsOccurrenceAllowed(occurrence, t.ParityOffset, t.Key.WeekType)
}
