package domain

import "time"

// IsEvenWeek reports whether t falls into an even ISO week.
func IsEvenWeek(t time.Time) bool {
	_, week := t.ISOWeek()
	return week%2 == 0
}

// UserWeekOffset returns the offset that makes the week containing ref
// even (claimsEven) or odd for the user. The result is stable forever since
// ISO parity flips every seven days.
func UserWeekOffset(ref time.Time, claimsEven bool) int {
	if IsEvenWeek(ref) == claimsEven {
		return 0
	}
	return 1
}

// IsUserWeekEven applies the user's offset to the ISO week parity of t.
func IsUserWeekEven(t time.Time, offset int) bool {
	even := IsEvenWeek(t)
	if offset%2 != 0 {
		return !even
	}
	return even
}

// IsOccurrenceAllowed reports whether an occurrence at t passes the week-type filter.
// Parity must be computed from the occurrence instant itself, never from a cached week.
func IsOccurrenceAllowed(t time.Time, offset int, wt WeekType) bool {
	switch wt {
	case WeekEven:
		return IsUserWeekEven(t, offset)
	case WeekOdd:
		return !IsUserWeekEven(t, offset)
	default:
		return true
	}
}
