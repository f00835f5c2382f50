package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrValidation marks user input that was rejected before any write.
var ErrValidation = errors.New("validation error")

var (
	ErrEmptyDuration   = fmt.Errorf("%w: empty duration", ErrValidation)
	ErrInvalidDuration = fmt.Errorf("%w: invalid duration", ErrValidation)
	ErrTooSmall        = fmt.Errorf("%w: duration too small", ErrValidation)
	ErrTooLarge        = fmt.Errorf("%w: duration too large", ErrValidation)
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*m`)
)

// ParseDurationHuman parses workout durations like "45", "45m", "1h30m", "2h".
// A plain number means minutes. Constraints: 1m <= d <= 12h.
func ParseDurationHuman(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyDuration
	}
	var total time.Duration

	if isAllDigits(s) {
		mins, _ := strconv.Atoi(s)
		total = time.Duration(mins) * time.Minute
	} else {
		if mh := hoursRe.FindStringSubmatch(s); len(mh) == 2 {
			h, _ := strconv.Atoi(mh[1])
			total += time.Duration(h) * time.Hour
		}
		if mm := minutesRe.FindStringSubmatch(s); len(mm) == 2 {
			m, _ := strconv.Atoi(mm[1])
			total += time.Duration(m) * time.Minute
		}
		if total == 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidDuration, s)
		}
	}

	if total < time.Minute {
		return 0, fmt.Errorf("%w: min 1m", ErrTooSmall)
	}
	if total > 12*time.Hour {
		return 0, fmt.Errorf("%w: max 12h", ErrTooLarge)
	}
	return total, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// NormalizeTime validates a 24-hour "H:MM"/"HH:MM" string and zero-pads it.
func NormalizeTime(s string) (string, error) {
	mins, err := parseHHMM(s)
	if err != nil {
		return "", fmt.Errorf("%w: time %q: %v", ErrValidation, s, err)
	}
	return FormatMinutes(mins), nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || !isAllDigits(parts[0]) || !isAllDigits(parts[1]) {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

var weekdayTokens = map[string]Weekday{
	"mo": Monday, "mon": Monday, "monday": Monday,
	"tu": Tuesday, "tue": Tuesday, "tuesday": Tuesday,
	"we": Wednesday, "wed": Wednesday, "wednesday": Wednesday,
	"th": Thursday, "thu": Thursday, "thursday": Thursday,
	"fr": Friday, "fri": Friday, "friday": Friday,
	"sa": Saturday, "sat": Saturday, "saturday": Saturday,
	"su": Sunday, "sun": Sunday, "sunday": Sunday,
}

// ParseWeekdays parses a list like "mon, wed fri" into sorted unique weekdays.
// Unknown tokens are skipped; an empty result is an error.
func ParseWeekdays(s string) ([]Weekday, error) {
	fields := strings.Fields(strings.ReplaceAll(strings.ToLower(s), ",", " "))
	seen := make(map[Weekday]bool, 7)
	for _, f := range fields {
		if d, ok := weekdayTokens[f]; ok {
			seen[d] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: no weekdays in %q", ErrValidation, s)
	}
	days := make([]Weekday, 0, len(seen))
	for d := Monday; d <= Sunday; d++ {
		if seen[d] {
			days = append(days, d)
		}
	}
	return days, nil
}

// ParseWeight parses a positive weight in kg, accepting a comma as decimal separator.
func ParseWeight(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, fmt.Errorf("%w: empty weight", ErrValidation)
	}
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: weight %q", ErrValidation, s)
	}
	if w <= 0 || w > 500 {
		return 0, fmt.Errorf("%w: weight out of range", ErrValidation)
	}
	return w, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	h := mins / 60
	m := mins % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}
