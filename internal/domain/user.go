package domain

import "time"

// User represents a registered chat and its tracking settings.
type User struct {
	ChatID             int64
	TargetWeight       *float64   // kg, nullable
	WeekParityOffset   *int       // 0 or 1, nil until the user answers the parity question
	CreatedAt          time.Time  // UTC
	SubscriptionEndsAt *time.Time // date (UTC midnight), nullable
	Body               BodyParams
}

// ParityOffset returns the stored week parity offset, or 0 when unset.
func (u *User) ParityOffset() int {
	if u == nil || u.WeekParityOffset == nil {
		return 0
	}
	return *u.WeekParityOffset
}
