package domain

import "time"

const (
	DefaultTrialDays  = 5
	daysPerSubMonth   = 30
	SubscriptionMonth = 1
)

// AccessGate decides whether a user may use the bot: admins always, otherwise
// an active subscription or a trial that has not yet ended.
type AccessGate struct {
	TrialDays int
	Admins    map[int64]bool
	Loc       *time.Location
}

// NewAccessGate builds a gate for the given admin ids.
func NewAccessGate(trialDays int, admins []int64, loc *time.Location) AccessGate {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	if loc == nil {
		loc = time.UTC
	}
	m := make(map[int64]bool, len(admins))
	for _, id := range admins {
		m[id] = true
	}
	return AccessGate{TrialDays: trialDays, Admins: m, Loc: loc}
}

// IsAdmin reports whether chatID is configured as an admin.
func (g AccessGate) IsAdmin(chatID int64) bool { return g.Admins[chatID] }

// SubscriptionActive reports whether u's subscription covers now's date.
func (g AccessGate) SubscriptionActive(u *User, now time.Time) bool {
	if u == nil || u.SubscriptionEndsAt == nil {
		return false
	}
	end := u.SubscriptionEndsAt.UTC()
	endDate := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return !endDate.Before(g.date(now))
}

// TrialEnd returns the last day of u's trial.
func (g AccessGate) TrialEnd(u *User) time.Time {
	return g.date(u.CreatedAt).AddDate(0, 0, g.TrialDays)
}

// HasAccess reports whether chatID may use tracking features at now.
func (g AccessGate) HasAccess(chatID int64, u *User, now time.Time) bool {
	if g.IsAdmin(chatID) {
		return true
	}
	if u == nil {
		return false
	}
	if g.SubscriptionActive(u, now) {
		return true
	}
	return !g.date(now).After(g.TrialEnd(u))
}

// TrialDaysLeft returns the days left in the trial; 0 when it ended or a
// subscription is active.
func (g AccessGate) TrialDaysLeft(u *User, now time.Time) int {
	if u == nil || g.SubscriptionActive(u, now) {
		return 0
	}
	left := int(g.TrialEnd(u).Sub(g.date(now)).Hours() / 24)
	if left < 0 {
		return 0
	}
	return left
}

// AccessKind classifies a user's current access.
type AccessKind int

const (
	AccessNone AccessKind = iota
	AccessAdmin
	AccessSubscribed
	AccessTrial
	AccessExpired
)

// AccessStatus is what the status screen shows plus the buttons to offer.
type AccessStatus struct {
	Kind       AccessKind
	Until      time.Time // subscription end, when subscribed
	DaysLeft   int       // trial days, when on trial
	ShowPay    bool
	ShowExtend bool
}

// Status describes u's access for display.
func (g AccessGate) Status(chatID int64, u *User, now time.Time) AccessStatus {
	switch {
	case u == nil:
		return AccessStatus{Kind: AccessNone}
	case g.IsAdmin(chatID):
		return AccessStatus{Kind: AccessAdmin}
	case g.SubscriptionActive(u, now):
		return AccessStatus{Kind: AccessSubscribed, Until: *u.SubscriptionEndsAt, ShowExtend: true}
	}
	if days := g.TrialDaysLeft(u, now); days > 0 {
		return AccessStatus{Kind: AccessTrial, DaysLeft: days, ShowPay: true}
	}
	return AccessStatus{Kind: AccessExpired, ShowPay: true}
}

// SubscriptionEndAfter returns the subscription end date months after now,
// counting a month as 30 days.
func SubscriptionEndAfter(now time.Time, months int) time.Time {
	d := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, daysPerSubMonth*months)
}

func (g AccessGate) date(t time.Time) time.Time {
	loc := g.Loc
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
