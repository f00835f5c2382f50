// Package session holds per-chat conversational state: the schedule wizard
// and single-answer prompts.
package session

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// State is a step of a conversation.
type State string

const (
	StateIdle           State = ""
	StateChooseMode     State = "choose_mode"
	StateChooseDays     State = "choose_days"
	StateChooseTimeMode State = "choose_time_mode"
	StateEnterTime      State = "enter_time"
	StateEnterDayTime   State = "enter_day_time"
	StateChooseParity   State = "choose_parity"
	StateDone           State = "done"
	StateEnterWeight    State = "enter_weight"
	StateEnterTarget    State = "enter_target_weight"
	StateEnterCalories  State = "enter_calories"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateIdle:           {StateChooseMode, StateEnterWeight, StateEnterTarget, StateEnterCalories},
	StateChooseMode:     {StateChooseDays},
	StateChooseDays:     {StateChooseTimeMode},
	StateChooseTimeMode: {StateEnterTime, StateEnterDayTime},
	StateEnterTime:      {StateChooseParity, StateDone},
	StateEnterDayTime:   {StateEnterDayTime, StateChooseParity, StateDone},
	StateChooseParity:   {StateDone},
	StateEnterWeight:    {StateDone},
	StateEnterTarget:    {StateDone},
	StateEnterCalories:  {StateDone},
}

var (
	// ErrUnexpectedStep means the input does not belong to the current step,
	// usually because the session expired or was replaced.
	ErrUnexpectedStep = errors.New("unexpected wizard step")
	// ErrNoDays is returned when finishing day selection with nothing picked.
	ErrNoDays = fmt.Errorf("%w: select at least one day", domain.ErrValidation)
)

// Wizard is the state of one chat's conversation. It is stored as JSON.
type Wizard struct {
	State     State                     `json:"state"`
	WeekType  domain.WeekType           `json:"week_type,omitempty"`
	Days      []domain.Weekday          `json:"days,omitempty"`
	Time      string                    `json:"time,omitempty"`
	DayTimes  map[domain.Weekday]string `json:"day_times,omitempty"`
	DayIndex  int                       `json:"day_index,omitempty"`
	Parity    *bool                     `json:"parity,omitempty"` // user says the current week is even
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewScheduleWizard starts the schedule wizard at the mode question.
func NewScheduleWizard(now time.Time) *Wizard {
	w := &Wizard{UpdatedAt: now}
	_ = w.to(StateChooseMode)
	return w
}

// NewWeightPrompt waits for a single weight answer.
func NewWeightPrompt(now time.Time) *Wizard { return newPrompt(StateEnterWeight, now) }

// NewTargetWeightPrompt waits for the user's goal weight.
func NewTargetWeightPrompt(now time.Time) *Wizard { return newPrompt(StateEnterTarget, now) }

// NewCaloriePrompt waits for a calorie intake.
func NewCaloriePrompt(now time.Time) *Wizard { return newPrompt(StateEnterCalories, now) }

func newPrompt(s State, now time.Time) *Wizard {
	w := &Wizard{UpdatedAt: now}
	_ = w.to(s)
	return w
}

func (w *Wizard) to(next State) error {
	for _, s := range transitions[w.State] {
		if s == next {
			w.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %q -> %q", ErrUnexpectedStep, w.State, next)
}

func (w *Wizard) expect(s State) error {
	if w == nil || w.State != s {
		return ErrUnexpectedStep
	}
	return nil
}

// Done reports whether the wizard collected everything it needs.
func (w *Wizard) Done() bool { return w != nil && w.State == StateDone }

// ChooseMode selects the week type the new schedule applies to.
func (w *Wizard) ChooseMode(wt domain.WeekType) error {
	if err := w.expect(StateChooseMode); err != nil {
		return err
	}
	if _, err := domain.ParseWeekType(string(wt)); err != nil {
		return err
	}
	w.WeekType = wt
	w.Days = nil
	return w.to(StateChooseDays)
}

// ToggleDay adds or removes a day from the selection.
func (w *Wizard) ToggleDay(d domain.Weekday) error {
	if err := w.expect(StateChooseDays); err != nil {
		return err
	}
	if !d.Valid() {
		return fmt.Errorf("%w: weekday %d", domain.ErrValidation, d)
	}
	for i, sel := range w.Days {
		if sel == d {
			w.Days = append(w.Days[:i], w.Days[i+1:]...)
			return nil
		}
	}
	w.Days = append(w.Days, d)
	sort.Slice(w.Days, func(i, j int) bool { return w.Days[i] < w.Days[j] })
	return nil
}

// ResetDays clears the selection.
func (w *Wizard) ResetDays() error {
	if err := w.expect(StateChooseDays); err != nil {
		return err
	}
	w.Days = nil
	return nil
}

// EnterDays replaces the selection with days typed as text ("mon wed fri")
// and finishes day selection.
func (w *Wizard) EnterDays(text string) error {
	if err := w.expect(StateChooseDays); err != nil {
		return err
	}
	days, err := domain.ParseWeekdays(text)
	if err != nil {
		return err
	}
	w.Days = days
	return w.to(StateChooseTimeMode)
}

// DaysDone finishes day selection.
func (w *Wizard) DaysDone() error {
	if err := w.expect(StateChooseDays); err != nil {
		return err
	}
	if len(w.Days) == 0 {
		return ErrNoDays
	}
	return w.to(StateChooseTimeMode)
}

// ChooseTimeMode picks one time for all days or a time per day.
func (w *Wizard) ChooseTimeMode(perDay bool) error {
	if err := w.expect(StateChooseTimeMode); err != nil {
		return err
	}
	if perDay {
		w.DayTimes = make(map[domain.Weekday]string, len(w.Days))
		w.DayIndex = 0
		return w.to(StateEnterDayTime)
	}
	return w.to(StateEnterTime)
}

// EnterTime sets the time shared by all selected days.
func (w *Wizard) EnterTime(text string) error {
	if err := w.expect(StateEnterTime); err != nil {
		return err
	}
	t, err := domain.NormalizeTime(text)
	if err != nil {
		return err
	}
	w.Time = t
	return w.afterTimes()
}

// CurrentDay returns the day whose time is asked next, and its 1-based
// position among the selected days.
func (w *Wizard) CurrentDay() (domain.Weekday, int) {
	if w.DayIndex >= len(w.Days) {
		return 0, 0
	}
	return w.Days[w.DayIndex], w.DayIndex + 1
}

// EnterDayTime sets the time of CurrentDay and moves to the next day.
func (w *Wizard) EnterDayTime(text string) error {
	if err := w.expect(StateEnterDayTime); err != nil {
		return err
	}
	if w.DayIndex >= len(w.Days) {
		return ErrUnexpectedStep
	}
	t, err := domain.NormalizeTime(text)
	if err != nil {
		return err
	}
	if w.DayTimes == nil {
		w.DayTimes = make(map[domain.Weekday]string, len(w.Days))
	}
	w.DayTimes[w.Days[w.DayIndex]] = t
	w.DayIndex++
	if w.DayIndex < len(w.Days) {
		return w.to(StateEnterDayTime)
	}
	return w.afterTimes()
}

func (w *Wizard) afterTimes() error {
	if w.WeekType == domain.WeekAny {
		return w.to(StateDone)
	}
	return w.to(StateChooseParity)
}

// ChooseParity records whether the current week is even for the user.
func (w *Wizard) ChooseParity(claimsEven bool) error {
	if err := w.expect(StateChooseParity); err != nil {
		return err
	}
	w.Parity = &claimsEven
	return w.to(StateDone)
}

// Answered completes a single-answer prompt in state s.
func (w *Wizard) Answered(s State) error {
	if err := w.expect(s); err != nil {
		return err
	}
	if s != StateEnterWeight && s != StateEnterTarget && s != StateEnterCalories {
		return fmt.Errorf("%w: %q is not a prompt", ErrUnexpectedStep, s)
	}
	return w.to(StateDone)
}

// Entries returns the collected schedule entries.
func (w *Wizard) Entries() []domain.ScheduleEntry {
	out := make([]domain.ScheduleEntry, 0, len(w.Days))
	for _, d := range w.Days {
		t := w.Time
		if w.DayTimes != nil {
			t = w.DayTimes[d]
		}
		out = append(out, domain.ScheduleEntry{Weekday: d, Time: t, WeekType: w.WeekType})
	}
	return out
}
