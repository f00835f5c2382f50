package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Gender selects the Mifflin–St Jeor constant.
type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "f"
)

// ActivityLevel is the daily activity used to scale BMR into TDEE.
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// Goal is the body weight direction a user is working towards.
type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

const (
	deficitLose  = 500 // kcal/day, about 0.5 kg a week
	surplusGain  = 400 // kcal/day
	minLoseKcal  = 1200
	maxDailyKcal = 10000
)

// BodyParams are the inputs of the calorie profile. Unset fields are zero.
type BodyParams struct {
	HeightCm  *float64
	BirthYear *int
	Gender    Gender
	Activity  ActivityLevel
	Goal      Goal
}

// Complete reports whether a calorie profile can be computed.
func (b BodyParams) Complete() bool {
	return b.HeightCm != nil && *b.HeightCm > 0 && b.BirthYear != nil && *b.BirthYear > 0 && b.Gender != ""
}

// ParseGender accepts m/f and male/female.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male":
		return GenderMale, nil
	case "f", "female":
		return GenderFemale, nil
	}
	return "", fmt.Errorf("%w: gender %q", ErrValidation, s)
}

// ParseActivityLevel accepts one of the activity level names.
func ParseActivityLevel(s string) (ActivityLevel, error) {
	a := ActivityLevel(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := activityMultipliers[a]; !ok {
		return "", fmt.Errorf("%w: activity level %q", ErrValidation, s)
	}
	return a, nil
}

// ParseGoal accepts lose, maintain or gain.
func ParseGoal(s string) (Goal, error) {
	switch g := Goal(strings.ToLower(strings.TrimSpace(s))); g {
	case GoalLose, GoalMaintain, GoalGain:
		return g, nil
	}
	return "", fmt.Errorf("%w: goal %q", ErrValidation, s)
}

// ParseHeight parses centimeters ("175") or meters ("1.82", "1,82").
func ParseHeight(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	h, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: height %q", ErrValidation, s)
	}
	if h > 0 && h < 3 {
		h *= 100
	}
	if h < 100 || h > 250 {
		return 0, fmt.Errorf("%w: height out of range", ErrValidation)
	}
	return math.Round(h*10) / 10, nil
}

// ParseBirthYear parses a birth year ("1990") or an age ("34") relative to now.
func ParseBirthYear(s string, now time.Time) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: birth year %q", ErrValidation, s)
	}
	if n >= 10 && n <= 100 {
		n = now.Year() - n
	}
	if n < 1900 || n > now.Year()-10 {
		return 0, fmt.Errorf("%w: birth year out of range", ErrValidation)
	}
	return n, nil
}

// ParseCalories parses a positive whole number of kcal.
func ParseCalories(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: calories %q", ErrValidation, s)
	}
	if n <= 0 || n > maxDailyKcal {
		return 0, fmt.Errorf("%w: calories out of range", ErrValidation)
	}
	return n, nil
}

// BMR is the Mifflin–St Jeor basal metabolic rate in kcal/day.
func BMR(weightKg, heightCm float64, age int, g Gender) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if g == GenderFemale {
		return base - 161
	}
	return base + 5
}

// TDEE scales bmr by the activity multiplier, sedentary when unknown.
func TDEE(bmr float64, a ActivityLevel) float64 {
	m, ok := activityMultipliers[a]
	if !ok {
		m = activityMultipliers[ActivitySedentary]
	}
	return math.Round(bmr * m)
}

// BMI is weight / height² rounded to one decimal; 0 for a non-positive height.
func BMI(weightKg, heightCm float64) float64 {
	if heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

// BMICategory returns the WHO category of bmi.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "underweight"
	case bmi < 25:
		return "normal"
	case bmi < 30:
		return "overweight"
	default:
		return "obese"
	}
}

// DailyCalorieTarget is the intake for goal; weight loss never goes below 1200.
func DailyCalorieTarget(tdee float64, goal Goal) int {
	switch goal {
	case GoalLose:
		return max(minLoseKcal, int(tdee-deficitLose))
	case GoalGain:
		return int(tdee + surplusGain)
	default:
		return int(tdee)
	}
}

// CalorieProfile is the computed daily energy picture of a user.
type CalorieProfile struct {
	BMR         float64
	TDEE        float64
	BMI         float64
	BMICategory string
	DailyTarget int
	Goal        Goal
}

// ComputeCalorieProfile returns the profile for the current weight, or false
// when height, birth year or gender are missing.
func ComputeCalorieProfile(weightKg float64, b BodyParams, now time.Time) (CalorieProfile, bool) {
	if weightKg <= 0 || !b.Complete() {
		return CalorieProfile{}, false
	}
	goal := b.Goal
	if goal == "" {
		goal = GoalMaintain
	}
	age := max(0, now.Year()-*b.BirthYear)
	bmr := BMR(weightKg, *b.HeightCm, age, b.Gender)
	tdee := TDEE(bmr, b.Activity)
	bmi := BMI(weightKg, *b.HeightCm)
	return CalorieProfile{
		BMR:         math.Round(bmr),
		TDEE:        tdee,
		BMI:         bmi,
		BMICategory: BMICategory(bmi),
		DailyTarget: DailyCalorieTarget(tdee, goal),
		Goal:        goal,
	}, true
}

// CalorieLog is one intake entry. Day is the local calendar day "2006-01-02".
type CalorieLog struct {
	ChatID   int64
	Day      string
	At       time.Time
	Calories int
}

// CalorieDay returns the local calendar day key of t.
func CalorieDay(t time.Time) string { return t.Format(time.DateOnly) }

// Set parses value into the named field: height, born, gender, activity or goal.
func (b *BodyParams) Set(field, value string, now time.Time) error {
	switch strings.ToLower(field) {
	case "height":
		h, err := ParseHeight(value)
		if err != nil {
			return err
		}
		b.HeightCm = &h
	case "born", "age":
		y, err := ParseBirthYear(value, now)
		if err != nil {
			return err
		}
		b.BirthYear = &y
	case "gender":
		g, err := ParseGender(value)
		if err != nil {
			return err
		}
		b.Gender = g
	case "activity":
		a, err := ParseActivityLevel(value)
		if err != nil {
			return err
		}
		b.Activity = a
	case "goal":
		g, err := ParseGoal(value)
		if err != nil {
			return err
		}
		b.Goal = g
	default:
		return fmt.Errorf("%w: unknown profile field %q", ErrValidation, field)
	}
	return nil
}
