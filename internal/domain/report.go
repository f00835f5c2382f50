package domain

import (
	"sort"
	"time"
)

// LowDisciplineThreshold is the score below which a report carries a warning.
const LowDisciplineThreshold = 70.0

// WeightPoint is one chart point of a report.
type WeightPoint struct {
	At     time.Time
	Weight float64
}

// ReportInput is everything the report builder needs for one user and period.
type ReportInput struct {
	Start, End time.Time
	Offset     int
	Schedule   []ScheduleEntry
	Stats      WorkoutStats
	Weights    []WeightEntry // any order; entries outside [Start, End] are ignored
}

// MonthlyReport summarizes discipline and weight progress over a period.
type MonthlyReport struct {
	Start, End  time.Time
	Scheduled   int
	Completed   int
	Missed      int
	Score       float64
	StartWeight *float64
	EndWeight   *float64
	Diff        *float64
	DiffPercent *float64
	Points      []WeightPoint // ascending by time
}

// LowDiscipline reports whether the score is under LowDisciplineThreshold.
func (r MonthlyReport) LowDiscipline() bool {
	return r.Score < LowDisciplineThreshold
}

// BuildMonthlyReport composes scheduled/completed counts with weight deltas.
func BuildMonthlyReport(in ReportInput) MonthlyReport {
	scheduled := CountScheduled(in.Schedule, in.Start, in.End, in.Offset)
	r := MonthlyReport{
		Start:     in.Start,
		End:       in.End,
		Scheduled: scheduled,
		Completed: in.Stats.Done,
		Missed:    in.Stats.Missed,
		Score:     Score(in.Stats.Done, scheduled),
	}

	for _, w := range in.Weights {
		if w.At.Before(in.Start) || w.At.After(in.End) {
			continue
		}
		r.Points = append(r.Points, WeightPoint{At: w.At, Weight: w.Weight})
	}
	sort.SliceStable(r.Points, func(i, j int) bool { return r.Points[i].At.Before(r.Points[j].At) })
	if len(r.Points) == 0 {
		return r
	}

	first := r.Points[0].Weight
	last := r.Points[len(r.Points)-1].Weight
	r.StartWeight, r.EndWeight = &first, &last
	diff := round2(last - first)
	r.Diff = &diff
	if first != 0 {
		pct := round2(diff / first * 100)
		r.DiffPercent = &pct
	}
	return r
}

// MonthRange returns the first and last second of t's month in t's location.
func MonthRange(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// PreviousMonthRange returns the range of the month before t's month.
func PreviousMonthRange(t time.Time) (start, end time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return MonthRange(first.Add(-time.Second))
}
