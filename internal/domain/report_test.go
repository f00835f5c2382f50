package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBuildMonthlyReport_WeightDelta(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))
	day20 := time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	r := BuildMonthlyReport(ReportInput{
		Start: start,
		End:   end,
		Weights: []WeightEntry{
			{At: day20, Weight: 78.5},
			{At: time.Date(2024, time.February, 28, 8, 0, 0, 0, time.UTC), Weight: 90},
			{At: day1, Weight: 80.0},
		},
	})

	if r.Diff == nil || *r.Diff != -1.5 {
		t.Fatalf("diff: want -1.5, got %v", r.Diff)
	}
	if r.DiffPercent == nil || *r.DiffPercent != -1.88 {
		t.Fatalf("diff percent: want -1.88, got %v", r.DiffPercent)
	}
	if *r.StartWeight != 80.0 || *r.EndWeight != 78.5 {
		t.Fatalf("start/end: got %v/%v", *r.StartWeight, *r.EndWeight)
	}
	want := []WeightPoint{{At: day1, Weight: 80.0}, {At: day20, Weight: 78.5}}
	if diff := cmp.Diff(want, r.Points); diff != "" {
		t.Fatalf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildMonthlyReport_NoWeights(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	r := BuildMonthlyReport(ReportInput{
		Start:    start,
		End:      end,
		Schedule: []ScheduleEntry{{Weekday: Monday, Time: "19:00", WeekType: WeekAny}},
		Stats:    WorkoutStats{Done: 3, Missed: 2},
	})
	if r.StartWeight != nil || r.EndWeight != nil || r.Diff != nil || r.DiffPercent != nil {
		t.Fatalf("expected no weight data, got %+v", r)
	}
	// January 2024 has five Mondays.
	if r.Scheduled != 5 || r.Completed != 3 || r.Missed != 2 {
		t.Fatalf("counts: got scheduled=%d completed=%d missed=%d", r.Scheduled, r.Completed, r.Missed)
	}
	if r.Score != 60 {
		t.Fatalf("score: want 60, got %v", r.Score)
	}
	if !r.LowDiscipline() {
		t.Fatalf("60%% must be flagged as low discipline")
	}
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.Date(2024, time.February, 10, 15, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start: got %s", start)
	}
	if !end.Equal(time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end: got %s", end)
	}
}

func TestPreviousMonthRange_CrossesYear(t *testing.T) {
	start, end := PreviousMonthRange(time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC))
	if !start.Equal(time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start: got %s", start)
	}
	if !end.Equal(time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end: got %s", end)
	}
}
