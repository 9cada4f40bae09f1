package stats

import "time"

const dateLayout = "2006-01-02"

// Aggregate holds the running totals over every appended session.
// AverageBPM is the floor of the cumulative mean.
type Aggregate struct {
	TotalSessions    int     `json:"totalSessions"`
	TotalTimeSeconds int     `json:"totalTime"`
	TotalSteps       int     `json:"totalSteps"`
	TotalCalories    float64 `json:"totalCalories"`
	AverageBPM       int     `json:"averageBPM"`
	TodaySeconds     int     `json:"todayTime"`
	TodayDate        string  `json:"todayDate,omitempty"`
}

func (a Aggregate) with(s SessionSummary, loc *time.Location) Aggregate {
	n := a.TotalSessions + 1
	a.AverageBPM = (a.AverageBPM*(n-1) + s.BPM) / n
	a.TotalSessions = n
	a.TotalTimeSeconds += s.DurationSeconds
	a.TotalSteps += s.Steps
	a.TotalCalories += s.Calories

	day := s.Date.In(loc).Format(dateLayout)
	if day != a.TodayDate {
		a.TodayDate = day
		a.TodaySeconds = 0
	}
	a.TodaySeconds += s.DurationSeconds
	return a
}

// TodaySecondsAt returns the seconds run on the calendar day of now
func (a Aggregate) TodaySecondsAt(now time.Time, loc *time.Location) int {
	if a.TodayDate == now.In(loc).Format(dateLayout) {
		return a.TodaySeconds
	}
	return 0
}

// TotalMinutes is the total running time in whole minutes
func (a Aggregate) TotalMinutes() int {
	return a.TotalTimeSeconds / 60
}
