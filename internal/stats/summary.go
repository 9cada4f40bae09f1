// Package stats keeps the bounded log of finished sessions and the running totals.
package stats

import (
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/slowrun-trainer/internal/calories"
)

// SessionSummary is one finished (completed or stopped-and-saved) workout.
// Immutable once appended.
type SessionSummary struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	DurationSeconds int       `json:"duration"`
	TargetSeconds   int       `json:"targetDuration"`
	BPM             int       `json:"bpm"`
	Steps           int       `json:"steps"`
	Calories        float64   `json:"calories"`
	PauseSeconds    int       `json:"pauseSeconds,omitempty"`
	AvgHeartRate    int       `json:"avgHeartRate,omitempty"`
	Completed       bool      `json:"completed"`
}

// Steps is the number of steps taken at bpm over elapsedSeconds, rounded down
func Steps(bpm, elapsedSeconds int) int {
	if bpm <= 0 || elapsedSeconds <= 0 {
		return 0
	}
	return bpm * elapsedSeconds / 60
}

// SummaryInput is what a finished workout knows about itself
type SummaryInput struct {
	At              time.Time
	DurationSeconds int
	TargetSeconds   int
	BPM             int
	PauseSeconds    int
	Completed       bool
}

// NewSessionSummary derives steps and calories and stamps a fresh ID
func NewSessionSummary(in SummaryInput, estimator calories.Estimator) SessionSummary {
	if estimator == nil {
		estimator = calories.Default()
	}
	return SessionSummary{
		ID:              uuid.NewString(),
		Date:            normalizeTime(in.At),
		DurationSeconds: in.DurationSeconds,
		TargetSeconds:   in.TargetSeconds,
		BPM:             in.BPM,
		Steps:           Steps(in.BPM, in.DurationSeconds),
		Calories:        estimator.Calories(in.DurationSeconds),
		PauseSeconds:    in.PauseSeconds,
		Completed:       in.Completed,
	}
}

// Stored times are UTC at millisecond precision so they survive a JSON round-trip unchanged
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
