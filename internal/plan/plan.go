// Package plan builds a weekly super-slow running plan from experience,
// available time, intensity preference and health limits.
package plan

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/calories"
)

type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// AvailableTime is how many days a week the runner can train
type AvailableTime string

const (
	TimeFew     AvailableTime = "2-3"
	TimeSome    AvailableTime = "4-6"
	TimeDaily   AvailableTime = "7+"
	DefaultTime               = TimeSome
)

type Goal string

const (
	GoalWeightLoss   Goal = "weight-loss"
	GoalHealth       Goal = "health"
	GoalEndurance    Goal = "endurance"
	GoalStressRelief Goal = "stress-relief"
	DefaultGoal           = GoalHealth
)

const (
	DefaultPreference = 3
	MinSessionMinutes = 15
	// Joint or heart concerns cap the cadence and the weekly load
	HealthLimitBPM      = 160
	HealthLimitSessions = 3
)

type Input struct {
	Experience Experience
	Time       AvailableTime
	// Preference runs from 1 (gentler) to 5 (harder). Zero means 3.
	Preference int
	Joint      bool
	Heart      bool
	Goal       Goal
	// Optional; both zero skips the BMI
	WeightKg float64
	HeightCm float64
}

func (in Input) Validate() error {
	switch in.Experience {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced:
	default:
		return fmt.Errorf("plan: unknown experience %q", in.Experience)
	}
	switch in.Time {
	case "", TimeFew, TimeSome, TimeDaily:
	default:
		return fmt.Errorf("plan: unknown available time %q", in.Time)
	}
	switch in.Goal {
	case "", GoalWeightLoss, GoalHealth, GoalEndurance, GoalStressRelief:
	default:
		return fmt.Errorf("plan: unknown goal %q", in.Goal)
	}
	if in.Preference != 0 && (in.Preference < 1 || in.Preference > 5) {
		return fmt.Errorf("plan: intensity preference %d not in [1, 5]", in.Preference)
	}
	if in.WeightKg < 0 || in.HeightCm < 0 {
		return fmt.Errorf("plan: weight and height must not be negative")
	}
	if (in.WeightKg > 0) != (in.HeightCm > 0) {
		return fmt.Errorf("plan: weight and height must be given together")
	}
	return nil
}

type DayKind string

const (
	DayRest    DayKind = "rest"
	DayRun     DayKind = "run"
	DayLongRun DayKind = "long-run"
)

type Day struct {
	Weekday    time.Weekday
	Kind       DayKind
	MinMinutes int
	MaxMinutes int
}

// Plan is the weekly recommendation. Week runs Monday to Sunday.
type Plan struct {
	Experience      Experience
	Goal            Goal
	SessionsPerWeek int
	MinMinutes      int
	MaxMinutes      int
	TargetBPM       int
	Intensity       calories.Intensity
	Week            [7]Day
	BMI             float64
	BMICategory     string
}

// SessionMinutes is the midpoint of the recommended session length
func (p Plan) SessionMinutes() int {
	return (p.MinMinutes + p.MaxMinutes) / 2
}

// TrainingDays returns the non-rest days, Monday first
func (p Plan) TrainingDays() []Day {
	var days []Day
	for _, d := range p.Week {
		if d.Kind != DayRest {
			days = append(days, d)
		}
	}
	return days
}

type baseline struct {
	sessions   int
	minMinutes int
	maxMinutes int
	bpm        int
	intensity  calories.Intensity
}

var baselines = map[Experience]baseline{
	ExperienceBeginner:     {sessions: 3, minMinutes: 20, maxMinutes: 30, bpm: 160, intensity: calories.IntensityLight},
	ExperienceIntermediate: {sessions: 4, minMinutes: 30, maxMinutes: 45, bpm: 170, intensity: calories.IntensityModerate},
	ExperienceAdvanced:     {sessions: 5, minMinutes: 45, maxMinutes: 60, bpm: 180, intensity: calories.IntensityVigorous},
}

// Training days in the order they are filled: Tue, Thu, Sat, Mon, Sun, Wed
var dayOrder = []time.Weekday{
	time.Tuesday, time.Thursday, time.Saturday, time.Monday, time.Sunday, time.Wednesday,
}

const (
	longRunMin    = 45
	longRunMax    = 60
	regularRunMin = 25
	regularRunMax = 35
	longRunFrom   = 4
)

func Build(in Input) (Plan, error) {
	if err := in.Validate(); err != nil {
		return Plan{}, err
	}
	if in.Time == "" {
		in.Time = DefaultTime
	}
	if in.Goal == "" {
		in.Goal = DefaultGoal
	}
	if in.Preference == 0 {
		in.Preference = DefaultPreference
	}

	b := baselines[in.Experience]
	switch in.Time {
	case TimeFew:
		b.sessions = min(b.sessions, 3)
	case TimeDaily:
		b.sessions = min(b.sessions+1, len(dayOrder))
	}
	switch {
	case in.Preference <= 2:
		b.bpm -= 10
		b.minMinutes = max(b.minMinutes-5, MinSessionMinutes)
		b.maxMinutes = max(b.maxMinutes-5, MinSessionMinutes)
	case in.Preference >= 4:
		b.bpm += 10
		b.minMinutes += 5
		b.maxMinutes += 5
	}
	if in.Joint || in.Heart {
		b.bpm = min(b.bpm, HealthLimitBPM)
		b.sessions = min(b.sessions, HealthLimitSessions)
	}

	p := Plan{
		Experience:      in.Experience,
		Goal:            in.Goal,
		SessionsPerWeek: b.sessions,
		MinMinutes:      b.minMinutes,
		MaxMinutes:      b.maxMinutes,
		TargetBPM:       b.bpm,
		Intensity:       b.intensity,
		Week:            schedule(b.sessions),
	}
	if in.WeightKg > 0 {
		p.BMI = BMI(in.WeightKg, in.HeightCm)
		p.BMICategory = BMICategory(p.BMI)
	}
	return p, nil
}

func schedule(sessions int) [7]Day {
	var week [7]Day
	for i := range week {
		// Monday first
		week[i] = Day{Weekday: time.Weekday((i + 1) % 7), Kind: DayRest}
	}
	for n, wd := range dayOrder[:sessions] {
		d := &week[(int(wd)+6)%7]
		d.Kind, d.MinMinutes, d.MaxMinutes = DayRun, regularRunMin, regularRunMax
		if n == sessions-1 && sessions >= longRunFrom {
			d.Kind, d.MinMinutes, d.MaxMinutes = DayLongRun, longRunMin, longRunMax
		}
	}
	return week
}

// BMI is weight over height squared, rounded to one decimal
func BMI(weightKg, heightCm float64) float64 {
	if weightKg <= 0 || heightCm <= 0 {
		return 0
	}
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

func BMICategory(bmi float64) string {
	switch {
	case bmi <= 0:
		return ""
	case bmi < 18.5:
		return "underweight"
	case bmi < 24:
		return "normal"
	case bmi < 28:
		return "overweight"
	default:
		return "obese"
	}
}

func ParseExperience(s string) (Experience, error) {
	switch v := Experience(strings.ToLower(strings.TrimSpace(s))); v {
	case ExperienceBeginner, ExperienceIntermediate, ExperienceAdvanced:
		return v, nil
	default:
		return "", fmt.Errorf("plan: unknown experience %q", s)
	}
}

func ParseGoal(s string) (Goal, error) {
	switch v := Goal(strings.ToLower(strings.TrimSpace(s))); v {
	case "", GoalWeightLoss, GoalHealth, GoalEndurance, GoalStressRelief:
		return v, nil
	default:
		return "", fmt.Errorf("plan: unknown goal %q", s)
	}
}
