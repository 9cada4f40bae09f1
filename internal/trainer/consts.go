package trainer

import (
	"fmt"
	"strings"

	"github.com/lowaak/slowrun-trainer/internal/checkin"
)

// UIMode represents the current UI mode/screen
type UIMode int

const (
	UIModeDashboard UIMode = iota // Metronome and workout controls
	UIModeStats                   // Totals and recent sessions
	UIModeCheckin                 // Check-in calendar
)

// UIModeInfo contains display information for a UI mode
type UIModeInfo struct {
	Mode        UIMode
	Name        string // stable name used for persistence
	DisplayName string
	KeyBinding  rune
}

// AllUIModes defines all available UI modes in order
var AllUIModes = []UIModeInfo{
	{Mode: UIModeDashboard, Name: "dashboard", DisplayName: "Metronome & Workout", KeyBinding: '1'},
	{Mode: UIModeStats, Name: "stats", DisplayName: "Stats", KeyBinding: '2'},
	{Mode: UIModeCheckin, Name: "checkin", DisplayName: "Check-in", KeyBinding: '3'},
}

// GetUIModeByKey returns the mode for a given key binding
func GetUIModeByKey(key rune) (UIMode, bool) {
	for _, info := range AllUIModes {
		if info.KeyBinding == key {
			return info.Mode, true
		}
	}
	return 0, false
}

// GetUIModeInfo returns the info for a given mode
func GetUIModeInfo(mode UIMode) (UIModeInfo, bool) {
	for _, info := range AllUIModes {
		if info.Mode == mode {
			return info, true
		}
	}
	return UIModeInfo{}, false
}

// GetUIModeByName returns the mode persisted under name
func GetUIModeByName(name string) (UIMode, bool) {
	for _, info := range AllUIModes {
		if info.Name == name {
			return info.Mode, true
		}
	}
	return 0, false
}

func (m UIMode) String() string {
	if info, ok := GetUIModeInfo(m); ok {
		return info.Name
	}
	return fmt.Sprintf("UIMode(%d)", int(m))
}

// WorkoutMinutesStep is how far the duration keys move the planned workout length
const WorkoutMinutesStep = 5

// QuickCheckinFeeling is recorded by the one-key check-in
const QuickCheckinFeeling = checkin.FeelingGood

var feelingLabels = map[checkin.Feeling]string{
	checkin.FeelingExcellent: "[green]excellent[white]",
	checkin.FeelingGood:      "[green]good[white]",
	checkin.FeelingNormal:    "[yellow]normal[white]",
	checkin.FeelingTired:     "[orange]tired[white]",
	checkin.FeelingHard:      "[red]hard[white]",
}

func feelingLabel(f checkin.Feeling) string {
	if label, ok := feelingLabels[f]; ok {
		return label
	}
	return string(f)
}

// formatDurationMMSS formats whole seconds as MM:SS, or H:MM:SS past an hour
func formatDurationMMSS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := totalSeconds % 3600 / 60
	seconds := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// formatMinutes formats a minute count for display
func formatMinutes(minutes int) string {
	if minutes >= 60 {
		hours := minutes / 60
		mins := minutes % 60
		if mins > 0 {
			return fmt.Sprintf("%dh %dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%d min", minutes)
}

// progressBar renders fraction (0..1) as a fixed-width bar
func progressBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[green]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) + "[white]"
}
