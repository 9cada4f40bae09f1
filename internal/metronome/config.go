// Package metronome owns the cadence (BPM, volume, sound) and drives one pulse per beat.
package metronome

import (
	"fmt"

	"github.com/lowaak/slowrun-trainer/internal/audio"
)

const (
	DefaultMinBPM  = 170
	DefaultMaxBPM  = 190
	DefaultBPM     = 180
	DefaultVolume  = 0.65
	DefaultSound   = audio.SoundClick
	BPMAdjustStep  = 1
	VolumeStepSize = 0.05
)

// BPMPresets are the quick-pick cadences shown in the UI
var BPMPresets = []int{170, 175, 180, 185, 190}

type Config struct {
	MinBPM               int
	MaxBPM               int
	DefaultBPM           int
	DefaultVolume        float64
	DefaultSound         audio.SoundProfile
	PreviewOnSoundChange bool
}

func DefaultConfig() Config {
	return Config{
		MinBPM:               DefaultMinBPM,
		MaxBPM:               DefaultMaxBPM,
		DefaultBPM:           DefaultBPM,
		DefaultVolume:        DefaultVolume,
		DefaultSound:         DefaultSound,
		PreviewOnSoundChange: true,
	}
}

func (c Config) Validate() error {
	if c.MinBPM <= 0 {
		return fmt.Errorf("metronome: min bpm must be positive, got %d", c.MinBPM)
	}
	if c.MinBPM > c.MaxBPM {
		return fmt.Errorf("metronome: min bpm %d exceeds max bpm %d", c.MinBPM, c.MaxBPM)
	}
	if c.DefaultBPM < c.MinBPM || c.DefaultBPM > c.MaxBPM {
		return fmt.Errorf("metronome: default bpm %d outside [%d, %d]", c.DefaultBPM, c.MinBPM, c.MaxBPM)
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		return fmt.Errorf("metronome: default volume %.2f outside [0, 1]", c.DefaultVolume)
	}
	if !c.DefaultSound.Valid() {
		return fmt.Errorf("metronome: %w: %q", audio.ErrUnknownSound, c.DefaultSound)
	}
	return nil
}

// ClampBPM pins v into [MinBPM, MaxBPM]
func (c Config) ClampBPM(v int) int {
	if v < c.MinBPM {
		return c.MinBPM
	}
	if v > c.MaxBPM {
		return c.MaxBPM
	}
	return v
}

// ClampVolume pins v into [0, 1]. NaN becomes 0.
func ClampVolume(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Intensity bands for a cadence
const (
	IntensityLight    = "light"
	IntensityModerate = "moderate"
	IntensityHigh     = "high"
)

// IntensityLabel describes how hard a cadence is
func IntensityLabel(bpm int) string {
	switch {
	case bpm <= 175:
		return IntensityLight
	case bpm <= 185:
		return IntensityModerate
	default:
		return IntensityHigh
	}
}
