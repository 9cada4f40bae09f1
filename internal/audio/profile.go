// Package audio maps sound profiles to tones and emits one short pulse per beat.
package audio

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownSound = errors.New("audio: unknown sound profile")

type SoundProfile string

const (
	SoundClick SoundProfile = "click"
	SoundBeep  SoundProfile = "beep"
	SoundTick  SoundProfile = "tick"
	SoundWood  SoundProfile = "wood"
	SoundBell  SoundProfile = "bell"
	SoundDrum  SoundProfile = "drum"
	SoundMute  SoundProfile = "mute"
)

// AllSoundProfiles lists every profile in UI cycling order
var AllSoundProfiles = []SoundProfile{
	SoundClick,
	SoundBeep,
	SoundTick,
	SoundWood,
	SoundBell,
	SoundDrum,
	SoundMute,
}

func (p SoundProfile) String() string {
	return string(p)
}

func (p SoundProfile) Valid() bool {
	for _, known := range AllSoundProfiles {
		if p == known {
			return true
		}
	}
	return false
}

// Next returns the profile after p in AllSoundProfiles, wrapping around
func (p SoundProfile) Next() SoundProfile {
	for i, known := range AllSoundProfiles {
		if p == known {
			return AllSoundProfiles[(i+1)%len(AllSoundProfiles)]
		}
	}
	return AllSoundProfiles[0]
}

// ParseSoundProfile accepts a profile name, case-insensitively
func ParseSoundProfile(name string) (SoundProfile, error) {
	p := SoundProfile(strings.ToLower(strings.TrimSpace(name)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSound, name)
	}
	return p, nil
}

type WaveShape int

const (
	WaveSine WaveShape = iota
	WaveSquare
	WaveTriangle
	WaveSawtooth
)

func (w WaveShape) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveTriangle:
		return "triangle"
	case WaveSawtooth:
		return "sawtooth"
	default:
		return fmt.Sprintf("WaveShape(%d)", int(w))
	}
}

// Partial is one oscillator of a tone
type Partial struct {
	FrequencyHz float64
	Wave        WaveShape
	Gain        float64
}

// Tone describes one pulse: one or more partials shaped by the attack/decay envelope.
// LowpassHz of 0 disables the filter.
type Tone struct {
	Partials  []Partial
	Decay     time.Duration
	LowpassHz float64
	Silent    bool
}

// ToneFor returns the tone for a profile. Unknown profiles get the click tone;
// callers validate with ParseSoundProfile first.
func ToneFor(p SoundProfile) Tone {
	switch p {
	case SoundBeep:
		return Tone{Partials: []Partial{{800, WaveSine, 1}}, Decay: 100 * time.Millisecond}
	case SoundTick:
		return Tone{Partials: []Partial{{1000, WaveSquare, 1}}, Decay: 50 * time.Millisecond}
	case SoundWood:
		return Tone{Partials: []Partial{{200, WaveSawtooth, 1}}, Decay: 200 * time.Millisecond, LowpassHz: 400}
	case SoundBell:
		return Tone{
			Partials: []Partial{{600, WaveSine, 1}, {1200, WaveSine, 0.5}},
			Decay:    200 * time.Millisecond,
		}
	case SoundDrum:
		return Tone{Partials: []Partial{{100, WaveSawtooth, 1}}, Decay: 150 * time.Millisecond}
	case SoundMute:
		return Tone{Silent: true}
	default:
		return Tone{Partials: []Partial{{1200, WaveTriangle, 1}}, Decay: 80 * time.Millisecond}
	}
}
