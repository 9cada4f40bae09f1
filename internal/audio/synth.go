package audio

import (
	"math"
	"time"
)

const (
	attackDuration = 10 * time.Millisecond
	decayFloor     = 0.001
)

// Envelope returns the amplitude at time t for a pulse of the given peak volume and decay.
// Linear ramp from 0 to volume over the attack, then exponential fall to decayFloor at decay.
func Envelope(t time.Duration, volume float64, decay time.Duration) float64 {
	if volume <= 0 || t < 0 || t > decay {
		return 0
	}
	if t < attackDuration {
		return volume * float64(t) / float64(attackDuration)
	}
	span := decay - attackDuration
	if span <= 0 {
		return volume
	}
	floor := math.Min(decayFloor, volume)
	progress := float64(t-attackDuration) / float64(span)
	return volume * math.Pow(floor/volume, progress)
}

// Synthesize renders a tone as signed 16-bit mono PCM
func Synthesize(tone Tone, volume float64, sampleRate int) []int16 {
	if tone.Silent || volume <= 0 || sampleRate <= 0 || tone.Decay <= 0 {
		return nil
	}
	n := int(tone.Decay.Seconds() * float64(sampleRate))
	samples := make([]int16, n)

	totalGain := 0.0
	for _, p := range tone.Partials {
		totalGain += p.Gain
	}
	if totalGain <= 0 {
		return samples
	}

	// one-pole lowpass
	alpha := 1.0
	if tone.LowpassHz > 0 {
		rc := 1 / (2 * math.Pi * tone.LowpassHz)
		dt := 1 / float64(sampleRate)
		alpha = dt / (rc + dt)
	}

	filtered := 0.0
	for i := range samples {
		secs := float64(i) / float64(sampleRate)
		raw := 0.0
		for _, p := range tone.Partials {
			raw += p.Gain * oscillator(p.Wave, p.FrequencyHz*secs)
		}
		raw /= totalGain
		filtered += alpha * (raw - filtered)

		amp := Envelope(time.Duration(secs*float64(time.Second)), volume, tone.Decay)
		samples[i] = int16(clampUnit(filtered*amp) * math.MaxInt16)
	}
	return samples
}

// oscillator returns the waveform value in [-1,1] at the given number of cycles
func oscillator(wave WaveShape, cycles float64) float64 {
	phase := cycles - math.Floor(cycles)
	switch wave {
	case WaveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case WaveTriangle:
		return 1 - 4*math.Abs(phase-0.5)
	case WaveSawtooth:
		return 2*phase - 1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
