package audio

import (
	"errors"
	"log"
	"sync"

	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
)

var errSinkPanicked = errors.New("audio: sink panicked")

// AudioPulse emits one tone per beat. Playback is best-effort: a missing or failing
// sink is logged and never reported to the caller.
type AudioPulse struct {
	sink   Sink
	logger *log.Logger

	mu                sync.Mutex
	disabled          bool
	failing           bool
	loggedUnavailable bool
}

// NewAudioPulse creates an AudioPulse. A nil sink means no audio backend; every pulse is skipped.
func NewAudioPulse(sink Sink, logger *log.Logger) *AudioPulse {
	if logger == nil {
		panic("AudioPulse: logger cannot be nil")
	}
	return &AudioPulse{sink: sink, logger: logger}
}

func (a *AudioPulse) Available() bool {
	return a.sink != nil
}

// SetEnabled turns sound output on or off without touching the beat
func (a *AudioPulse) SetEnabled(enabled bool) {
	a.mu.Lock()
	changed := a.disabled == enabled
	a.disabled = !enabled
	a.mu.Unlock()
	if changed {
		a.logger.Printf("AudioPulse: sound enabled=%t", enabled)
	}
}

func (a *AudioPulse) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.disabled
}

// Play emits the tone for profile at volume. Zero volume, the mute profile and
// a disabled pulse never reach the sink.
func (a *AudioPulse) Play(profile SoundProfile, volume float64) {
	if volume <= 0 || profile == SoundMute || !a.Enabled() {
		return
	}
	if a.sink == nil {
		a.mu.Lock()
		first := !a.loggedUnavailable
		a.loggedUnavailable = true
		a.mu.Unlock()
		if first {
			a.logger.Println("AudioPulse: no audio backend, running silently")
		}
		return
	}

	tone := ToneFor(profile)
	var emitErr error
	if !go_func_utils.SafeCall(a.logger, "AudioPulse", func() {
		emitErr = a.sink.Emit(tone, volume)
	}) {
		emitErr = errSinkPanicked
	}
	a.recordResult(emitErr)
}

// EnsureActive resumes a suspended sink. Failure leaves the metronome silent.
func (a *AudioPulse) EnsureActive() {
	if a.sink == nil || !a.sink.Suspended() {
		return
	}
	if err := a.sink.Resume(); err != nil {
		a.logger.Printf("AudioPulse: failed to resume audio sink: %v", err)
		return
	}
	a.logger.Println("AudioPulse: audio sink resumed")
}

// Logs only on transitions so a broken sink does not flood the log every beat
func (a *AudioPulse) recordResult(err error) {
	a.mu.Lock()
	wasFailing := a.failing
	a.failing = err != nil
	a.mu.Unlock()

	if err != nil && !wasFailing {
		a.logger.Printf("AudioPulse: emit failed: %v", err)
	} else if err == nil && wasFailing {
		a.logger.Println("AudioPulse: audio output recovered")
	}
}
