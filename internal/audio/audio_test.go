package audio

import (
	"bytes"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	emits     []Tone
	volumes   []float64
	suspended bool
	resumes   int
	emitErr   error
	panicMsg  string
}

func (s *fakeSink) Emit(tone Tone, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.emits = append(s.emits, tone)
	s.volumes = append(s.volumes, volume)
	return s.emitErr
}

func (s *fakeSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	s.suspended = false
	return nil
}

func (s *fakeSink) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

func (s *fakeSink) emitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emits)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestParseSoundProfile(t *testing.T) {
	p, err := ParseSoundProfile("Wood")
	require.NoError(t, err)
	assert.Equal(t, SoundWood, p)

	p, err = ParseSoundProfile(" bell ")
	require.NoError(t, err)
	assert.Equal(t, SoundBell, p)

	_, err = ParseSoundProfile("cowbell")
	assert.ErrorIs(t, err, ErrUnknownSound)

	_, err = ParseSoundProfile("")
	assert.ErrorIs(t, err, ErrUnknownSound)
}

func TestSoundProfile_Next(t *testing.T) {
	assert.Equal(t, SoundBeep, SoundClick.Next())
	assert.Equal(t, SoundClick, SoundMute.Next())
	assert.Equal(t, SoundClick, SoundProfile("bogus").Next())
}

func TestToneFor_CoversEveryProfile(t *testing.T) {
	for _, p := range AllSoundProfiles {
		tone := ToneFor(p)
		if p == SoundMute {
			assert.True(t, tone.Silent)
			continue
		}
		assert.NotEmpty(t, tone.Partials, p.String())
		assert.Greater(t, tone.Decay, time.Duration(0), p.String())
	}

	assert.Equal(t, 1200.0, ToneFor(SoundClick).Partials[0].FrequencyHz)
	assert.Equal(t, WaveTriangle, ToneFor(SoundClick).Partials[0].Wave)
	assert.Equal(t, 800.0, ToneFor(SoundBeep).Partials[0].FrequencyHz)
	assert.Equal(t, 50*time.Millisecond, ToneFor(SoundTick).Decay)
	assert.Equal(t, 400.0, ToneFor(SoundWood).LowpassHz)
	assert.Len(t, ToneFor(SoundBell).Partials, 2)
}

func TestEnvelope(t *testing.T) {
	decay := 100 * time.Millisecond

	assert.Equal(t, 0.0, Envelope(0, 0.5, decay))
	assert.InDelta(t, 0.25, Envelope(5*time.Millisecond, 0.5, decay), 1e-9)
	assert.InDelta(t, 0.5, Envelope(10*time.Millisecond, 0.5, decay), 1e-9)
	assert.InDelta(t, decayFloor, Envelope(decay, 0.5, decay), 1e-9)
	assert.Equal(t, 0.0, Envelope(decay+time.Millisecond, 0.5, decay))
	assert.Equal(t, 0.0, Envelope(20*time.Millisecond, 0, decay))

	mid := Envelope(50*time.Millisecond, 0.5, decay)
	assert.Less(t, mid, 0.5)
	assert.Greater(t, mid, decayFloor)
}

func TestSynthesize(t *testing.T) {
	samples := Synthesize(ToneFor(SoundBeep), 0.65, 8000)
	assert.Len(t, samples, 800)

	peak := int16(0)
	for _, s := range samples {
		if s > peak {
			peak = s
		}
	}
	assert.Greater(t, peak, int16(0))

	assert.Nil(t, Synthesize(ToneFor(SoundMute), 0.65, 8000))
	assert.Nil(t, Synthesize(ToneFor(SoundBeep), 0, 8000))
}

func TestAudioPulse_ZeroVolumeSkipsSink(t *testing.T) {
	sink := &fakeSink{}
	pulse := NewAudioPulse(sink, discardLogger())

	assert.NotPanics(t, func() { pulse.Play(SoundClick, 0) })
	assert.Equal(t, 0, sink.emitCount())
}

func TestAudioPulse_MuteSkipsSink(t *testing.T) {
	sink := &fakeSink{}
	pulse := NewAudioPulse(sink, discardLogger())

	pulse.Play(SoundMute, 1)
	assert.Equal(t, 0, sink.emitCount())
}

func TestAudioPulse_DisabledSkipsSink(t *testing.T) {
	sink := &fakeSink{}
	pulse := NewAudioPulse(sink, discardLogger())

	pulse.SetEnabled(false)
	assert.False(t, pulse.Enabled())
	pulse.Play(SoundBeep, 1)
	assert.Equal(t, 0, sink.emitCount())

	pulse.SetEnabled(true)
	pulse.Play(SoundBeep, 1)
	assert.Equal(t, 1, sink.emitCount())
}

func TestAudioPulse_PlayEmitsTone(t *testing.T) {
	sink := &fakeSink{}
	pulse := NewAudioPulse(sink, discardLogger())

	pulse.Play(SoundDrum, 0.65)
	pulse.Play(SoundDrum, 0.65)

	require.Equal(t, 2, sink.emitCount())
	assert.Equal(t, ToneFor(SoundDrum), sink.emits[0])
	assert.Equal(t, 0.65, sink.volumes[1])
}

func TestAudioPulse_NoBackendIsSilent(t *testing.T) {
	var buf bytes.Buffer
	pulse := NewAudioPulse(nil, log.New(&buf, "", 0))

	assert.False(t, pulse.Available())
	assert.NotPanics(t, func() {
		pulse.Play(SoundClick, 1)
		pulse.Play(SoundClick, 1)
		pulse.EnsureActive()
	})
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("no audio backend")))
}

func TestAudioPulse_SinkErrorsAreLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	sink := &fakeSink{emitErr: errors.New("device busy")}
	pulse := NewAudioPulse(sink, log.New(&buf, "", 0))

	pulse.Play(SoundClick, 1)
	pulse.Play(SoundClick, 1)
	pulse.Play(SoundClick, 1)

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("emit failed")))

	sink.mu.Lock()
	sink.emitErr = nil
	sink.mu.Unlock()
	pulse.Play(SoundClick, 1)
	assert.Contains(t, buf.String(), "recovered")
}

func TestAudioPulse_SinkPanicIsSwallowed(t *testing.T) {
	sink := &fakeSink{panicMsg: "driver crashed"}
	pulse := NewAudioPulse(sink, discardLogger())

	assert.NotPanics(t, func() { pulse.Play(SoundBell, 0.5) })
}

func TestAudioPulse_EnsureActiveResumesSuspendedSink(t *testing.T) {
	sink := &fakeSink{suspended: true}
	pulse := NewAudioPulse(sink, discardLogger())

	pulse.EnsureActive()
	pulse.EnsureActive()

	assert.Equal(t, 1, sink.resumes)
	assert.False(t, sink.Suspended())
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func TestPCMSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPCMSink(8000, func() (io.WriteCloser, error) { return nopCloser{&buf}, nil })

	assert.True(t, sink.Suspended())
	assert.ErrorIs(t, sink.Emit(ToneFor(SoundTick), 1), ErrSinkSuspended)

	require.NoError(t, sink.Resume())
	assert.False(t, sink.Suspended())
	require.NoError(t, sink.Emit(ToneFor(SoundTick), 1))
	// 50ms at 8kHz, two bytes per sample
	assert.Equal(t, 800, buf.Len())

	require.NoError(t, sink.Close())
	assert.True(t, sink.Suspended())
}

type countingBeeper struct {
	count int
}

func (b *countingBeeper) Beep() error {
	b.count++
	return nil
}

func TestBellSink(t *testing.T) {
	beeper := &countingBeeper{}
	sink := NewBellSink(beeper)

	require.NoError(t, sink.Emit(ToneFor(SoundClick), 1))
	require.NoError(t, sink.Emit(ToneFor(SoundMute), 1))
	assert.Equal(t, 1, beeper.count)

	var buf bytes.Buffer
	sink.SetBeeper(WriterBeeper{W: &buf})
	require.NoError(t, sink.Emit(ToneFor(SoundClick), 1))
	assert.Equal(t, "\a", buf.String())
}
