package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

var ErrSinkSuspended = errors.New("audio: sink suspended")

// Sink is the audio output device. Implementations must tolerate Emit being called again
// before the previous tone has finished.
type Sink interface {
	Emit(tone Tone, volume float64) error
	Resume() error
	Suspended() bool
}

// Beeper is anything that can ring the terminal bell; tcell.Screen satisfies it
type Beeper interface {
	Beep() error
}

// WriterBeeper rings the bell by writing BEL to a writer
type WriterBeeper struct {
	W io.Writer
}

func (b WriterBeeper) Beep() error {
	_, err := b.W.Write([]byte{'\a'})
	return err
}

// BellSink plays every tone as a terminal bell
type BellSink struct {
	mu     sync.Mutex
	beeper Beeper
}

func NewBellSink(beeper Beeper) *BellSink {
	if beeper == nil {
		panic("BellSink: beeper cannot be nil")
	}
	return &BellSink{beeper: beeper}
}

// SetBeeper swaps the bell target, e.g. once the terminal screen exists
func (s *BellSink) SetBeeper(beeper Beeper) {
	if beeper == nil {
		return
	}
	s.mu.Lock()
	s.beeper = beeper
	s.mu.Unlock()
}

func (s *BellSink) Emit(tone Tone, volume float64) error {
	if tone.Silent || volume <= 0 {
		return nil
	}
	s.mu.Lock()
	beeper := s.beeper
	s.mu.Unlock()
	return beeper.Beep()
}

func (s *BellSink) Resume() error   { return nil }
func (s *BellSink) Suspended() bool { return false }

// PCMSink writes synthesized S16LE mono samples to a stream opened on Resume.
// The output can be piped to a player such as `aplay -f S16_LE -r <rate>`.
type PCMSink struct {
	mu         sync.Mutex
	open       func() (io.WriteCloser, error)
	out        io.WriteCloser
	sampleRate int
}

func NewPCMSink(sampleRate int, open func() (io.WriteCloser, error)) *PCMSink {
	if open == nil {
		panic("PCMSink: open cannot be nil")
	}
	if sampleRate <= 0 {
		panic("PCMSink: sampleRate must be positive")
	}
	return &PCMSink{open: open, sampleRate: sampleRate}
}

func (s *PCMSink) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out == nil
}

func (s *PCMSink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		return nil
	}
	out, err := s.open()
	if err != nil {
		return err
	}
	s.out = out
	return nil
}

func (s *PCMSink) Emit(tone Tone, volume float64) error {
	samples := Synthesize(tone, volume, s.sampleRate)
	if len(samples) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return ErrSinkSuspended
	}
	return binary.Write(s.out, binary.LittleEndian, samples)
}

// Close releases the output stream and suspends the sink
func (s *PCMSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}
