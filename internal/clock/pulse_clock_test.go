package clock

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodForBPM(t *testing.T) {
	assert.Equal(t, time.Second, PeriodForBPM(60))
	assert.Equal(t, 500*time.Millisecond, PeriodForBPM(120))
	assert.Equal(t, time.Minute/180, PeriodForBPM(180))
	assert.Equal(t, time.Duration(0), PeriodForBPM(0))
	assert.Equal(t, time.Duration(0), PeriodForBPM(-5))
}

func TestPulseClock_InvalidPeriod(t *testing.T) {
	c := NewPulseClock("Test", NewManualScheduler(epoch), testLogger())

	err := c.Start(0, func() {})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	err = c.Start(-time.Second, func() {})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	assert.False(t, c.IsRunning())
}

func TestPulseClock_StartAndStop(t *testing.T) {
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Test", s, testLogger())

	count := 0
	require.NoError(t, c.Start(time.Second, func() { count++ }))
	assert.True(t, c.IsRunning())
	assert.Equal(t, time.Second, c.Period())

	s.Advance(3 * time.Second)
	assert.Equal(t, 3, count)

	c.Stop()
	assert.False(t, c.IsRunning())
	assert.Equal(t, time.Duration(0), c.Period())
	assert.Equal(t, 0, s.Active())

	s.Advance(3 * time.Second)
	assert.Equal(t, 3, count)
}

func TestPulseClock_StopTwiceIsNoop(t *testing.T) {
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Test", s, testLogger())

	c.Stop()
	require.NoError(t, c.Start(time.Second, func() {}))
	c.Stop()
	c.Stop()

	assert.False(t, c.IsRunning())
	assert.Equal(t, 0, s.Active())
}

func TestPulseClock_RestartReplacesScheduleAndResetsPhase(t *testing.T) {
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Test", s, testLogger())

	oldTicks := 0
	newTicks := 0
	require.NoError(t, c.Start(time.Second, func() { oldTicks++ }))
	s.Advance(1500 * time.Millisecond)
	require.Equal(t, 1, oldTicks)

	require.NoError(t, c.Start(2*time.Second, func() { newTicks++ }))
	assert.Equal(t, 1, s.Active())

	// The old schedule would have fired at 2s; the new one first fires at 3.5s
	s.Advance(1900 * time.Millisecond)
	assert.Equal(t, 1, oldTicks)
	assert.Equal(t, 0, newTicks)

	s.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, newTicks)
	assert.Equal(t, 1, oldTicks)
}

func TestPulseClock_PanickingTickDoesNotStopLaterTicks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Beat", s, logger)

	count := 0
	require.NoError(t, c.Start(time.Second, func() {
		count++
		if count == 2 {
			panic("tick failure")
		}
	}))

	assert.NotPanics(t, func() { s.Advance(4 * time.Second) })
	assert.Equal(t, 4, count)
	assert.True(t, c.IsRunning())
	assert.Contains(t, buf.String(), "Beat: recovered panic: tick failure")
}

func TestPulseClock_StopFromInsideTick(t *testing.T) {
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Test", s, testLogger())

	count := 0
	require.NoError(t, c.Start(time.Second, func() {
		count++
		c.Stop()
	}))

	s.Advance(5 * time.Second)
	assert.Equal(t, 1, count)
	assert.False(t, c.IsRunning())
}

func TestPulseClock_RestartFromInsideTick(t *testing.T) {
	s := NewManualScheduler(epoch)
	c := NewPulseClock("Test", s, testLogger())

	var fired []time.Time
	var onTick func()
	onTick = func() {
		fired = append(fired, s.Now())
		if len(fired) == 1 {
			require.NoError(t, c.Start(2*time.Second, onTick))
		}
	}
	require.NoError(t, c.Start(time.Second, onTick))

	s.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{
		epoch.Add(time.Second),
		epoch.Add(3 * time.Second),
		epoch.Add(5 * time.Second),
	}, fired)
}
