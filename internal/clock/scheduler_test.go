package clock

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var epoch = time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)

func TestManualScheduler_FiresAtPeriod(t *testing.T) {
	s := NewManualScheduler(epoch)
	count := 0
	s.Every(time.Second, func() { count++ })

	s.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, count)

	s.Advance(time.Millisecond)
	assert.Equal(t, 1, count)

	s.Advance(5 * time.Second)
	assert.Equal(t, 6, count)
	assert.Equal(t, epoch.Add(6*time.Second), s.Now())
}

func TestManualScheduler_OrdersByTimeThenRegistration(t *testing.T) {
	s := NewManualScheduler(epoch)
	order := make([]string, 0)
	s.Every(2*time.Second, func() { order = append(order, "slow") })
	s.Every(time.Second, func() { order = append(order, "fast") })

	s.Advance(2 * time.Second)

	assert.Equal(t, []string{"fast", "slow", "fast"}, order)
}

func TestManualScheduler_CancelFromInsideCallback(t *testing.T) {
	s := NewManualScheduler(epoch)
	count := 0
	var cancel func()
	cancel = s.Every(time.Second, func() {
		count++
		if count == 3 {
			cancel()
		}
	})

	s.Advance(10 * time.Second)
	assert.Equal(t, 3, count)
	assert.Equal(t, 0, s.Active())
}

func TestManualScheduler_CancelIsIdempotent(t *testing.T) {
	s := NewManualScheduler(epoch)
	cancel := s.Every(time.Second, func() {})
	require.Equal(t, 1, s.Active())

	cancel()
	cancel()
	assert.Equal(t, 0, s.Active())
}

func TestManualScheduler_RejectsNonPositivePeriod(t *testing.T) {
	s := NewManualScheduler(epoch)
	assert.Panics(t, func() { s.Every(0, func() {}) })
}

func TestTickerScheduler_FakeClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewTickerScheduler(fc, testLogger())

	ticks := make(chan struct{}, 10)
	cancel := s.Every(time.Second, func() { ticks <- struct{}{} })

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not fire", i+1)
		}
	}

	cancel()
	cancel()
	require.NoError(t, fc.BlockUntilContext(ctx, 0))

	fc.Advance(5 * time.Second)
	select {
	case <-ticks:
		t.Fatal("tick fired after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTickerScheduler_CallbacksDoNotOverlap(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s := NewTickerScheduler(fc, testLogger())

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0
	fired := make(chan struct{}, 10)

	cancel := s.Every(time.Second, func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
		fired <- struct{}{}
	})
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		<-fired
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxInFlight)
}
