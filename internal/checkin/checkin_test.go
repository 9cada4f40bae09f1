package checkin

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

var today = time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)

func newCalendar(t *testing.T) (*Calendar, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	cal := NewCalendar(kv, Options{
		Now:      func() time.Time { return today },
		Location: time.UTC,
	}, log.New(io.Discard, "", 0))
	cal.Load(context.Background())
	return cal, kv
}

func day(offset int) time.Time {
	return today.AddDate(0, 0, offset)
}

func TestParseFeeling(t *testing.T) {
	f, err := ParseFeeling(" Tired ")
	require.NoError(t, err)
	assert.Equal(t, FeelingTired, f)

	_, err = ParseFeeling("sleepy")
	assert.ErrorIs(t, err, ErrInvalidCheckIn)
}

func TestCheckIn_Validation(t *testing.T) {
	cal, kv := newCalendar(t)
	ctx := context.Background()

	_, err := cal.CheckIn(ctx, today, 0, FeelingGood, "")
	assert.ErrorIs(t, err, ErrInvalidCheckIn)
	_, err = cal.CheckIn(ctx, today, 20, Feeling("meh"), "")
	assert.ErrorIs(t, err, ErrInvalidCheckIn)

	_, ok := cal.Today()
	assert.False(t, ok)
	_, err = kv.Get(ctx, Key)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestCheckIn_ReplacesSameDay(t *testing.T) {
	cal, _ := newCalendar(t)
	ctx := context.Background()

	_, err := cal.CheckIn(ctx, today, 20, FeelingGood, "first")
	require.NoError(t, err)
	rec, err := cal.CheckIn(ctx, today.Add(3*time.Hour), 35, FeelingTired, "  second ")
	require.NoError(t, err)

	assert.Equal(t, "2026-04-12", rec.Date)
	assert.Equal(t, "second", rec.Notes)
	assert.Equal(t, today.UnixMilli(), rec.Timestamp)

	got, ok := cal.Get(today)
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, []string{"2026-04-12"}, cal.Dates())
}

func TestStats(t *testing.T) {
	cal, _ := newCalendar(t)
	ctx := context.Background()
	for _, c := range []struct {
		offset  int
		minutes int
	}{{0, 30}, {-1, 20}, {-2, 15}, {-4, 10}, {-12, 25}} {
		_, err := cal.CheckIn(ctx, day(c.offset), c.minutes, FeelingNormal, "")
		require.NoError(t, err)
	}

	st := cal.Stats(2026, time.April)
	assert.Equal(t, 3, st.CurrentStreak)
	assert.Equal(t, 4, st.MonthTotal)
	assert.Equal(t, 100, st.TotalMinutes)
	assert.Equal(t, 5, st.TotalDays)

	march := cal.Stats(2026, time.March)
	assert.Equal(t, 1, march.MonthTotal)
}

func TestStats_NoCheckInTodayBreaksStreak(t *testing.T) {
	cal, _ := newCalendar(t)
	_, err := cal.CheckIn(context.Background(), day(-1), 20, FeelingGood, "")
	require.NoError(t, err)

	assert.Equal(t, 0, cal.Stats(2026, time.April).CurrentStreak)
}

func TestMonth(t *testing.T) {
	cal, _ := newCalendar(t)
	_, err := cal.CheckIn(context.Background(), day(-2), 20, FeelingExcellent, "")
	require.NoError(t, err)

	days := cal.Month(2026, time.April)
	require.Len(t, days, 30)
	assert.Equal(t, 1, days[0].Date.Day())
	assert.Equal(t, 30, days[29].Date.Day())
	require.NotNil(t, days[9].Record)
	assert.Equal(t, FeelingExcellent, days[9].Record.Feeling)
	assert.Nil(t, days[10].Record)

	assert.Len(t, cal.Month(2028, time.February), 29)
}

func TestReload(t *testing.T) {
	cal, kv := newCalendar(t)
	_, err := cal.CheckIn(context.Background(), today, 20, FeelingGood, "easy")
	require.NoError(t, err)

	again := NewCalendar(kv, Options{Now: func() time.Time { return today }, Location: time.UTC}, log.New(io.Discard, "", 0))
	assert.Equal(t, 1, again.Load(context.Background()))
	rec, ok := again.Today()
	require.True(t, ok)
	assert.Equal(t, "easy", rec.Notes)
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Put(context.Background(), Key, []byte("[1,2")))
	cal := NewCalendar(kv, Options{Location: time.UTC}, log.New(io.Discard, "", 0))
	assert.Equal(t, 0, cal.Load(context.Background()))
}

func TestExportImportRoundTrip(t *testing.T) {
	cal, _ := newCalendar(t)
	ctx := context.Background()
	_, err := cal.CheckIn(ctx, today, 20, FeelingGood, "a")
	require.NoError(t, err)
	_, err = cal.CheckIn(ctx, day(-1), 40, FeelingHard, "b")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cal.Export(&buf))
	assert.Contains(t, buf.String(), `"2026-04-11"`)

	other, _ := newCalendar(t)
	n, err := other.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, cal.Dates(), other.Dates())
	assert.Equal(t, cal.Stats(2026, time.April), other.Stats(2026, time.April))
}

func TestImportRejectsMalformed(t *testing.T) {
	inputs := map[string]string{
		"not json":     `{"2026-04-12":`,
		"array":        `[]`,
		"null":         `null`,
		"bad date":     `{"12/04/2026":{"duration":20,"feeling":"good"}}`,
		"bad feeling":  `{"2026-04-12":{"duration":20,"feeling":"sleepy"}}`,
		"zero minutes": `{"2026-04-12":{"duration":0,"feeling":"good"}}`,
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			cal, _ := newCalendar(t)
			_, err := cal.CheckIn(context.Background(), today, 20, FeelingGood, "")
			require.NoError(t, err)

			_, err = cal.Import(context.Background(), strings.NewReader(input))
			assert.ErrorIs(t, err, ErrInvalidImportFormat)
			assert.Equal(t, []string{"2026-04-12"}, cal.Dates())
		})
	}
}

func TestListenToChanges(t *testing.T) {
	cal, _ := newCalendar(t)
	var counts []int
	cal.ListenToChanges(func(n int) { counts = append(counts, n) })

	_, err := cal.CheckIn(context.Background(), today, 20, FeelingGood, "")
	require.NoError(t, err)

	// sticky replay of the load, then the check-in
	assert.Equal(t, []int{0, 1}, counts)
}
