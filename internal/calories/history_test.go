package calories

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

var historyEpoch = time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)

func newHistory(kv kvstore.Store, capacity int) *History {
	return NewHistory(kv, HistoryOptions{
		Capacity: capacity,
		Now:      func() time.Time { return historyEpoch },
	}, log.New(io.Discard, "", 0))
}

func TestHistory_AddKeepsNewestFirstWithinCapacity(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	h := newHistory(kv, 3)
	h.Load(ctx)

	for minutes := 10; minutes <= 50; minutes += 10 {
		require.NoError(t, h.Add(ctx, Calculation{Minutes: minutes, Total: float64(minutes)}))
	}

	entries := h.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 50, entries[0].Minutes)
	assert.Equal(t, 30, entries[2].Minutes)
	assert.True(t, historyEpoch.Equal(entries[0].Timestamp))

	reloaded := newHistory(kv, 3).Load(ctx)
	assert.Equal(t, entries, reloaded)
}

func TestHistory_LoadCorruptStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Put(ctx, HistoryKey, []byte(`{"total":`)))

	h := newHistory(kv, 0)
	assert.Empty(t, h.Load(ctx))

	require.NoError(t, h.Add(ctx, Calculation{Minutes: 30}))
	assert.Len(t, h.Entries(), 1)
}

func TestHistory_LoadTruncatesToCapacity(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Put(ctx, HistoryKey, []byte(`[{"duration":1},{"duration":2},{"duration":3}]`)))

	entries := newHistory(kv, 2).Load(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Minutes)
}

func TestNewCalculation_CopiesProfileAndBreakdown(t *testing.T) {
	p := Profile{WeightKg: 60, HeightCm: 165, Age: 35, Gender: GenderFemale, Terrain: TerrainSteepIncline}
	b := ProfileEstimator{Profile: p}.Breakdown(30)

	c := NewCalculation(p, 30, b, historyEpoch)
	assert.Equal(t, 30, c.Minutes)
	assert.Equal(t, TerrainSteepIncline, c.Terrain)
	assert.InDelta(t, b.Total, c.Total, 1e-9)
	assert.InDelta(t, b.PerMinute, c.PerMinute, 1e-9)
	assert.True(t, historyEpoch.Equal(c.Timestamp))
}
