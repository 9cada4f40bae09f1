package calories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

// HistoryKey holds the most recent calculations, newest first
const HistoryKey = "calorie_history_blob"

const DefaultHistoryCapacity = 20

// Calculation is one saved estimate together with the inputs that produced it
type Calculation struct {
	Minutes     int         `json:"duration"`
	WeightKg    float64     `json:"weight"`
	HeightCm    float64     `json:"height"`
	Age         int         `json:"age"`
	Gender      Gender      `json:"gender"`
	Intensity   Intensity   `json:"intensity,omitempty"`
	Terrain     Terrain     `json:"terrain,omitempty"`
	Temperature Temperature `json:"temperature,omitempty"`
	Total       float64     `json:"total"`
	BMR         float64     `json:"bmr"`
	Exercise    float64     `json:"exercise"`
	PerMinute   float64     `json:"perMinute"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewCalculation records b as computed for profile over minutes
func NewCalculation(profile Profile, minutes int, b Breakdown, at time.Time) Calculation {
	return Calculation{
		Minutes:     minutes,
		WeightKg:    profile.WeightKg,
		HeightCm:    profile.HeightCm,
		Age:         profile.Age,
		Gender:      profile.Gender,
		Intensity:   profile.Intensity,
		Terrain:     profile.Terrain,
		Temperature: profile.Temperature,
		Total:       b.Total,
		BMR:         b.BMR,
		Exercise:    b.Exercise,
		PerMinute:   b.PerMinute,
		Timestamp:   at,
	}
}

type HistoryOptions struct {
	Capacity int
	Now      func() time.Time
}

// History is a bounded newest-first log of calorie calculations
type History struct {
	kv       kvstore.Store
	capacity int
	now      func() time.Time
	logger   *log.Logger

	persistMu sync.Mutex
	mu        sync.RWMutex
	entries   []Calculation
}

func NewHistory(kv kvstore.Store, opts HistoryOptions, logger *log.Logger) *History {
	if kv == nil {
		panic("CalorieHistory: kv cannot be nil")
	}
	if logger == nil {
		panic("CalorieHistory: logger cannot be nil")
	}
	if opts.Capacity < 1 {
		opts.Capacity = DefaultHistoryCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &History{
		kv:       kv,
		capacity: opts.Capacity,
		now:      opts.Now,
		logger:   logger,
	}
}

// Load reads the saved history. A missing or corrupt document yields an empty one.
func (h *History) Load(ctx context.Context) []Calculation {
	var entries []Calculation
	raw, err := h.kv.Get(ctx, HistoryKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &entries); err != nil {
			h.logger.Printf("CalorieHistory: %s is corrupt, starting empty: %v", HistoryKey, err)
			entries = nil
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		h.logger.Printf("CalorieHistory: failed to read %s: %v", HistoryKey, err)
	}
	if len(entries) > h.capacity {
		entries = entries[:h.capacity]
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
	return h.Entries()
}

// Add prepends c, drops the oldest beyond capacity and persists the log.
// A zero Timestamp is set to now.
func (h *History) Add(ctx context.Context, c Calculation) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = h.now()
	}

	h.persistMu.Lock()
	defer h.persistMu.Unlock()

	h.mu.Lock()
	next := make([]Calculation, 0, h.capacity)
	next = append(next, c)
	next = append(next, h.entries...)
	if len(next) > h.capacity {
		next = next[:h.capacity]
	}
	raw, err := json.Marshal(next)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("calories: encode history: %w", err)
	}
	h.mu.Unlock()

	if err := h.kv.Put(ctx, HistoryKey, raw); err != nil {
		return fmt.Errorf("calories: save history: %w", err)
	}

	h.mu.Lock()
	h.entries = next
	h.mu.Unlock()
	return nil
}

// Entries returns a copy of the log, newest first
func (h *History) Entries() []Calculation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Calculation(nil), h.entries...)
}
