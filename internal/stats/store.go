package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

// Storage keys
const (
	KeyStats   = "stats_blob"
	KeyRecords = "records_blob"
	KeyBackup  = "backup_blob"
)

const DefaultCapacity = 20

var ErrInvalidImportFormat = errors.New("stats: invalid import format")

// AppState is the runtime state saved next to the aggregate
type AppState struct {
	BPM             int     `json:"bpm"`
	Volume          float64 `json:"volume"`
	SoundProfile    string  `json:"soundProfile"`
	CurrentDuration int     `json:"currentDuration"`
}

type statsDocument struct {
	State     *AppState `json:"state,omitempty"`
	Stats     Aggregate `json:"stats"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a consistent view of the aggregate and the records
type Snapshot struct {
	Aggregate Aggregate
	Records   []SessionSummary
}

type Options struct {
	Capacity   int
	AppVersion string
	Now        func() time.Time
	Location   *time.Location
}

// Store owns the aggregate and the newest-first record log and is the only writer
// of their persisted documents.
type Store struct {
	kv         kvstore.Store
	capacity   int
	appVersion string
	now        func() time.Time
	loc        *time.Location
	logger     *log.Logger

	// persistMu serialises writes so documents land in mutation order
	persistMu sync.Mutex

	mu       sync.RWMutex
	agg      Aggregate
	records  []SessionSummary
	state    AppState
	hasState bool

	changedEvent *events.CallbackEvent[Snapshot]
}

func NewStore(kv kvstore.Store, opts Options, logger *log.Logger) *Store {
	if kv == nil {
		panic("StatsStore: kv cannot be nil")
	}
	if logger == nil {
		panic("StatsStore: logger cannot be nil")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Store{
		kv:           kv,
		capacity:     opts.Capacity,
		appVersion:   opts.AppVersion,
		now:          opts.Now,
		loc:          opts.Location,
		logger:       logger,
		records:      make([]SessionSummary, 0, opts.Capacity),
		changedEvent: events.NewCallbackEvent[Snapshot](true),
	}
}

func (s *Store) Capacity() int {
	return s.capacity
}

// ListenToChanges registers a callback run after every append, import or reset.
// Returns a deregistration function.
func (s *Store) ListenToChanges(fn func(Snapshot)) func() {
	return s.changedEvent.Listen(fn)
}

// Load reads the persisted aggregate and records. Missing or corrupt documents fall back
// to empty defaults; the error is only logged.
func (s *Store) Load(ctx context.Context) Aggregate {
	agg := Aggregate{}
	var state *AppState

	if raw, err := s.kv.Get(ctx, KeyStats); err == nil {
		var doc statsDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Printf("StatsStore: %s is corrupt, using defaults: %v", KeyStats, err)
		} else {
			agg = doc.Stats
			state = doc.State
		}
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Printf("StatsStore: failed to read %s, using defaults: %v", KeyStats, err)
	}

	records := make([]SessionSummary, 0, s.capacity)
	if raw, err := s.kv.Get(ctx, KeyRecords); err == nil {
		var loaded []SessionSummary
		if err := json.Unmarshal(raw, &loaded); err != nil {
			s.logger.Printf("StatsStore: %s is corrupt, using defaults: %v", KeyRecords, err)
		} else {
			records = append(records, s.truncate(loaded)...)
		}
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		s.logger.Printf("StatsStore: failed to read %s, using defaults: %v", KeyRecords, err)
	}

	s.mu.Lock()
	s.agg = agg
	s.records = records
	if state != nil {
		s.state = *state
		s.hasState = true
	}
	snap := s.buildSnapshot()
	s.mu.Unlock()

	s.logger.Printf("StatsStore: loaded %d sessions, %d recent records", agg.TotalSessions, len(records))
	s.changedEvent.Notify(snap)
	return agg
}

// Append adds a summary as the newest record, evicting the oldest beyond capacity,
// and folds it into the aggregate. The in-memory update is applied atomically even
// when persisting fails; the persistence error is returned.
func (s *Store) Append(ctx context.Context, summary SessionSummary) error {
	summary.Date = normalizeTime(summary.Date)

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	records := make([]SessionSummary, 0, s.capacity)
	records = append(records, summary)
	records = append(records, s.records...)
	s.records = s.truncate(records)
	s.agg = s.agg.with(summary, s.loc)
	docs, err := s.buildDocuments()
	snap := s.buildSnapshot()
	s.mu.Unlock()

	s.logger.Printf("StatsStore: appended session %s (%ds, %d BPM, %d steps)",
		summary.ID, summary.DurationSeconds, summary.BPM, summary.Steps)
	s.changedEvent.Notify(snap)

	if err != nil {
		return err
	}
	if err := s.kv.PutAll(ctx, docs); err != nil {
		s.logger.Printf("StatsStore: failed to persist: %v", err)
		return fmt.Errorf("stats: persist: %w", err)
	}
	return nil
}

// SaveState records the runtime state and persists it with the aggregate
func (s *Store) SaveState(ctx context.Context, state AppState) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.hasState && s.state == state {
		s.mu.Unlock()
		return nil
	}
	s.state = state
	s.hasState = true
	doc, err := s.buildStatsDocument()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, KeyStats, doc); err != nil {
		return fmt.Errorf("stats: persist state: %w", err)
	}
	return nil
}

// State returns the saved runtime state, if any
func (s *Store) State() (AppState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.hasState
}

func (s *Store) Aggregate() Aggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg
}

// Records returns a copy of the recent records, newest first
func (s *Store) Records() []SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SessionSummary(nil), s.records...)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildSnapshot()
}

// TodaySeconds is the running time logged today
func (s *Store) TodaySeconds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.TodaySecondsAt(s.now(), s.loc)
}

// Reset clears every session and the aggregate. The runtime state is kept.
func (s *Store) Reset(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	s.agg = Aggregate{}
	s.records = make([]SessionSummary, 0, s.capacity)
	docs, err := s.buildDocuments()
	snap := s.buildSnapshot()
	s.mu.Unlock()

	s.logger.Println("StatsStore: reset")
	s.changedEvent.Notify(snap)
	if err != nil {
		return err
	}
	return s.kv.PutAll(ctx, docs)
}

func (s *Store) truncate(records []SessionSummary) []SessionSummary {
	if len(records) > s.capacity {
		return records[:s.capacity]
	}
	return records
}

// Must be called with mu held
func (s *Store) buildSnapshot() Snapshot {
	return Snapshot{
		Aggregate: s.agg,
		Records:   append([]SessionSummary(nil), s.records...),
	}
}

// Must be called with mu held
func (s *Store) buildStatsDocument() ([]byte, error) {
	return encodeStatsDocument(s.agg, s.statePtr(), s.now())
}

// Must be called with mu held
func (s *Store) buildDocuments() (map[string][]byte, error) {
	return encodeDocuments(s.agg, s.records, s.statePtr(), s.now())
}

// Must be called with mu held
func (s *Store) statePtr() *AppState {
	if !s.hasState {
		return nil
	}
	state := s.state
	return &state
}

func encodeStatsDocument(agg Aggregate, state *AppState, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(statsDocument{State: state, Stats: agg, Timestamp: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("stats: encode %s: %w", KeyStats, err)
	}
	return raw, nil
}

func encodeDocuments(agg Aggregate, records []SessionSummary, state *AppState, now time.Time) (map[string][]byte, error) {
	statsRaw, err := encodeStatsDocument(agg, state, now)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []SessionSummary{}
	}
	recordsRaw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("stats: encode %s: %w", KeyRecords, err)
	}
	return map[string][]byte{KeyStats: statsRaw, KeyRecords: recordsRaw}, nil
}
