// Package checkin keeps the daily training calendar.
package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

const Key = "checkin_blob"

const dateLayout = "2006-01-02"

var (
	ErrInvalidCheckIn      = errors.New("checkin: invalid check-in")
	ErrInvalidImportFormat = errors.New("checkin: invalid import format")
)

type Feeling string

const (
	FeelingExcellent Feeling = "excellent"
	FeelingGood      Feeling = "good"
	FeelingNormal    Feeling = "normal"
	FeelingTired     Feeling = "tired"
	FeelingHard      Feeling = "hard"
)

var AllFeelings = []Feeling{FeelingExcellent, FeelingGood, FeelingNormal, FeelingTired, FeelingHard}

func (f Feeling) Valid() bool {
	for _, known := range AllFeelings {
		if f == known {
			return true
		}
	}
	return false
}

func ParseFeeling(s string) (Feeling, error) {
	f := Feeling(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown feeling %q", ErrInvalidCheckIn, s)
	}
	return f, nil
}

type Record struct {
	Date      string  `json:"date"`
	Duration  int     `json:"duration"`
	Feeling   Feeling `json:"feeling"`
	Notes     string  `json:"notes,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

func (r Record) validate() error {
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration %d must be positive", ErrInvalidCheckIn, r.Duration)
	}
	if !r.Feeling.Valid() {
		return fmt.Errorf("%w: unknown feeling %q", ErrInvalidCheckIn, r.Feeling)
	}
	return nil
}

// MonthStats is the summary shown above the calendar
type MonthStats struct {
	CurrentStreak int
	MonthTotal    int
	TotalMinutes  int
	TotalDays     int
}

// Day is one cell of a month grid
type Day struct {
	Date   time.Time
	Record *Record
}

type Options struct {
	Now      func() time.Time
	Location *time.Location
}

// Calendar maps local dates to at most one check-in each
type Calendar struct {
	kv     kvstore.Store
	now    func() time.Time
	loc    *time.Location
	logger *log.Logger

	mu      sync.RWMutex
	records map[string]Record

	changedEvent *events.CallbackEvent[int]
}

func NewCalendar(kv kvstore.Store, opts Options, logger *log.Logger) *Calendar {
	if kv == nil {
		panic("Checkin: kv cannot be nil")
	}
	if logger == nil {
		panic("Checkin: logger cannot be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Calendar{
		kv:           kv,
		now:          opts.Now,
		loc:          opts.Location,
		logger:       logger,
		records:      make(map[string]Record),
		changedEvent: events.NewCallbackEvent[int](true),
	}
}

// DateKey formats t as a calendar key in loc
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// ListenToChanges registers a callback receiving the number of checked-in days
// after every load, check-in or import. Returns a deregistration function.
func (c *Calendar) ListenToChanges(fn func(int)) func() {
	return c.changedEvent.Listen(fn)
}

// Load reads the calendar; a missing or corrupt document yields an empty one
func (c *Calendar) Load(ctx context.Context) int {
	records := make(map[string]Record)
	raw, err := c.kv.Get(ctx, Key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &records); err != nil {
			c.logger.Printf("Checkin: %s is corrupt, starting empty: %v", Key, err)
			records = make(map[string]Record)
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		c.logger.Printf("Checkin: failed to read %s, starting empty: %v", Key, err)
	}

	c.mu.Lock()
	c.records = records
	n := len(records)
	c.mu.Unlock()

	c.logger.Printf("Checkin: loaded %d days", n)
	c.changedEvent.Notify(n)
	return n
}

// CheckIn records (or replaces) the entry for date's local day
func (c *Calendar) CheckIn(ctx context.Context, date time.Time, minutes int, feeling Feeling, notes string) (Record, error) {
	record := Record{
		Date:      DateKey(date, c.loc),
		Duration:  minutes,
		Feeling:   feeling,
		Notes:     strings.TrimSpace(notes),
		Timestamp: c.now().UnixMilli(),
	}
	if err := record.validate(); err != nil {
		return Record{}, err
	}

	c.mu.Lock()
	next := make(map[string]Record, len(c.records)+1)
	for k, v := range c.records {
		next[k] = v
	}
	next[record.Date] = record
	c.mu.Unlock()

	if err := c.persist(ctx, next); err != nil {
		return Record{}, err
	}

	c.mu.Lock()
	c.records = next
	n := len(next)
	c.mu.Unlock()

	c.logger.Printf("Checkin: %s %d min, %s", record.Date, record.Duration, record.Feeling)
	c.changedEvent.Notify(n)
	return record, nil
}

// Today returns today's record, if any
func (c *Calendar) Today() (Record, bool) {
	return c.Get(c.now())
}

func (c *Calendar) Get(date time.Time) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[DateKey(date, c.loc)]
	return r, ok
}

// Stats summarises the calendar. The streak counts consecutive checked-in days
// back from today; MonthTotal counts days in the given month.
func (c *Calendar) Stats(year int, month time.Month) MonthStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var st MonthStats
	today := c.now().In(c.loc)
	for d := today; ; d = d.AddDate(0, 0, -1) {
		if _, ok := c.records[DateKey(d, c.loc)]; !ok {
			break
		}
		st.CurrentStreak++
	}

	prefix := fmt.Sprintf("%04d-%02d-", year, int(month))
	for key, r := range c.records {
		if strings.HasPrefix(key, prefix) {
			st.MonthTotal++
		}
		if r.Duration > 0 {
			st.TotalMinutes += r.Duration
			st.TotalDays++
		}
	}
	return st
}

// Month returns every day of the month in order with its record, if any
func (c *Calendar) Month(year int, month time.Month) []Day {
	c.mu.RLock()
	defer c.mu.RUnlock()

	first := time.Date(year, month, 1, 0, 0, 0, 0, c.loc)
	days := make([]Day, 0, 31)
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		day := Day{Date: d}
		if r, ok := c.records[DateKey(d, c.loc)]; ok {
			rec := r
			day.Record = &rec
		}
		days = append(days, day)
	}
	return days
}

// Dates lists the checked-in keys, oldest first
func (c *Calendar) Dates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Export writes the calendar as an indented JSON object keyed by date
func (c *Calendar) Export(w io.Writer) error {
	c.mu.RLock()
	raw, err := json.MarshalIndent(c.records, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("checkin: encode: %w", err)
	}
	if _, err := w.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("checkin: write: %w", err)
	}
	return nil
}

// Import replaces the calendar with an exported document. Anything malformed
// is rejected and the calendar is left untouched.
func (c *Calendar) Import(ctx context.Context, r io.Reader) (int, error) {
	var incoming map[string]Record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&incoming); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImportFormat, err)
	}
	if incoming == nil {
		return 0, fmt.Errorf("%w: expected an object", ErrInvalidImportFormat)
	}
	for key, rec := range incoming {
		if _, err := time.ParseInLocation(dateLayout, key, c.loc); err != nil {
			return 0, fmt.Errorf("%w: bad date %q", ErrInvalidImportFormat, key)
		}
		if err := rec.validate(); err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidImportFormat, key, err)
		}
		rec.Date = key
		incoming[key] = rec
	}

	if err := c.persist(ctx, incoming); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.records = incoming
	c.mu.Unlock()

	c.logger.Printf("Checkin: imported %d days", len(incoming))
	c.changedEvent.Notify(len(incoming))
	return len(incoming), nil
}

func (c *Calendar) persist(ctx context.Context, records map[string]Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("checkin: encode: %w", err)
	}
	if err := c.kv.Put(ctx, Key, raw); err != nil {
		c.logger.Printf("Checkin: failed to persist: %v", err)
		return fmt.Errorf("checkin: persist: %w", err)
	}
	return nil
}
