// Package settings holds the user profile used for calorie estimates and metronome defaults.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lowaak/slowrun-trainer/internal/calories"
	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

const Key = "settings_blob"

var ErrUnknownField = errors.New("settings: unknown field")

type Settings struct {
	WeightKg         float64 `json:"weight"`
	Age              int     `json:"age"`
	Gender           string  `json:"gender"`
	DefaultBPM       int     `json:"defaultBpm"`
	MinHR            int     `json:"minHR"`
	MaxHR            int     `json:"maxHR"`
	SoundEnabled     bool    `json:"soundEnabled"`
	VibrationEnabled bool    `json:"vibrationEnabled"`
	VoiceEnabled     bool    `json:"voiceEnabled"`

	HeightCm    float64 `json:"height,omitempty"`
	Intensity   string  `json:"intensity,omitempty"`
	Terrain     string  `json:"terrain,omitempty"`
	Temperature string  `json:"temperature,omitempty"`
}

func Defaults() Settings {
	return Settings{
		WeightKg:         70,
		Age:              30,
		Gender:           string(calories.GenderMale),
		DefaultBPM:       180,
		MinHR:            120,
		MaxHR:            140,
		SoundEnabled:     true,
		VibrationEnabled: true,
		VoiceEnabled:     true,
	}
}

func (s Settings) Validate() error {
	if s.WeightKg <= 0 || s.WeightKg > 400 {
		return fmt.Errorf("settings: weight %.1f kg out of range", s.WeightKg)
	}
	if s.Age <= 0 || s.Age > 120 {
		return fmt.Errorf("settings: age %d out of range", s.Age)
	}
	switch calories.Gender(strings.ToLower(s.Gender)) {
	case calories.GenderMale, calories.GenderFemale:
	default:
		return fmt.Errorf("settings: unknown gender %q", s.Gender)
	}
	if s.DefaultBPM <= 0 {
		return fmt.Errorf("settings: default BPM %d must be positive", s.DefaultBPM)
	}
	if s.MinHR <= 0 || s.MaxHR < s.MinHR {
		return fmt.Errorf("settings: heart rate zone %d-%d is invalid", s.MinHR, s.MaxHR)
	}
	if s.HeightCm < 0 || s.HeightCm > 260 {
		return fmt.Errorf("settings: height %.1f cm out of range", s.HeightCm)
	}
	if _, err := calories.ParseIntensity(s.Intensity); err != nil {
		return err
	}
	if _, err := calories.ParseTerrain(s.Terrain); err != nil {
		return err
	}
	if _, err := calories.ParseTemperature(s.Temperature); err != nil {
		return err
	}
	return nil
}

// Profile converts to the calorie profile. ok is false when the height is missing
// or the profile does not validate.
func (s Settings) Profile() (calories.Profile, bool) {
	intensity, _ := calories.ParseIntensity(s.Intensity)
	terrain, _ := calories.ParseTerrain(s.Terrain)
	temperature, _ := calories.ParseTemperature(s.Temperature)
	p := calories.Profile{
		WeightKg:    s.WeightKg,
		HeightCm:    s.HeightCm,
		Age:         s.Age,
		Gender:      calories.Gender(strings.ToLower(s.Gender)),
		Intensity:   intensity,
		Terrain:     terrain,
		Temperature: temperature,
	}
	if s.HeightCm <= 0 || p.Validate() != nil {
		return p, false
	}
	return p, true
}

var setters = map[string]func(*Settings, string) error{
	"weight": func(s *Settings, v string) (err error) {
		s.WeightKg, err = strconv.ParseFloat(v, 64)
		return
	},
	"height": func(s *Settings, v string) (err error) {
		s.HeightCm, err = strconv.ParseFloat(v, 64)
		return
	},
	"age": func(s *Settings, v string) (err error) {
		s.Age, err = strconv.Atoi(v)
		return
	},
	"gender":      func(s *Settings, v string) error { s.Gender = strings.ToLower(v); return nil },
	"intensity":   func(s *Settings, v string) error { s.Intensity = strings.ToLower(v); return nil },
	"terrain":     func(s *Settings, v string) error { s.Terrain = strings.ToLower(v); return nil },
	"temperature": func(s *Settings, v string) error { s.Temperature = strings.ToLower(v); return nil },
	"defaultBpm": func(s *Settings, v string) (err error) {
		s.DefaultBPM, err = strconv.Atoi(v)
		return
	},
	"minHR": func(s *Settings, v string) (err error) {
		s.MinHR, err = strconv.Atoi(v)
		return
	},
	"maxHR": func(s *Settings, v string) (err error) {
		s.MaxHR, err = strconv.Atoi(v)
		return
	},
	"soundEnabled": func(s *Settings, v string) (err error) {
		s.SoundEnabled, err = strconv.ParseBool(v)
		return
	},
	"vibrationEnabled": func(s *Settings, v string) (err error) {
		s.VibrationEnabled, err = strconv.ParseBool(v)
		return
	},
	"voiceEnabled": func(s *Settings, v string) (err error) {
		s.VoiceEnabled, err = strconv.ParseBool(v)
		return
	},
}

// Fields lists the names accepted by With
func Fields() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy with one field parsed from text and the result validated
func (s Settings) With(field, value string) (Settings, error) {
	set, ok := setters[field]
	if !ok {
		return s, fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	next := s
	if err := set(&next, strings.TrimSpace(value)); err != nil {
		return s, fmt.Errorf("settings: %s: %w", field, err)
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// Repository loads and saves the profile document
type Repository struct {
	kv     kvstore.Store
	logger *log.Logger

	mu      sync.RWMutex
	current Settings
	saved   bool

	changedEvent *events.CallbackEvent[Settings]
}

func NewRepository(kv kvstore.Store, logger *log.Logger) *Repository {
	if kv == nil {
		panic("Settings: kv cannot be nil")
	}
	if logger == nil {
		panic("Settings: logger cannot be nil")
	}
	r := &Repository{
		kv:           kv,
		logger:       logger,
		current:      Defaults(),
		changedEvent: events.NewCallbackEvent[Settings](true),
	}
	r.changedEvent.Notify(r.current)
	return r
}

// ListenToChanges registers a callback run after every load, save or reset.
// Returns a deregistration function.
func (r *Repository) ListenToChanges(fn func(Settings)) func() {
	return r.changedEvent.Listen(fn)
}

// Load reads the saved profile. Missing fields keep their defaults; a missing,
// corrupt or invalid document yields Defaults.
func (r *Repository) Load(ctx context.Context) Settings {
	loaded := Defaults()
	saved := false

	raw, err := r.kv.Get(ctx, Key)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &loaded); err != nil {
			r.logger.Printf("Settings: %s is corrupt, using defaults: %v", Key, err)
			loaded = Defaults()
		} else if err := loaded.Validate(); err != nil {
			r.logger.Printf("Settings: %s is invalid, using defaults: %v", Key, err)
			loaded = Defaults()
		} else {
			saved = true
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		r.logger.Printf("Settings: failed to read %s, using defaults: %v", Key, err)
	}

	r.mu.Lock()
	r.current = loaded
	r.saved = saved
	r.mu.Unlock()

	r.changedEvent.Notify(loaded)
	return loaded
}

func (r *Repository) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := r.kv.Put(ctx, Key, raw); err != nil {
		return fmt.Errorf("settings: persist: %w", err)
	}

	r.mu.Lock()
	r.current = s
	r.saved = true
	r.mu.Unlock()

	r.logger.Printf("Settings: saved (weight %.1f kg, %d BPM)", s.WeightKg, s.DefaultBPM)
	r.changedEvent.Notify(s)
	return nil
}

// Reset removes the saved profile and returns to Defaults
func (r *Repository) Reset(ctx context.Context) error {
	if err := r.kv.Delete(ctx, Key); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("settings: reset: %w", err)
	}
	defaults := Defaults()

	r.mu.Lock()
	r.current = defaults
	r.saved = false
	r.mu.Unlock()

	r.logger.Println("Settings: reset to defaults")
	r.changedEvent.Notify(defaults)
	return nil
}

func (r *Repository) Current() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Saved reports whether the current profile came from storage
func (r *Repository) Saved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saved
}

// Estimator picks the calorie model: the detailed profile when it is complete,
// the flat MET model with the saved weight otherwise, and the flat defaults
// when nothing was saved.
func (r *Repository) Estimator() calories.Estimator {
	r.mu.RLock()
	current, saved := r.current, r.saved
	r.mu.RUnlock()

	if !saved {
		return calories.Default()
	}
	if profile, ok := current.Profile(); ok {
		return calories.ProfileEstimator{Profile: profile}
	}
	return calories.FlatMET{MET: calories.DefaultMET, WeightKg: current.WeightKg}
}
