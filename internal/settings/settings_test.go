package settings

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/slowrun-trainer/internal/calories"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
)

func newRepo(t *testing.T) (*Repository, *kvstore.MemoryStore) {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	return NewRepository(kv, log.New(io.Discard, "", 0)), kv
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 70.0, d.WeightKg)
	assert.Equal(t, 30, d.Age)
	assert.Equal(t, "male", d.Gender)
	assert.Equal(t, 180, d.DefaultBPM)
	assert.Equal(t, 120, d.MinHR)
	assert.Equal(t, 140, d.MaxHR)
	assert.True(t, d.SoundEnabled)
	assert.True(t, d.VibrationEnabled)
	assert.True(t, d.VoiceEnabled)
	assert.NoError(t, d.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Settings){
		"zero weight":     func(s *Settings) { s.WeightKg = 0 },
		"negative age":    func(s *Settings) { s.Age = -1 },
		"unknown gender":  func(s *Settings) { s.Gender = "robot" },
		"zero bpm":        func(s *Settings) { s.DefaultBPM = 0 },
		"inverted zone":   func(s *Settings) { s.MinHR, s.MaxHR = 150, 130 },
		"huge height":     func(s *Settings) { s.HeightCm = 400 },
		"bad intensity":   func(s *Settings) { s.Intensity = "extreme" },
		"bad terrain":     func(s *Settings) { s.Terrain = "cliff" },
		"bad temperature": func(s *Settings) { s.Temperature = "lava" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := Defaults()
			mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestWith(t *testing.T) {
	s, err := Defaults().With("weight", " 82.5 ")
	require.NoError(t, err)
	assert.Equal(t, 82.5, s.WeightKg)

	s, err = s.With("soundEnabled", "false")
	require.NoError(t, err)
	assert.False(t, s.SoundEnabled)

	s, err = s.With("gender", "Female")
	require.NoError(t, err)
	assert.Equal(t, "female", s.Gender)

	_, err = s.With("shoeSize", "44")
	assert.ErrorIs(t, err, ErrUnknownField)

	unchanged, err := s.With("age", "old")
	assert.Error(t, err)
	assert.Equal(t, s, unchanged)

	_, err = s.With("age", "0")
	assert.Error(t, err)
}

func TestFieldsSorted(t *testing.T) {
	fields := Fields()
	assert.Contains(t, fields, "weight")
	assert.Contains(t, fields, "temperature")
	assert.IsNonDecreasing(t, fields)
}

func TestRepository_LoadMissingUsesDefaults(t *testing.T) {
	repo, _ := newRepo(t)
	assert.Equal(t, Defaults(), repo.Load(context.Background()))
	assert.False(t, repo.Saved())
}

func TestRepository_LoadPartialDocumentKeepsDefaults(t *testing.T) {
	repo, kv := newRepo(t)
	require.NoError(t, kv.Put(context.Background(), Key, []byte(`{"weight":65,"age":41,"gender":"female"}`)))

	s := repo.Load(context.Background())
	assert.Equal(t, 65.0, s.WeightKg)
	assert.Equal(t, 41, s.Age)
	assert.Equal(t, 180, s.DefaultBPM)
	assert.True(t, s.SoundEnabled)
	assert.True(t, repo.Saved())
}

func TestRepository_LoadInclineTerrainProfile(t *testing.T) {
	repo, kv := newRepo(t)
	doc := `{"weight":60,"age":35,"gender":"female","height":165,"intensity":"moderate","terrain":"steep-incline"}`
	require.NoError(t, kv.Put(context.Background(), Key, []byte(doc)))

	loaded := repo.Load(context.Background())
	assert.True(t, repo.Saved())
	assert.Equal(t, "steep-incline", loaded.Terrain)

	profile, ok := loaded.Profile()
	require.True(t, ok)
	assert.Equal(t, calories.TerrainSteepIncline, profile.Terrain)
}

func TestRepository_LoadCorruptOrInvalidUsesDefaults(t *testing.T) {
	for name, doc := range map[string]string{
		"corrupt": `{"weight":`,
		"invalid": `{"weight":-5}`,
	} {
		t.Run(name, func(t *testing.T) {
			repo, kv := newRepo(t)
			require.NoError(t, kv.Put(context.Background(), Key, []byte(doc)))
			assert.Equal(t, Defaults(), repo.Load(context.Background()))
			assert.False(t, repo.Saved())
		})
	}
}

func TestRepository_SaveReloadReset(t *testing.T) {
	ctx := context.Background()
	repo, kv := newRepo(t)

	var seen []Settings
	repo.ListenToChanges(func(s Settings) { seen = append(seen, s) })

	s := Defaults()
	s.WeightKg = 55
	s.HeightCm = 162
	require.NoError(t, repo.Save(ctx, s))
	assert.Equal(t, s, repo.Current())

	reloaded := NewRepository(kv, log.New(io.Discard, "", 0))
	assert.Equal(t, s, reloaded.Load(ctx))
	assert.True(t, reloaded.Saved())

	require.NoError(t, repo.Reset(ctx))
	assert.Equal(t, Defaults(), repo.Current())
	assert.False(t, repo.Saved())
	_, err := kv.Get(ctx, Key)
	assert.True(t, errors.Is(err, kvstore.ErrNotFound))

	require.Len(t, seen, 3)
	assert.Equal(t, Defaults(), seen[0])
	assert.Equal(t, s, seen[1])
	assert.Equal(t, Defaults(), seen[2])
}

func TestRepository_ListenerBeforeLoadSeesDefaults(t *testing.T) {
	repo, _ := newRepo(t)

	var got Settings
	calls := 0
	repo.ListenToChanges(func(s Settings) {
		got = s
		calls++
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, Defaults(), got)
}

func TestRepository_SaveRejectsInvalid(t *testing.T) {
	repo, kv := newRepo(t)
	s := Defaults()
	s.Age = 0

	assert.Error(t, repo.Save(context.Background(), s))
	_, err := kv.Get(context.Background(), Key)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRepository_Estimator(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	repo.Load(ctx)

	// nothing saved: flat 4.0 MET at 60 kg
	assert.Equal(t, calories.Default(), repo.Estimator())
	assert.InDelta(t, 60.0, repo.Estimator().Calories(900), 1e-9)

	s := Defaults()
	s.WeightKg = 80
	require.NoError(t, repo.Save(ctx, s))
	assert.InDelta(t, 80.0, repo.Estimator().Calories(900), 1e-9)

	s.HeightCm = 180
	s.Intensity = "vigorous"
	require.NoError(t, repo.Save(ctx, s))
	est, ok := repo.Estimator().(calories.ProfileEstimator)
	require.True(t, ok)
	assert.Equal(t, calories.IntensityVigorous, est.Profile.Intensity)
	assert.InDelta(t, 110.0, est.Calories(900), 1e-9)
}
