// Package config loads runtime configuration from defaults, an optional config
// file, SLOWRUN_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

const EnvPrefix = "SLOWRUN"

// Audio backends
const (
	AudioBell = "bell"
	AudioPCM  = "pcm"
	AudioNone = "none"
)

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type MetronomeConfig struct {
	MinBPM               int     `mapstructure:"min_bpm"`
	MaxBPM               int     `mapstructure:"max_bpm"`
	DefaultBPM           int     `mapstructure:"default_bpm"`
	DefaultVolume        float64 `mapstructure:"default_volume"`
	DefaultSound         string  `mapstructure:"default_sound"`
	PreviewOnSoundChange bool    `mapstructure:"preview_on_sound_change"`
}

type WorkoutConfig struct {
	DefaultMinutes int `mapstructure:"default_minutes"`
	MaxMinutes     int `mapstructure:"max_minutes"`
}

type StatsConfig struct {
	RecordCapacity int `mapstructure:"record_capacity"`
}

type AudioConfig struct {
	Backend    string `mapstructure:"backend"`
	SampleRate int    `mapstructure:"sample_rate"`
	PCMFile    string `mapstructure:"pcm_file"`
}

type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Storage   string          `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Metronome MetronomeConfig `mapstructure:"metronome"`
	Workout   WorkoutConfig   `mapstructure:"workout"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Audio     AudioConfig     `mapstructure:"audio"`

	// ConfigFile is the file that was read, empty when none was found
	ConfigFile string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage", kvstore.BackendFile)

	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 5)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", false)

	v.SetDefault("metronome.min_bpm", metronome.DefaultMinBPM)
	v.SetDefault("metronome.max_bpm", metronome.DefaultMaxBPM)
	v.SetDefault("metronome.default_bpm", metronome.DefaultBPM)
	v.SetDefault("metronome.default_volume", metronome.DefaultVolume)
	v.SetDefault("metronome.default_sound", string(metronome.DefaultSound))
	v.SetDefault("metronome.preview_on_sound_change", true)

	v.SetDefault("workout.default_minutes", workout.DefaultMinutes)
	v.SetDefault("workout.max_minutes", workout.MaxMinutes)

	v.SetDefault("stats.record_capacity", stats.DefaultCapacity)

	v.SetDefault("audio.backend", AudioBell)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.pcm_file", "")
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"data-dir":      "data_dir",
	"storage":       "storage",
	"log-file":      "log.file",
	"bpm":           "metronome.default_bpm",
	"volume":        "metronome.default_volume",
	"sound":         "metronome.default_sound",
	"minutes":       "workout.default_minutes",
	"audio":         "audio.backend",
	"audio-pcm-out": "audio.pcm_file",
}

// RegisterFlags adds the persistent flags Load understands to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default "+filepath.Join(DefaultConfigDir(), "config.yaml")+")")
	fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	fs.String("data-dir", "", "directory for stored data and logs")
	fs.String("storage", "", "storage backend: file, sqlite or memory")
	fs.String("log-file", "", "log file path (default <data-dir>/slowrun.log)")
	fs.Int("bpm", 0, "initial cadence in beats per minute")
	fs.Float64("volume", 0, "initial volume between 0 and 1")
	fs.String("sound", "", "initial sound profile")
	fs.Int("minutes", 0, "default workout length in minutes")
	fs.String("audio", "", "audio backend: bell, pcm or none")
	fs.String("audio-pcm-out", "", "file or fifo receiving raw S16LE samples for the pcm backend")
}

// Load resolves the configuration. fs may be nil; only flags that were set on
// the command line override lower layers.
func Load(fs *pflag.FlagSet) (Config, error) {
	envFile := ".env"
	configFile := ""
	if fs != nil {
		if f := fs.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: read: %w", err)
			}
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: bind --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.DataDir, appName+".log")
	}
	cfg.Metronome.DefaultSound = strings.ToLower(cfg.Metronome.DefaultSound)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DataDir == "" && c.Storage != kvstore.BackendMemory {
		return errors.New("config: data_dir is empty")
	}
	switch c.Storage {
	case kvstore.BackendFile, kvstore.BackendSQLite, kvstore.BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	switch c.Audio.Backend {
	case AudioBell, AudioNone:
	case AudioPCM:
		if c.Audio.PCMFile == "" {
			return errors.New("config: audio.pcm_file is required for the pcm backend")
		}
		if c.Audio.SampleRate <= 0 {
			return fmt.Errorf("config: audio.sample_rate %d must be positive", c.Audio.SampleRate)
		}
	default:
		return fmt.Errorf("config: unknown audio backend %q", c.Audio.Backend)
	}
	if _, err := c.MetronomeSettings(); err != nil {
		return err
	}
	if c.Workout.MaxMinutes < 1 {
		return fmt.Errorf("config: workout.max_minutes %d must be positive", c.Workout.MaxMinutes)
	}
	if c.Workout.DefaultMinutes < 1 || c.Workout.DefaultMinutes > c.Workout.MaxMinutes {
		return fmt.Errorf("config: workout.default_minutes %d not in [1, %d]", c.Workout.DefaultMinutes, c.Workout.MaxMinutes)
	}
	if c.Stats.RecordCapacity < 1 {
		return fmt.Errorf("config: stats.record_capacity %d must be at least 1", c.Stats.RecordCapacity)
	}
	return nil
}

// MetronomeSettings converts to the validated metronome configuration
func (c Config) MetronomeSettings() (metronome.Config, error) {
	sound, err := audio.ParseSoundProfile(c.Metronome.DefaultSound)
	if err != nil {
		return metronome.Config{}, fmt.Errorf("config: metronome.default_sound: %w", err)
	}
	mc := metronome.Config{
		MinBPM:               c.Metronome.MinBPM,
		MaxBPM:               c.Metronome.MaxBPM,
		DefaultBPM:           c.Metronome.DefaultBPM,
		DefaultVolume:        c.Metronome.DefaultVolume,
		DefaultSound:         sound,
		PreviewOnSoundChange: c.Metronome.PreviewOnSoundChange,
	}
	if err := mc.Validate(); err != nil {
		return metronome.Config{}, fmt.Errorf("config: %w", err)
	}
	return mc, nil
}
