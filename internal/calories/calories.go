// Package calories estimates energy burned during a slow-running session.
package calories

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultMET      = 4.0
	DefaultWeightKg = 60.0
)

// Estimator converts elapsed running time into kilocalories
type Estimator interface {
	Calories(elapsedSeconds int) float64
}

// FlatMET is the fallback estimator: MET × weight × hours
type FlatMET struct {
	MET      float64
	WeightKg float64
}

// Default returns the estimator used when no user profile is known
func Default() FlatMET {
	return FlatMET{MET: DefaultMET, WeightKg: DefaultWeightKg}
}

func (f FlatMET) Calories(elapsedSeconds int) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return f.MET * f.WeightKg * float64(elapsedSeconds) / 3600
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Intensity string

const (
	IntensityLight    Intensity = "light"
	IntensityModerate Intensity = "moderate"
	IntensityVigorous Intensity = "vigorous"
)

type Terrain string

const (
	TerrainFlat          Terrain = "flat"
	TerrainSlightIncline Terrain = "slight-incline"
	TerrainModerate      Terrain = "moderate-incline"
	TerrainSteepIncline  Terrain = "steep-incline"
)

type Temperature string

const (
	TemperatureMild Temperature = "mild"
	TemperatureCold Temperature = "cold"
	TemperatureHot  Temperature = "hot"
)

// Profile is everything the detailed estimate needs
type Profile struct {
	WeightKg    float64
	HeightCm    float64
	Age         int
	Gender      Gender
	Intensity   Intensity
	Terrain     Terrain
	Temperature Temperature
}

func (p Profile) Validate() error {
	if p.WeightKg <= 0 || p.WeightKg > 400 {
		return fmt.Errorf("calories: weight %.1f kg out of range", p.WeightKg)
	}
	if p.HeightCm <= 0 || p.HeightCm > 260 {
		return fmt.Errorf("calories: height %.1f cm out of range", p.HeightCm)
	}
	if p.Age <= 0 || p.Age > 120 {
		return fmt.Errorf("calories: age %d out of range", p.Age)
	}
	switch Gender(strings.ToLower(string(p.Gender))) {
	case GenderMale, GenderFemale:
	default:
		return fmt.Errorf("calories: unknown gender %q", p.Gender)
	}
	return nil
}

// BMR is the Harris-Benedict basal metabolic rate in kcal/day
func (p Profile) BMR() float64 {
	if Gender(strings.ToLower(string(p.Gender))) == GenderFemale {
		return 447.593 + 9.247*p.WeightKg + 3.098*p.HeightCm - 4.330*float64(p.Age)
	}
	return 88.362 + 13.397*p.WeightKg + 4.799*p.HeightCm - 5.677*float64(p.Age)
}

func baseMETs(i Intensity) float64 {
	switch i {
	case IntensityLight:
		return 3.5
	case IntensityModerate:
		return 4.5
	case IntensityVigorous:
		return 5.5
	default:
		return DefaultMET
	}
}

func terrainFactor(t Terrain) float64 {
	switch t {
	case TerrainSlightIncline:
		return 1.1
	case TerrainModerate:
		return 1.2
	case TerrainSteepIncline:
		return 1.4
	default:
		return 1
	}
}

func temperatureFactor(t Temperature) float64 {
	switch t {
	case TemperatureCold:
		return 1.05
	case TemperatureHot:
		return 1.1
	default:
		return 1
	}
}

// AdjustedMETs applies the terrain and temperature multipliers to the intensity base
func (p Profile) AdjustedMETs() float64 {
	return baseMETs(p.Intensity) * terrainFactor(p.Terrain) * temperatureFactor(p.Temperature)
}

// ProfileEstimator uses the full user profile
type ProfileEstimator struct {
	Profile Profile
}

func (e ProfileEstimator) Calories(elapsedSeconds int) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return e.Profile.AdjustedMETs() * e.Profile.WeightKg * float64(elapsedSeconds) / 3600
}

// Breakdown splits a planned session's energy into its basal and exercise parts
type Breakdown struct {
	Total     float64
	BMR       float64
	Exercise  float64
	PerMinute float64
	METs      float64
}

func (e ProfileEstimator) Breakdown(minutes int) Breakdown {
	if minutes <= 0 {
		return Breakdown{METs: e.Profile.AdjustedMETs()}
	}
	total := e.Calories(minutes * 60)
	bmrPart := e.Profile.BMR() / 1440 * float64(minutes)
	return Breakdown{
		Total:     total,
		BMR:       bmrPart,
		Exercise:  total - bmrPart,
		PerMinute: math.Round(total/float64(minutes)*10) / 10,
		METs:      e.Profile.AdjustedMETs(),
	}
}

// ParseIntensity accepts the known names; empty means default
func ParseIntensity(s string) (Intensity, error) {
	switch v := Intensity(strings.ToLower(strings.TrimSpace(s))); v {
	case "", IntensityLight, IntensityModerate, IntensityVigorous:
		return v, nil
	default:
		return "", fmt.Errorf("calories: unknown intensity %q", s)
	}
}

func ParseTerrain(s string) (Terrain, error) {
	switch v := Terrain(strings.ToLower(strings.TrimSpace(s))); v {
	case "", TerrainFlat, TerrainSlightIncline, TerrainModerate, TerrainSteepIncline:
		return v, nil
	default:
		return "", fmt.Errorf("calories: unknown terrain %q", s)
	}
}

func ParseTemperature(s string) (Temperature, error) {
	switch v := Temperature(strings.ToLower(strings.TrimSpace(s))); v {
	case "", TemperatureMild, TemperatureCold, TemperatureHot:
		return v, nil
	default:
		return "", fmt.Errorf("calories: unknown temperature %q", s)
	}
}
