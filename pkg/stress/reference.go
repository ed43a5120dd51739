package stress

import (
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// Reference holds the population statistics voice features are normalized
// against and the weights used to fuse the resulting z-scores.
type Reference struct {
	// GenderThreshold splits mean F0 into the male (below) and female
	// baselines.
	GenderThreshold float64 `yaml:"gender_threshold"`
	MalePitchMean   float64 `yaml:"male_pitch_mean"`
	FemalePitchMean float64 `yaml:"female_pitch_mean"`
	PitchStd        float64 `yaml:"pitch_std"`

	EnergyMean float64 `yaml:"energy_mean"`
	EnergyStd  float64 `yaml:"energy_std"`

	// Speaking rate in beats per second.
	RateMean float64 `yaml:"rate_mean"`
	RateStd  float64 `yaml:"rate_std"`

	Weights Weights `yaml:"weights"`
}

type Weights struct {
	Pitch  float64 `yaml:"pitch"`
	Rate   float64 `yaml:"rate"`
	Energy float64 `yaml:"energy"`
}

func DefaultReference() Reference {
	return Reference{
		GenderThreshold: 165,
		MalePitchMean:   110,
		FemalePitchMean: 220,
		PitchStd:        20,
		EnergyMean:      0.02,
		EnergyStd:       0.005,
		RateMean:        4.4,
		RateStd:         0.5,
		Weights: Weights{
			Pitch:  0.4,
			Rate:   0.4,
			Energy: 0.2,
		},
	}
}

func (r Reference) Validate() error {
	for name, v := range map[string]float64{
		"gender_threshold":  r.GenderThreshold,
		"male_pitch_mean":   r.MalePitchMean,
		"female_pitch_mean": r.FemalePitchMean,
		"energy_mean":       r.EnergyMean,
		"rate_mean":         r.RateMean,
		"weights.pitch":     r.Weights.Pitch,
		"weights.rate":      r.Weights.Rate,
		"weights.energy":    r.Weights.Energy,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("reference %s must be finite", name)
		}
	}
	for name, v := range map[string]float64{
		"pitch_std":  r.PitchStd,
		"energy_std": r.EnergyStd,
		"rate_std":   r.RateStd,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("reference %s must be positive, got %v", name, v)
		}
	}
	return nil
}

// LoadReference decodes YAML over DefaultReference, so a file only needs
// the fields it overrides.
func LoadReference(r io.Reader) (Reference, error) {
	ref := DefaultReference()
	if err := yaml.NewDecoder(r).Decode(&ref); err != nil && err != io.EOF {
		return Reference{}, fmt.Errorf("failed to decode reference: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}
