// Package stress turns acoustic features or free text into a 0..100 stress
// level with a category label.
package stress

import (
	"fmt"
	"math"

	"voice-stress/pkg/models"
)

type VoiceScorer struct {
	ref Reference
}

func NewVoiceScorer(ref Reference) (*VoiceScorer, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return &VoiceScorer{ref: ref}, nil
}

func (s *VoiceScorer) Reference() Reference { return s.ref }

// Score fuses pitch, speaking-rate and energy z-scores into a logistic
// stress level. It fails with ErrUndefinedFeature rather than return NaN
// when the pitch or energy track is empty.
func (s *VoiceScorer) Score(fs *models.FeatureSet) (*models.VoiceStressResult, error) {
	d, err := s.diagnose(fs)
	if err != nil {
		return nil, err
	}
	return s.result(d)
}

// ScoreWithDiagnostics is Score plus the intermediate statistics. The
// standard deviations are only computed here.
func (s *VoiceScorer) ScoreWithDiagnostics(fs *models.FeatureSet) (*models.VoiceStressResult, error) {
	d, err := s.diagnose(fs)
	if err != nil {
		return nil, err
	}
	res, err := s.result(d)
	if err != nil {
		return nil, err
	}
	d.StdF0 = std(fs.PitchTrack, d.MeanF0)
	d.StdEnergy = std(fs.EnergyTrack, d.MeanEnergy)
	res.Diagnostics = d
	return res, nil
}

func (s *VoiceScorer) result(d *models.VoiceDiagnostics) (*models.VoiceStressResult, error) {
	level := Squash(d.RawScore)
	if math.IsNaN(level) {
		return nil, &ComputationError{Op: "squash", Err: fmt.Errorf("raw score %v", d.RawScore)}
	}
	return &models.VoiceStressResult{
		StressLevel: level,
		Category:    models.CategoryFor(level),
		Gender:      s.Gender(d.MeanF0),
	}, nil
}

// Gender picks the pitch baseline. It is a coarse threshold, nothing more.
func (s *VoiceScorer) Gender(meanF0 float64) models.Gender {
	if meanF0 < s.ref.GenderThreshold {
		return models.Male
	}
	return models.Female
}

func (s *VoiceScorer) pitchMean(g models.Gender) float64 {
	if g == models.Male {
		return s.ref.MalePitchMean
	}
	return s.ref.FemalePitchMean
}

func (s *VoiceScorer) diagnose(fs *models.FeatureSet) (*models.VoiceDiagnostics, error) {
	if fs == nil {
		return nil, &ComputationError{Op: "score", Err: fmt.Errorf("nil feature set")}
	}
	if len(fs.PitchTrack) == 0 {
		return nil, fmt.Errorf("%w: no voiced frames in %d analysed", ErrUndefinedFeature, fs.TotalFrames)
	}
	if len(fs.EnergyTrack) == 0 {
		return nil, fmt.Errorf("%w: empty energy track", ErrUndefinedFeature)
	}

	meanF0 := mean(fs.PitchTrack)
	meanEnergy := mean(fs.EnergyTrack)
	for name, v := range map[string]float64{
		"mean pitch":    meanF0,
		"mean energy":   meanEnergy,
		"speaking rate": fs.SpeakingRate,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ComputationError{Op: "statistics", Err: fmt.Errorf("%s is %v", name, v)}
		}
	}

	g := s.Gender(meanF0)
	d := &models.VoiceDiagnostics{
		MeanF0:       meanF0,
		MeanEnergy:   meanEnergy,
		SpeakingRate: fs.SpeakingRate,
		Tempo:        fs.Tempo,
		VoicedFrames: fs.VoicedFrames,
		TotalFrames:  fs.TotalFrames,
		ZPitch:       (meanF0 - s.pitchMean(g)) / s.ref.PitchStd,
		ZEnergy:      (meanEnergy - s.ref.EnergyMean) / s.ref.EnergyStd,
		ZRate:        (fs.SpeakingRate - s.ref.RateMean) / s.ref.RateStd,
	}
	w := s.ref.Weights
	d.RawScore = w.Pitch*d.ZPitch + w.Rate*d.ZRate + w.Energy*d.ZEnergy
	return d, nil
}

// Squash maps a fused z-score onto (0, 100); 0 maps to exactly 50.
func Squash(raw float64) float64 {
	return 100 / (1 + math.Exp(-raw))
}

func mean(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// std is the population standard deviation.
func std(x []float64, m float64) float64 {
	var sum float64
	for _, v := range x {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(x)))
}
