package models

import (
	"encoding/json"
	"fmt"
)

// Waveform is a decoded mono signal. It is never mutated after decoding.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration in seconds.
func (w *Waveform) Duration() float64 {
	if w == nil || w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// FeatureSet holds the acoustic descriptors of one waveform.
//
// PitchTrack contains voiced frames only. MFCC is [13][frames] and is not
// consumed by the scorer.
type FeatureSet struct {
	PitchTrack    []float64
	EnergyTrack   []float64
	MFCC          [][]float64
	OnsetEnvelope []float64
	Tempo         float64
	SpeakingRate  float64
	VoicedFrames  int
	TotalFrames   int
}

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// StressCategory is an ordered band of the 0..100 stress scale.
type StressCategory int

const (
	VeryLow StressCategory = iota
	Low
	Moderate
	High
	VeryHigh
)

var categoryLabels = [...]string{
	"Very Low Stress",
	"Low Stress",
	"Moderate Stress",
	"High Stress",
	"Very High Stress",
}

func (c StressCategory) String() string {
	if c < VeryLow || c > VeryHigh {
		return fmt.Sprintf("StressCategory(%d)", int(c))
	}
	return categoryLabels[c]
}

func (c StressCategory) MarshalJSON() ([]byte, error) {
	if c < VeryLow || c > VeryHigh {
		return nil, fmt.Errorf("invalid stress category %d", int(c))
	}
	return json.Marshal(categoryLabels[c])
}

func (c *StressCategory) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	cat, ok := ParseCategory(s)
	if !ok {
		return fmt.Errorf("unknown stress category %q", s)
	}
	*c = cat
	return nil
}

// ParseCategory is the inverse of String.
func ParseCategory(label string) (StressCategory, bool) {
	for i, l := range categoryLabels {
		if l == label {
			return StressCategory(i), true
		}
	}
	return 0, false
}

// CategoryFor maps a 0..100 level onto its band; 100 falls in VeryHigh.
func CategoryFor(level float64) StressCategory {
	idx := int(level / 20)
	if idx > int(VeryHigh) {
		idx = int(VeryHigh)
	}
	if idx < 0 {
		idx = 0
	}
	return StressCategory(idx)
}

type VoiceStressResult struct {
	StressLevel float64           `json:"stress_level"`
	Category    StressCategory    `json:"category"`
	Gender      Gender            `json:"gender"`
	Diagnostics *VoiceDiagnostics `json:"diagnostics,omitempty"`
}

type TextStressResult struct {
	StressLevel float64        `json:"stress_level"`
	Category    StressCategory `json:"category"`
	Matches     []string       `json:"-"`
}

// VoiceDiagnostics exposes intermediate values of a voice score. None of
// these feed back into the stress level.
type VoiceDiagnostics struct {
	MeanF0       float64 `json:"mean_f0"`
	StdF0        float64 `json:"std_f0"`
	MeanEnergy   float64 `json:"mean_energy"`
	StdEnergy    float64 `json:"std_energy"`
	SpeakingRate float64 `json:"speaking_rate"`
	Tempo        float64 `json:"tempo"`
	VoicedFrames int     `json:"voiced_frames"`
	TotalFrames  int     `json:"total_frames"`
	ZPitch       float64 `json:"z_pitch"`
	ZEnergy      float64 `json:"z_energy"`
	ZRate        float64 `json:"z_rate"`
	RawScore     float64 `json:"raw_score"`
}

// StressResponse is the flat wire shape shared by voice and text results.
type StressResponse struct {
	StressLevel float64           `json:"stress_level"`
	Category    string            `json:"category"`
	Gender      string            `json:"gender,omitempty"`
	Diagnostics *VoiceDiagnostics `json:"diagnostics,omitempty"`
}

func (r *VoiceStressResult) Response() *StressResponse {
	return &StressResponse{
		StressLevel: r.StressLevel,
		Category:    r.Category.String(),
		Gender:      string(r.Gender),
		Diagnostics: r.Diagnostics,
	}
}

func (r *TextStressResult) Response() *StressResponse {
	return &StressResponse{
		StressLevel: r.StressLevel,
		Category:    r.Category.String(),
	}
}
