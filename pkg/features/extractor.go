// Package features derives pitch, energy, spectral and rhythm descriptors
// from a decoded waveform.
package features

import (
	"context"
	"fmt"

	"voice-stress/pkg/models"
)

// Config controls frame geometry and tracker limits. Zero fields take the
// value from DefaultConfig.
type Config struct {
	FrameLength int
	HopLength   int

	// Pitch search range in Hz and the YIN dip threshold below which a
	// frame counts as voiced.
	FMin             float64
	FMax             float64
	VoicingThreshold float64

	MelBands  int
	MFCCCount int

	// Tempo search range and the centre of the log-normal tempo prior, BPM.
	MinTempo float64
	MaxTempo float64
	StartBPM float64
}

func DefaultConfig() Config {
	return Config{
		FrameLength:      2048,
		HopLength:        512,
		FMin:             75,
		FMax:             600,
		VoicingThreshold: 0.1,
		MelBands:         128,
		MFCCCount:        13,
		MinTempo:         30,
		MaxTempo:         320,
		StartBPM:         120,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameLength <= 0 {
		c.FrameLength = d.FrameLength
	}
	if c.HopLength <= 0 {
		c.HopLength = d.HopLength
	}
	if c.FMin <= 0 {
		c.FMin = d.FMin
	}
	if c.FMax <= 0 {
		c.FMax = d.FMax
	}
	if c.VoicingThreshold <= 0 {
		c.VoicingThreshold = d.VoicingThreshold
	}
	if c.MelBands <= 0 {
		c.MelBands = d.MelBands
	}
	if c.MFCCCount <= 0 {
		c.MFCCCount = d.MFCCCount
	}
	if c.MinTempo <= 0 {
		c.MinTempo = d.MinTempo
	}
	if c.MaxTempo <= 0 {
		c.MaxTempo = d.MaxTempo
	}
	if c.StartBPM <= 0 {
		c.StartBPM = d.StartBPM
	}
	return c
}

// Extractor is stateless apart from its configuration and may be shared
// between goroutines.
type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg.withDefaults()}
}

func (e *Extractor) Config() Config { return e.cfg }

// Extract computes the full FeatureSet. An empty waveform or one without a
// single voiced frame is not an error here: the returned tracks are simply
// empty and the scorer decides what that means. Errors are returned only
// for an invalid sample rate or when ctx is done.
func (e *Extractor) Extract(ctx context.Context, w *models.Waveform) (*models.FeatureSet, error) {
	if w == nil {
		return nil, fmt.Errorf("nil waveform")
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", w.SampleRate)
	}

	fs := &models.FeatureSet{}

	pitch, err := e.trackPitch(ctx, w.Samples, w.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("pitch tracking: %w", err)
	}
	fs.PitchTrack = pitch.voiced
	fs.VoicedFrames = len(pitch.voiced)
	fs.TotalFrames = pitch.frames

	fs.EnergyTrack = rms(w.Samples, e.cfg.FrameLength, e.cfg.HopLength)

	melDB, err := e.melSpectrogramDB(ctx, w.Samples, w.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("mel spectrogram: %w", err)
	}
	fs.MFCC = mfcc(melDB, e.cfg.MFCCCount)

	fs.OnsetEnvelope = onsetStrength(melDB)
	fs.Tempo = e.estimateTempo(fs.OnsetEnvelope, w.SampleRate)
	fs.SpeakingRate = fs.Tempo / 60

	return fs, nil
}
