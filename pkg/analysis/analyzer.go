// Package analysis routes a request to the voice or text stress path.
package analysis

import (
	"context"
	"errors"
	"strings"

	"voice-stress/pkg/features"
	"voice-stress/pkg/models"
	"voice-stress/pkg/stress"
)

var (
	ErrNoInput        = errors.New("either a waveform or text input is required")
	ErrAmbiguousInput = errors.New("only one of waveform or text may be supplied")
)

type Input struct {
	Waveform *models.Waveform
	Text     string

	// Diagnostics attaches intermediate voice statistics to the result.
	Diagnostics bool
}

type Analyzer struct {
	extractor *features.Extractor
	voice     *stress.VoiceScorer
	text      *stress.TextScorer
}

func NewAnalyzer(extractor *features.Extractor, voice *stress.VoiceScorer, text *stress.TextScorer) *Analyzer {
	return &Analyzer{
		extractor: extractor,
		voice:     voice,
		text:      text,
	}
}

// NewDefault wires the default extractor, the given reference and the
// default lexicon.
func NewDefault(ref stress.Reference) (*Analyzer, error) {
	voice, err := stress.NewVoiceScorer(ref)
	if err != nil {
		return nil, err
	}
	return NewAnalyzer(features.NewExtractor(features.DefaultConfig()), voice, stress.NewTextScorer(nil)), nil
}

// Analyze dispatches on whichever input is present. Exactly one must be.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*models.StressResponse, error) {
	hasText := strings.TrimSpace(in.Text) != ""
	switch {
	case in.Waveform != nil && hasText:
		return nil, ErrAmbiguousInput
	case in.Waveform != nil:
		res, err := a.AnalyzeVoice(ctx, in.Waveform, in.Diagnostics)
		if err != nil {
			return nil, err
		}
		return res.Response(), nil
	case hasText:
		return a.AnalyzeText(in.Text).Response(), nil
	default:
		return nil, ErrNoInput
	}
}

func (a *Analyzer) AnalyzeVoice(ctx context.Context, w *models.Waveform, diagnostics bool) (*models.VoiceStressResult, error) {
	fs, err := a.extractor.Extract(ctx, w)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &stress.ComputationError{Op: "extract", Err: err}
	}
	if diagnostics {
		return a.voice.ScoreWithDiagnostics(fs)
	}
	return a.voice.Score(fs)
}

func (a *Analyzer) AnalyzeText(text string) *models.TextStressResult {
	return a.text.Score(text)
}
