package stress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"voice-stress/pkg/models"
)

func TestTextScorer_Score(t *testing.T) {
	s := NewTextScorer(nil)

	tests := []struct {
		name     string
		text     string
		level    float64
		category models.StressCategory
	}{
		{"no terms", "I feel fine", 0, models.VeryLow},
		{"empty", "", 0, models.VeryLow},
		{"two terms", "I am anxious and panic", 40, models.Moderate},
		{"repeats count once", "stress stress stress", 20, models.Low},
		{"case insensitive", "ANXIOUS", 20, models.Low},
		{"substring match", "I was stressed out", 20, models.Low},
		{"three terms", "nervous, tense and anxious", 60, models.High},
		{"four terms", "nervous tense anxious panic", 80, models.VeryHigh},
		{"all terms", "Anxious, nervous, stressed, panicking and tense.", 100, models.VeryHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Score(tt.text)
			assert.Equal(t, tt.level, res.StressLevel)
			assert.Equal(t, tt.category, res.Category)
			assert.Len(t, res.Matches, int(tt.level)/20)
		})
	}
}

func TestTextScorer_AddingTermsNeverLowersScore(t *testing.T) {
	s := NewTextScorer(nil)
	text := "today"
	prev := s.Score(text).StressLevel
	for _, w := range append(DefaultLexicon, DefaultLexicon...) {
		text += " " + w
		level := s.Score(text).StressLevel
		assert.GreaterOrEqual(t, level, prev)
		assert.LessOrEqual(t, level, 100.0)
		prev = level
	}
	assert.Equal(t, 100.0, prev)
}

func TestNewTextScorer_CustomLexicon(t *testing.T) {
	s := NewTextScorer([]string{" Overwhelmed ", "overwhelmed", "", "burnout"})

	res := s.Score("Totally OVERWHELMED by burnout")
	assert.Equal(t, 40.0, res.StressLevel)
	assert.ElementsMatch(t, []string{"overwhelmed", "burnout"}, res.Matches)

	assert.Zero(t, s.Score("anxious").StressLevel)
}

func TestTextScorer_CapsAt100(t *testing.T) {
	words := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"}
	s := NewTextScorer(words)
	res := s.Score(strings.Join(words, " "))
	assert.Equal(t, 100.0, res.StressLevel)
	assert.Len(t, res.Matches, 7)
}
