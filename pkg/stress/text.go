package stress

import (
	"strings"

	"voice-stress/pkg/models"
)

// DefaultLexicon lists the stress-indicating terms searched for in text.
var DefaultLexicon = []string{"anxious", "nervous", "stress", "panic", "tense"}

const pointsPerTerm = 20

// TextScorer counts distinct lexicon terms appearing anywhere in the input,
// case-insensitively. Repeats of one term count once and substrings match
// ("stressed" contains "stress").
type TextScorer struct {
	lexicon []string
}

func NewTextScorer(lexicon []string) *TextScorer {
	if len(lexicon) == 0 {
		lexicon = DefaultLexicon
	}
	lower := make([]string, 0, len(lexicon))
	seen := make(map[string]bool, len(lexicon))
	for _, w := range lexicon {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		lower = append(lower, w)
	}
	return &TextScorer{lexicon: lower}
}

func (s *TextScorer) Score(text string) *models.TextStressResult {
	lt := strings.ToLower(text)
	var matches []string
	for _, w := range s.lexicon {
		if strings.Contains(lt, w) {
			matches = append(matches, w)
		}
	}

	level := float64(len(matches) * pointsPerTerm)
	if level > 100 {
		level = 100
	}
	return &models.TextStressResult{
		StressLevel: level,
		Category:    models.CategoryFor(level),
		Matches:     matches,
	}
}
