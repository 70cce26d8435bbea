package questiongen

import (
	"regexp"
	"unicode/utf8"

	"github.com/abhisek/prepwise/internal/quiz"
)

// DefaultAdvancedVocabulary flags concepts that do not belong in a beginner
// question. Stems such as "concurren" match any word they start.
const DefaultAdvancedVocabulary = `(?i)\b(abstract|generics|reflection|metaprogramming|concurren\w*|parallelism|architecture|distributed|scalab\w*|microservices?|asynchronous|mutex|semaphores?|garbage\s*collect\w*)\b`

// HeuristicConfig holds the body-length bounds used to check that a
// question matches its requested difficulty. Lengths count characters
// (runes) of the question body.
type HeuristicConfig struct {
	// BeginnerMaxLen is the longest body accepted for beginner questions.
	BeginnerMaxLen int `mapstructure:"beginner_max_len"`

	// NormalMinLen and NormalMaxLen bound normal questions.
	NormalMinLen int `mapstructure:"normal_min_len"`
	NormalMaxLen int `mapstructure:"normal_max_len"`

	// AdvancedMinLen is the shortest advanced body that needs no advanced
	// vocabulary.
	AdvancedMinLen int `mapstructure:"advanced_min_len"`

	// AdvancedVocabulary is a regular expression over the body.
	AdvancedVocabulary string `mapstructure:"advanced_vocabulary"`
}

// DefaultHeuristic returns the standard thresholds.
func DefaultHeuristic() HeuristicConfig {
	return HeuristicConfig{
		BeginnerMaxLen:     800,
		NormalMinLen:       80,
		NormalMaxLen:       1500,
		AdvancedMinLen:     300,
		AdvancedVocabulary: DefaultAdvancedVocabulary,
	}
}

// Heuristic is a compiled HeuristicConfig.
type Heuristic struct {
	cfg   HeuristicConfig
	vocab *regexp.Regexp
}

// NewHeuristic compiles cfg.
func NewHeuristic(cfg HeuristicConfig) (*Heuristic, error) {
	if cfg.AdvancedVocabulary == "" {
		cfg.AdvancedVocabulary = DefaultAdvancedVocabulary
	}
	vocab, err := regexp.Compile(cfg.AdvancedVocabulary)
	if err != nil {
		return nil, err
	}
	return &Heuristic{cfg: cfg, vocab: vocab}, nil
}

// Matches reports whether body looks like a question of difficulty d.
// Unknown difficulties always match.
func (h *Heuristic) Matches(body string, d quiz.Difficulty) bool {
	n := utf8.RuneCountInString(body)
	switch d {
	case quiz.Beginner:
		return n <= h.cfg.BeginnerMaxLen && !h.vocab.MatchString(body)
	case quiz.Normal:
		return n >= h.cfg.NormalMinLen && n <= h.cfg.NormalMaxLen
	case quiz.Advanced:
		return n >= h.cfg.AdvancedMinLen || h.vocab.MatchString(body)
	}
	return true
}
