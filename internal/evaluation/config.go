package evaluation

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidConfig = errors.New("invalid evaluation config")

const (
	SegmenterRule  = "rule"
	SegmenterProse = "prose"
)

// Config holds the evaluator tunables. The thresholds are empirical and
// exposed so they can be tuned per corpus.
type Config struct {
	// RelevanceThreshold is the overlap a context must exceed to count as
	// relevant for precision@k.
	RelevanceThreshold float64 `json:"relevance_threshold"`
	// SupportThreshold is the share of a sentence's keywords that must occur
	// in the contexts for the sentence to count as supported.
	SupportThreshold float64 `json:"support_threshold"`
	NGramSize        int     `json:"ngram_size"`
	LengthBandMin    int     `json:"length_band_min"`
	LengthBandMax    int     `json:"length_band_max"`
	KeywordWeight    float64 `json:"keyword_weight"`
	LengthBonus      float64 `json:"length_bonus"`
	Segmenter        string  `json:"segmenter"`
}

func DefaultConfig() Config {
	return Config{
		RelevanceThreshold: 0.20,
		SupportThreshold:   0.60,
		NGramSize:          3,
		LengthBandMin:      20,
		LengthBandMax:      300,
		KeywordWeight:      0.9,
		LengthBonus:        0.1,
		Segmenter:          SegmenterRule,
	}
}

func (c Config) Validate() error {
	switch {
	case !unitInterval(c.RelevanceThreshold):
		return fmt.Errorf("%w: relevance_threshold must be within [0,1]", ErrInvalidConfig)
	case !unitInterval(c.SupportThreshold):
		return fmt.Errorf("%w: support_threshold must be within [0,1]", ErrInvalidConfig)
	case c.NGramSize <= 0:
		return fmt.Errorf("%w: ngram_size must be positive", ErrInvalidConfig)
	case c.LengthBandMin < 0 || c.LengthBandMax < c.LengthBandMin:
		return fmt.Errorf("%w: length band [%d,%d] is empty", ErrInvalidConfig, c.LengthBandMin, c.LengthBandMax)
	case !unitInterval(c.KeywordWeight) || !unitInterval(c.LengthBonus):
		return fmt.Errorf("%w: keyword_weight and length_bonus must be within [0,1]", ErrInvalidConfig)
	case c.Segmenter != "" && c.Segmenter != SegmenterRule && c.Segmenter != SegmenterProse:
		return fmt.Errorf("%w: unknown segmenter %q", ErrInvalidConfig, c.Segmenter)
	}
	return nil
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
