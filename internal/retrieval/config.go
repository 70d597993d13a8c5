package retrieval

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidConfig    = errors.New("invalid retrieval config")
	ErrDeadlineExceeded = errors.New("retrieval deadline exceeded")
)

type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid retrieval config: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Config carries every retrieval tunable. Nothing in this package reads
// process-wide defaults; callers pass a Config into each call.
type Config struct {
	TopK                 int     `json:"top_k"`
	SemanticWeight       float64 `json:"semantic_weight"`
	LexicalWeight        float64 `json:"lexical_weight"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
	DiversityCap         int     `json:"diversity_cap"`
	RerankEnabled        bool    `json:"rerank_enabled"`
	CitationBoostEnabled bool    `json:"citation_boost_enabled"`

	// CandidatePool is the k requested from the semantic index; 0 means 4*TopK.
	CandidatePool    int     `json:"candidate_pool,omitempty"`
	CitationBoost    float64 `json:"citation_boost,omitempty"`
	ExcludeStopwords bool    `json:"exclude_stopwords"`
	// BestEffort returns already computed stages instead of failing when the
	// context deadline passes mid-call.
	BestEffort bool `json:"best_effort"`
}

func DefaultConfig() Config {
	return Config{
		TopK:                 5,
		SemanticWeight:       0.7,
		LexicalWeight:        0.3,
		SimilarityThreshold:  0.1,
		DiversityCap:         2,
		RerankEnabled:        false,
		CitationBoostEnabled: true,
		CitationBoost:        0.05,
		ExcludeStopwords:     true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TopK <= 0:
		return &ConfigError{Field: "top_k", Reason: "must be positive"}
	case c.DiversityCap <= 0:
		return &ConfigError{Field: "diversity_cap", Reason: "must be positive"}
	case invalidWeight(c.SemanticWeight):
		return &ConfigError{Field: "semantic_weight", Reason: "must be a non-negative number"}
	case invalidWeight(c.LexicalWeight):
		return &ConfigError{Field: "lexical_weight", Reason: "must be a non-negative number"}
	case c.SemanticWeight == 0 && c.LexicalWeight == 0:
		return &ConfigError{Field: "semantic_weight", Reason: "and lexical_weight cannot both be zero"}
	case invalidWeight(c.SimilarityThreshold):
		return &ConfigError{Field: "similarity_threshold", Reason: "must be a non-negative number"}
	case c.CandidatePool < 0:
		return &ConfigError{Field: "candidate_pool", Reason: "must not be negative"}
	case invalidWeight(c.CitationBoost):
		return &ConfigError{Field: "citation_boost", Reason: "must be a non-negative number"}
	}
	return nil
}

func (c Config) candidatePool() int {
	if c.CandidatePool > 0 {
		return c.CandidatePool
	}
	return 4 * c.TopK
}

func (c Config) rankParams() RankParams {
	return RankParams{
		SemanticWeight:      c.SemanticWeight,
		LexicalWeight:       c.LexicalWeight,
		SimilarityThreshold: c.SimilarityThreshold,
		DiversityCap:        c.DiversityCap,
		TopK:                c.TopK,
	}
}

func invalidWeight(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}
