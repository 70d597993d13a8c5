package evaluation

import (
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/pkg/logger"
)

// Record is the quality assessment of one answer. HallucinationRate is
// always 1 - Faithfulness.
type Record struct {
	K                  int      `json:"k"`
	PrecisionAtK       float64  `json:"precision_at_k"`
	RecallAtK          float64  `json:"recall_at_k"`
	Faithfulness       float64  `json:"faithfulness"`
	HallucinationRate  float64  `json:"hallucination_rate"`
	AnswerRelevancy    float64  `json:"answer_relevancy"`
	WER                *float64 `json:"wer,omitempty"`
	SentenceCount      int      `json:"sentence_count"`
	SupportedSentences int      `json:"supported_sentences"`
}

// Evaluator computes reference-free answer quality metrics. It holds only
// its immutable config and is safe for concurrent use.
type Evaluator struct {
	cfg     Config
	segment Segmenter
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		cfg:     cfg,
		segment: segmenterFor(cfg.Segmenter),
	}, nil
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

// Evaluate scores answer against the retrieved contexts and, when given, a
// reference answer. It never fails; empty inputs yield zero metrics.
func (e *Evaluator) Evaluate(query string, contexts []string, answer string, reference *string) Record {
	faithfulness, supported, total := Faithfulness(e.segment(answer), contexts, e.cfg.SupportThreshold)

	record := Record{
		K:                  len(contexts),
		PrecisionAtK:       PrecisionAtK(contexts, answer, e.cfg.RelevanceThreshold),
		RecallAtK:          RecallAtK(contexts, answer, e.cfg.NGramSize),
		Faithfulness:       faithfulness,
		HallucinationRate:  1.0 - faithfulness,
		AnswerRelevancy:    AnswerRelevancy(query, answer, e.cfg),
		SentenceCount:      total,
		SupportedSentences: supported,
	}

	if reference != nil {
		if wer, ok := WordErrorRate(answer, *reference); ok {
			record.WER = &wer
		}
	}

	logger.Debug("Answer evaluated",
		zap.Int("k", record.K),
		zap.Float64("precision_at_k", record.PrecisionAtK),
		zap.Float64("recall_at_k", record.RecallAtK),
		zap.Float64("faithfulness", record.Faithfulness),
		zap.Float64("answer_relevancy", record.AnswerRelevancy),
	)

	return record
}
