package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hybrid-rag/backend/pkg/logger"
)

// HallucinationHeavy marks answers where most sentences lack support.
const HallucinationHeavy = 0.5

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Query     string   `json:"query"`
	Contexts  []string `json:"contexts"`
	Answer    string   `json:"answer"`
	Reference *string  `json:"reference,omitempty"`
	Category  string   `json:"category,omitempty"`
}

type Report struct {
	TotalItems           int      `json:"total_items"`
	AvgPrecisionAtK      float64  `json:"avg_precision_at_k"`
	AvgRecallAtK         float64  `json:"avg_recall_at_k"`
	AvgFaithfulness      float64  `json:"avg_faithfulness"`
	AvgHallucinationRate float64  `json:"avg_hallucination_rate"`
	AvgAnswerRelevancy   float64  `json:"avg_answer_relevancy"`
	AvgWER               *float64 `json:"avg_wer,omitempty"`
	WERSamples           int      `json:"wer_samples"`
	HallucinationHeavy   int      `json:"hallucination_heavy"`
	Records              []Record `json:"records"`
}

// EvaluateDataset scores every item with at most workers evaluations in
// flight. Records keep the dataset order.
func (e *Evaluator) EvaluateDataset(ctx context.Context, dataset *Dataset, workers int) (*Report, error) {
	if dataset == nil {
		return nil, fmt.Errorf("dataset is nil")
	}
	if workers <= 0 {
		workers = 1
	}

	logger.Info("Running dataset evaluation",
		zap.Int("items", len(dataset.Items)),
		zap.Int("workers", workers),
	)

	records := make([]Record, len(dataset.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range dataset.Items {
		if gctx.Err() != nil {
			break
		}
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = e.Evaluate(item.Query, item.Contexts, item.Answer, item.Reference)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to evaluate dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to evaluate dataset: %w", err)
	}

	report := aggregate(records)

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalItems),
		zap.Float64("avg_faithfulness", report.AvgFaithfulness),
		zap.Int("hallucination_heavy", report.HallucinationHeavy),
	)

	return report, nil
}

func aggregate(records []Record) *Report {
	report := &Report{
		TotalItems: len(records),
		Records:    records,
	}
	if len(records) == 0 {
		return report
	}

	var totalWER float64
	for _, r := range records {
		report.AvgPrecisionAtK += r.PrecisionAtK
		report.AvgRecallAtK += r.RecallAtK
		report.AvgFaithfulness += r.Faithfulness
		report.AvgHallucinationRate += r.HallucinationRate
		report.AvgAnswerRelevancy += r.AnswerRelevancy
		if r.HallucinationRate > HallucinationHeavy {
			report.HallucinationHeavy++
		}
		if r.WER != nil {
			totalWER += *r.WER
			report.WERSamples++
		}
	}

	n := float64(len(records))
	report.AvgPrecisionAtK /= n
	report.AvgRecallAtK /= n
	report.AvgFaithfulness /= n
	report.AvgHallucinationRate /= n
	report.AvgAnswerRelevancy /= n
	if report.WERSamples > 0 {
		avg := totalWER / float64(report.WERSamples)
		report.AvgWER = &avg
	}
	return report
}

func LoadDatasetFromJSON(data []byte) (*Dataset, error) {
	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	return &dataset, nil
}

func GenerateReport(report *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
Evaluation Report
=================

Total Items: %d

Retrieval:
- Precision@k: %.3f
- Recall@k: %.3f

Generation:
- Faithfulness: %.3f
- Hallucination Rate: %.3f
- Answer Relevancy: %.3f
- Hallucination-heavy answers: %d (%.1f%%)
`,
		report.TotalItems,
		report.AvgPrecisionAtK,
		report.AvgRecallAtK,
		report.AvgFaithfulness,
		report.AvgHallucinationRate,
		report.AvgAnswerRelevancy,
		report.HallucinationHeavy, percentage(report.HallucinationHeavy, report.TotalItems),
	)

	if report.AvgWER != nil {
		fmt.Fprintf(&b, "- Word Error Rate: %.3f (%d items with reference)\n", *report.AvgWER, report.WERSamples)
	} else {
		b.WriteString("- Word Error Rate: n/a (no references)\n")
	}
	return b.String()
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
