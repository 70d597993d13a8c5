package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hybrid-rag/backend/internal/evaluation"
	"github.com/hybrid-rag/backend/internal/storage/sqlite"
	"github.com/hybrid-rag/backend/pkg/config"
)

type evaluateOptions struct {
	datasetPath string
	workers     int
	asJSON      bool
	record      bool
}

func evaluateCMD(loadConfig func() (*config.Config, error)) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a dataset of answers and print an aggregate report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "dataset JSON file")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent evaluations (0 uses evaluation.workers)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&opts.record, "record", false, "store the averages in the metrics store")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func runEvaluate(ctx context.Context, out io.Writer, cfg *config.Config, opts evaluateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(opts.datasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	dataset, err := evaluation.LoadDatasetFromJSON(data)
	if err != nil {
		return err
	}

	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation.ToEvaluationConfig())
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Evaluation.Workers
	}

	report, err := evaluator.EvaluateDataset(ctx, dataset, workers)
	if err != nil {
		return fmt.Errorf("failed to evaluate dataset: %w", err)
	}

	if opts.record {
		if err := recordReport(cfg.SQLite.Path, filepath.Base(opts.datasetPath), report); err != nil {
			return err
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = io.WriteString(out, evaluation.GenerateReport(report))
	return err
}

func recordReport(dbPath, datasetName string, report *evaluation.Report) error {
	store, err := sqlite.NewClient(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		return err
	}

	tags := map[string]string{"dataset": datasetName}
	values := map[string]float64{
		"eval_avg_precision_at_k":     report.AvgPrecisionAtK,
		"eval_avg_recall_at_k":        report.AvgRecallAtK,
		"eval_avg_faithfulness":       report.AvgFaithfulness,
		"eval_avg_hallucination_rate": report.AvgHallucinationRate,
		"eval_avg_answer_relevancy":   report.AvgAnswerRelevancy,
	}
	if report.AvgWER != nil {
		values["eval_avg_wer"] = *report.AvgWER
	}

	for name, value := range values {
		if err := store.RecordMetric(name, value, tags); err != nil {
			return err
		}
	}
	return nil
}
