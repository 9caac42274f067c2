package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashwinyue/next-eval/internal/logger"
	"github.com/ashwinyue/next-eval/internal/model"
	"github.com/ashwinyue/next-eval/internal/service/evaluation"
	"github.com/ashwinyue/next-eval/internal/service/ingest"
)

// OfflineReport evaluate 命令的输出
type OfflineReport struct {
	Labels        string                  `json:"labels" yaml:"labels"`
	Predictions   string                  `json:"predictions" yaml:"predictions"`
	ColumnTypes   model.ColumnTypeMap     `json:"column_types" yaml:"column_types"`
	GoldenSetSize int                     `json:"golden_set_size" yaml:"golden_set_size"`
	TestSetSize   int                     `json:"test_set_size" yaml:"test_set_size"`
	GoldenSet     evaluation.SubsetReport `json:"golden_set" yaml:"golden_set"`
	TestSet       evaluation.SubsetReport `json:"test_set" yaml:"test_set"`
	Total         evaluation.SubsetReport `json:"total" yaml:"total"`
}

var evaluateFlags struct {
	labels      string
	predictions string
	seed        uint64
	format      string
	repair      bool
}

func newEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a predictions file against a labels CSV without the server",
		RunE:  runEvaluate,
	}

	f := cmd.Flags()
	f.StringVar(&evaluateFlags.labels, "labels", "", "Labels CSV with a document_id column (required)")
	f.StringVar(&evaluateFlags.predictions, "predictions", "", "Predictions JSON array (required)")
	f.Uint64Var(&evaluateFlags.seed, "seed", 0, "Partition seed, 0 for a random split")
	f.StringVar(&evaluateFlags.format, "format", "json", "Output format: json, yaml")
	f.BoolVar(&evaluateFlags.repair, "repair", false, "Try to repair malformed prediction JSON")

	_ = cmd.MarkFlagRequired("labels")
	_ = cmd.MarkFlagRequired("predictions")
	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(evaluateFlags.format); err != nil {
		return err
	}
	log := logger.WithComponent("evaluate")

	table, err := readTableFile(evaluateFlags.labels)
	if err != nil {
		return err
	}

	var rng evaluation.Shuffler
	if evaluateFlags.seed != 0 {
		rng = evaluation.NewSeededShuffler(evaluateFlags.seed)
	}
	split, err := evaluation.Partition(table, rng)
	if err != nil {
		return fmt.Errorf("partition %s: %w", evaluateFlags.labels, err)
	}
	types := evaluation.DetectColumnTypes(table)
	coercer := evaluation.NewCoercer(types, evaluation.WithLogger(log))

	pf, err := os.Open(evaluateFlags.predictions)
	if err != nil {
		return fmt.Errorf("open predictions: %w", err)
	}
	defer pf.Close()
	raw, err := ingest.ReadPredictions(pf, ingest.WithRepair(evaluateFlags.repair), ingest.WithLogger(log))
	if err != nil {
		return fmt.Errorf("read %s: %w", evaluateFlags.predictions, err)
	}

	metrics, _ := evaluation.Evaluate(coercer.CoerceAll(table.Rows), coercer.CoerceAll(raw), split)

	return writeOutput(cmd.OutOrStdout(), evaluateFlags.format, OfflineReport{
		Labels:        evaluateFlags.labels,
		Predictions:   evaluateFlags.predictions,
		ColumnTypes:   types,
		GoldenSetSize: len(split.GoldenIDs),
		TestSetSize:   len(split.TestIDs),
		GoldenSet:     evaluation.NewSubsetReport(metrics.GoldenSet),
		TestSet:       evaluation.NewSubsetReport(metrics.TestSet),
		Total:         evaluation.NewSubsetReport(metrics.Total),
	})
}

func readTableFile(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	table, err := ingest.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return table, nil
}

func checkFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown format %q, want json or yaml", format)
}

func writeOutput(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
