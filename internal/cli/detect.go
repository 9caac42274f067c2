package cli

import (
	"github.com/spf13/cobra"

	"github.com/ashwinyue/next-eval/internal/service/evaluation"
)

var detectFlags struct {
	labels string
	format string
}

func newDetectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Print the column types detected in a labels CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(detectFlags.format); err != nil {
				return err
			}
			table, err := readTableFile(detectFlags.labels)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), detectFlags.format, evaluation.DetectColumnTypes(table))
		},
	}

	f := cmd.Flags()
	f.StringVar(&detectFlags.labels, "labels", "", "Labels CSV (required)")
	f.StringVar(&detectFlags.format, "format", "json", "Output format: json, yaml")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}
