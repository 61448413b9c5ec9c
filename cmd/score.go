package main

import (
	"github.com/spf13/cobra"

	"github.com/kolektra/callqa/internal/model"
)

var scoreScenario string

var scoreCmd = &cobra.Command{
	Use:   "score <transcript-file>",
	Short: "Score a transcript against the QA rubric for a known scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scenario, err := model.ParseScenarioType(scoreScenario)
		if err != nil {
			return err
		}

		text, err := readTranscript(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer e.Close()

		qs, usage, err := e.Analyzer.ScoreCall(ctx, text, scenario)
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"score": qs,
			"usage": usage,
		})
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreScenario, "scenario", "", "call scenario: PTP, REFUSE_TO_PAY, TPC, or UNKNOWN (required)")
	_ = scoreCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(scoreCmd)
}
