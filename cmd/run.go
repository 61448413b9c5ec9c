package main

import (
	"go.uber.org/zap"

	"github.com/spf13/cobra"

	"github.com/kolektra/callqa/internal/model"
)

var runNoSave bool

var runCmd = &cobra.Command{
	Use:   "run <transcript-file>",
	Short: "Run the full pipeline on one transcript: classify, score, store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readTranscript(args[0])
		if err != nil {
			return err
		}

		e, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer e.Close()

		an, err := e.Analyzer.Analyze(ctx, text)
		if err != nil {
			return err
		}

		rec := model.AnalysisRecord{
			Transcript: an.Transcript,
			Call:       an.Call,
			Score:      an.Score,
			Usage:      an.Usage,
		}

		if runNoSave {
			return printJSON(rec)
		}

		saved, err := e.Store.SaveAnalysis(ctx, rec)
		if err != nil {
			return err
		}

		zap.L().Info("analysis saved",
			zap.String("id", saved.ID),
			zap.String("scenario", string(saved.ScenarioType)),
			zap.Float64("total_score", saved.TotalScore),
		)
		return printJSON(saved)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "print the result without persisting it")
	rootCmd.AddCommand(runCmd)
}
