package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/report"
	"github.com/kolektra/callqa/internal/store"
)

var (
	exportOut      string
	exportScenario string
	exportLimit    int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored analyses to an XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		filter := store.Filter{Limit: exportLimit}
		if exportScenario != "" {
			scenario, err := model.ParseScenarioType(exportScenario)
			if err != nil {
				return err
			}
			filter.Scenario = scenario
		}

		recs, err := e.Store.ListAnalyses(ctx, filter)
		if err != nil {
			return err
		}
		stats, err := e.Store.Stats(ctx, cfg.Scoring.MinPassingScore)
		if err != nil {
			return err
		}

		if err := report.WriteXLSX(exportOut, recs, stats); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("analyses", len(recs)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "callqa-report.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportScenario, "scenario", "", "filter by scenario type")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum analyses to export")
	rootCmd.AddCommand(exportCmd)
}
