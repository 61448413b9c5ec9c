package main

import (
	"github.com/spf13/cobra"

	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/store"
)

var (
	listScenario string
	listLimit    int
	listOffset   int
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect stored analyses",
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		filter := store.Filter{Limit: listLimit, Offset: listOffset}
		if listScenario != "" {
			scenario, err := model.ParseScenarioType(listScenario)
			if err != nil {
				return err
			}
			filter.Scenario = scenario
		}

		recs, err := e.Store.ListAnalyses(ctx, filter)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

var analysesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one analysis with its critical issues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		rec, err := e.Store.GetAnalysis(ctx, args[0])
		if err != nil {
			return err
		}
		issues, err := e.Store.ListCriticalIssues(ctx, args[0])
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"analysis":        rec,
			"critical_issues": issues,
		})
	},
}

var analysesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate stats over stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "store")
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Store.Stats(ctx, cfg.Scoring.MinPassingScore)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	analysesListCmd.Flags().StringVar(&listScenario, "scenario", "", "filter by scenario type")
	analysesListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum analyses to list")
	analysesListCmd.Flags().IntVar(&listOffset, "offset", 0, "offset into the result set")

	analysesCmd.AddCommand(analysesListCmd, analysesGetCmd, analysesStatsCmd)
	rootCmd.AddCommand(analysesCmd)
}
