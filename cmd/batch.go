package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/analyzer"
	"github.com/kolektra/callqa/internal/model"
)

var batchNoSave bool

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Analyze every .txt transcript in a directory",
	Long:  "Reads all .txt files in the directory, analyzes them (via the Batch API for larger sets), and stores the results.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := loadTranscriptDir(args[0])
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return eris.Errorf("no .txt transcripts found in %s", args[0])
		}

		e, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer e.Close()

		results := e.Analyzer.AnalyzeBatch(ctx, items, cfg.Batch)

		type batchSummary struct {
			ID    string  `json:"id"`
			Saved string  `json:"saved_id,omitempty"`
			Score float64 `json:"total_score,omitempty"`
			Error string  `json:"error,omitempty"`
		}

		var failed int
		summaries := make([]batchSummary, 0, len(results))
		for _, r := range results {
			s := batchSummary{ID: r.ID}
			if r.Err != nil {
				failed++
				s.Error = r.Err.Error()
				summaries = append(summaries, s)
				continue
			}

			s.Score = r.Analysis.Score.TotalScore
			if !batchNoSave {
				saved, err := e.Store.SaveAnalysis(ctx, model.AnalysisRecord{
					Transcript: r.Analysis.Transcript,
					Call:       r.Analysis.Call,
					Score:      r.Analysis.Score,
					Usage:      r.Analysis.Usage,
				})
				if err != nil {
					failed++
					s.Error = err.Error()
					summaries = append(summaries, s)
					continue
				}
				s.Saved = saved.ID
			}
			summaries = append(summaries, s)
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(results)),
			zap.Int("failed", failed),
		)
		return printJSON(summaries)
	},
}

// loadTranscriptDir reads every .txt file in dir. The item ID is the
// file name without extension.
func loadTranscriptDir(dir string) ([]analyzer.BatchItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}

	var items []analyzer.BatchItem
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "read transcript %s", entry.Name())
		}
		items = append(items, analyzer.BatchItem{
			ID:   strings.TrimSuffix(entry.Name(), ".txt"),
			Text: string(data),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func init() {
	batchCmd.Flags().BoolVar(&batchNoSave, "no-save", false, "analyze without persisting results")
	rootCmd.AddCommand(batchCmd)
}
