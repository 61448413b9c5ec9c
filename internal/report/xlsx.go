// Package report renders stored analyses into spreadsheet reports for
// QA team review.
package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/model"
)

const (
	scoresSheet  = "Scores"
	summarySheet = "Summary"
)

var scoresHeader = []string{
	"ID", "Created At", "Scenario", "Agent", "Customer",
	"Total Score", "Opening", "Communication", "Negotiation",
	"Knockout", "Call Summary",
}

// WriteXLSX writes a two-sheet workbook: per-call scores and an
// aggregate summary.
func WriteXLSX(path string, recs []model.AnalysisRecord, stats *model.AnalysisStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return eris.Wrap(err, "report: rename sheet")
	}
	if err := writeScores(f, recs); err != nil {
		return err
	}
	if stats != nil {
		if _, err := f.NewSheet(summarySheet); err != nil {
			return eris.Wrap(err, "report: create summary sheet")
		}
		if err := writeSummary(f, stats); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}

	zap.L().Info("report written",
		zap.String("path", path),
		zap.Int("analyses", len(recs)),
	)
	return nil
}

func writeScores(f *excelize.File, recs []model.AnalysisRecord) error {
	for col, h := range scoresHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return eris.Wrap(err, "report: header cell")
		}
		if err := f.SetCellValue(scoresSheet, cell, h); err != nil {
			return eris.Wrap(err, "report: write header")
		}
	}

	for i, rec := range recs {
		values := scoreRow(rec)
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return eris.Wrap(err, "report: data cell")
			}
			if err := f.SetCellValue(scoresSheet, cell, v); err != nil {
				return eris.Wrapf(err, "report: write row %d", i+2)
			}
		}
	}
	return nil
}

func scoreRow(rec model.AnalysisRecord) []any {
	var agent, customer, summary string
	if rec.Call != nil {
		agent = rec.Call.BasicInfo.AgentName
		customer = rec.Call.BasicInfo.CustomerName
		summary = rec.Call.CallSummary
	}

	var opening, communication, negotiation float64
	knockout := "no"
	if rec.Score != nil {
		opening = rec.Score.ScoreBreakdown[model.BreakdownOpening]
		communication = rec.Score.ScoreBreakdown[model.BreakdownCommunication]
		negotiation = rec.Score.ScoreBreakdown[model.BreakdownNegotiation]
		if rec.Score.KnockoutViolations.Any() {
			knockout = "yes"
		}
	}

	return []any{
		rec.ID,
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		string(rec.ScenarioType),
		agent,
		customer,
		rec.TotalScore,
		opening,
		communication,
		negotiation,
		knockout,
		summary,
	}
}

func writeSummary(f *excelize.File, stats *model.AnalysisStats) error {
	rows := [][]any{
		{"Total analyses", stats.TotalAnalyses},
		{"Average score", stats.AverageScore},
		{"Passing rate", stats.PassingRate},
	}
	for _, scenario := range model.AllScenarioTypes() {
		rows = append(rows, []any{
			fmt.Sprintf("Calls: %s", scenario),
			stats.ScenarioDistribution[scenario],
		})
	}

	for i, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				return eris.Wrap(err, "report: summary cell")
			}
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return eris.Wrap(err, "report: write summary")
			}
		}
	}
	return nil
}
