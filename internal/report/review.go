// Package report exports finished questionnaire attempts as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

const (
	SummarySheet   = "Summary"
	ResponsesSheet = "Responses"
)

var responseHeader = []any{"Part", "Position", "Question ID", "Question", "Response", "Skipped", "Correct", "Score"}

// Attempt is everything exported for one finished attempt.
type Attempt struct {
	UnitID          string
	QuestionnaireID string
	LearnerID       string
	Attempt         int
	Feedback        *questionnaire.Feedback
	Review          []questionnaire.ReviewItem
}

// Workbook builds a workbook with a summary sheet and one row per reviewed
// question. The caller closes the returned file.
func Workbook(a Attempt) (*excelize.File, error) {
	if a.Feedback == nil {
		return nil, fmt.Errorf("attempt %d of %s has no feedback", a.Attempt, a.QuestionnaireID)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming summary sheet: %w", err)
	}
	if _, err := f.NewSheet(ResponsesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating responses sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	if err := writeSummary(f, a, bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeResponses(f, a.Review, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook of a to w.
func Write(w io.Writer, a Attempt) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, a Attempt, bold int) error {
	fb := a.Feedback
	remaining := "unlimited"
	if fb.AttemptsRemaining != nil {
		remaining = fmt.Sprint(*fb.AttemptsRemaining)
	}
	rows := [][]any{
		{"Unit", a.UnitID},
		{"Questionnaire", a.QuestionnaireID},
		{"Learner", a.LearnerID},
		{"Attempt", a.Attempt},
		{"Score", fb.Score},
		{"Passed", fb.Passed},
		{"Attempts remaining", remaining},
		{"Feedback", fb.Text},
	}

	row := 1
	for _, r := range rows {
		if err := setRow(f, SummarySheet, row, r); err != nil {
			return err
		}
		row++
	}
	if err := styleRange(f, SummarySheet, 1, 1, 1, row-1, bold); err != nil {
		return err
	}

	if len(fb.Parts) == 0 {
		return nil
	}
	row++
	if err := setRow(f, SummarySheet, row, []any{"Part", "Score", "Passed", "Feedback"}); err != nil {
		return err
	}
	if err := styleRange(f, SummarySheet, 1, row, 4, row, bold); err != nil {
		return err
	}
	for _, p := range fb.Parts {
		row++
		var score, passed any = "", ""
		if p.Score != nil {
			score = *p.Score
		}
		if p.Passed != nil {
			passed = *p.Passed
		}
		text := p.Text
		if p.ScoreText != "" {
			text = p.ScoreText
		}
		if err := setRow(f, SummarySheet, row, []any{p.PartID, score, passed, text}); err != nil {
			return err
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 20)
}

func writeResponses(f *excelize.File, items []questionnaire.ReviewItem, bold int) error {
	if err := setRow(f, ResponsesSheet, 1, responseHeader); err != nil {
		return err
	}
	if err := styleRange(f, ResponsesSheet, 1, 1, len(responseHeader), 1, bold); err != nil {
		return err
	}
	for i, it := range items {
		var correct any = ""
		if it.Feedback != nil && it.Feedback.Correct != nil {
			correct = *it.Feedback.Correct
		}
		row := []any{it.PartID, it.Position + 1, it.QuestionID, it.Description, it.Response, it.Skipped, correct, it.Score}
		if err := setRow(f, ResponsesSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(ResponsesSheet, "D", "E", 40)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleRange(f *excelize.File, sheet string, col1, row1, col2, row2, style int) error {
	from, err := excelize.CoordinatesToCellName(col1, row1)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(col2, row2)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, from, to, style)
}
