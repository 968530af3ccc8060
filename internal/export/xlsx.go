package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jgoulah/gridflow/internal/pipeline"
	"github.com/jgoulah/gridflow/pkg/models"
)

// Workbook sheet names
const (
	SheetClean   = "cleaned"
	SheetHourly  = "hourly"
	SheetSummary = "summary"
)

// BuildWorkbook renders the three views of a run into one workbook.
// Totals are numeric cells; missing values are left blank.
func BuildWorkbook(res *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetClean)
	f.NewSheet(SheetHourly)
	f.NewSheet(SheetSummary)

	// Cleaned records
	header := CleanColumns(res.Columns)
	if err := setRow(f, SheetClean, 1, stringsToCells(header)); err != nil {
		f.Close()
		return nil, err
	}
	for i, rec := range res.Clean {
		text := CleanRow(res.Columns, res.ExtraColumns, rec)
		cells := stringsToCells(text)
		for j, col := range header {
			switch col {
			case models.ColGridPurchase:
				cells[j] = nullFloatCell(rec.GridPurchase.V, rec.GridPurchase.Valid)
			case models.ColGridFeedin:
				cells[j] = nullFloatCell(rec.GridFeedin.V, rec.GridFeedin.Valid)
			case models.ColDirectConsumption:
				cells[j] = nullFloatCell(rec.DirectConsumption.V, rec.DirectConsumption.Valid)
			case models.ColHour:
				if rec.Hour.Valid {
					cells[j] = rec.Hour.V
				}
			}
		}
		if err := setRow(f, SheetClean, i+2, cells); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Hourly totals
	if err := setRow(f, SheetHourly, 1, stringsToCells(HourlyColumns)); err != nil {
		f.Close()
		return nil, err
	}
	for i, b := range res.Hourly {
		cells := []interface{}{FormatDate(b.Date), nil, b.GridPurchase, b.GridFeedin, b.IsPeakFeedInHour}
		if b.Hour.Valid {
			cells[1] = b.Hour.V
		}
		if err := setRow(f, SheetHourly, i+2, cells); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Serial summary
	if err := setRow(f, SheetSummary, 1, stringsToCells(SummaryColumns)); err != nil {
		f.Close()
		return nil, err
	}
	for i, s := range res.Summary {
		if err := setRow(f, SheetSummary, i+2, []interface{}{s.Serial, s.GridPurchase, s.GridFeedin}); err != nil {
			f.Close()
			return nil, err
		}
	}

	return f, nil
}

// WriteWorkbook writes the workbook for res to path
func WriteWorkbook(path string, res *pipeline.Result) error {
	f, err := BuildWorkbook(res)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer f.Close()

	return writeAtomic(path, func(out io.Writer) error {
		return f.Write(out)
	})
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	for col, v := range cells {
		if v == nil {
			continue
		}
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name, v); err != nil {
			return fmt.Errorf("setting %s!%s: %w", sheet, name, err)
		}
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		if v != "" {
			cells[i] = v
		}
	}
	return cells
}

func nullFloatCell(v float64, valid bool) interface{} {
	if !valid {
		return nil
	}
	return v
}
