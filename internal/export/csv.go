// Package export serializes pipeline results to delimited text and spreadsheets.
package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jgoulah/gridflow/pkg/models"
)

// WriteError is a fatal output failure for Path
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// HourlyColumns is the header of the hourly totals output
var HourlyColumns = []string{models.ColDate, models.ColHour, models.ColGridPurchase, models.ColGridFeedin, models.ColIsPeakFeedInHour}

// SummaryColumns is the header of the serial summary output
var SummaryColumns = []string{models.ColSerial, models.ColGridPurchase, models.ColGridFeedin}

// FormatFloat renders a total in its shortest round-trip decimal form
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatNullFloat renders a missing value as an empty cell
func FormatNullFloat(v sql.Null[float64]) string {
	if !v.Valid {
		return ""
	}
	return FormatFloat(v.V)
}

// FormatDate renders a civil date as YYYY-MM-DD
func FormatDate(v sql.Null[time.Time]) string {
	if !v.Valid {
		return ""
	}
	return v.V.Format("2006-01-02")
}

// FormatTimestamp renders a timestamp with fractional seconds only when present,
// and with its offset only when it is not UTC
func FormatTimestamp(v sql.Null[time.Time]) string {
	if !v.Valid {
		return ""
	}
	if v.V.Location() == time.UTC {
		return v.V.Format("2006-01-02 15:04:05.999999999")
	}
	return v.V.Format("2006-01-02 15:04:05.999999999-07:00")
}

// FormatHour renders an hour of day
func FormatHour(v sql.Null[int]) string {
	if !v.Valid {
		return ""
	}
	return strconv.Itoa(v.V)
}

// FormatBool renders the peak flag literal
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// CleanColumns returns the cleaned output header: the input header in order with
// the derived hour appended, or in place of an input hour column
func CleanColumns(columns []string) []string {
	out := append([]string(nil), columns...)
	for _, col := range columns {
		if col == models.ColHour {
			return out
		}
	}
	return append(out, models.ColHour)
}

// CleanRow renders one record in the order of CleanColumns(columns).
// extra names the pass-through columns aligned with rec.Extra.
func CleanRow(columns, extra []string, rec models.CleanRecord) []string {
	extraIdx := make(map[string]int, len(extra))
	for i, col := range extra {
		extraIdx[col] = i
	}

	header := CleanColumns(columns)
	row := make([]string, len(header))
	for i, col := range header {
		switch col {
		case models.ColSerial:
			row[i] = rec.Serial
		case models.ColTimestamp:
			row[i] = FormatTimestamp(rec.Timestamp)
		case models.ColDate:
			row[i] = FormatDate(rec.Date)
		case models.ColGridPurchase:
			row[i] = FormatNullFloat(rec.GridPurchase)
		case models.ColGridFeedin:
			row[i] = FormatNullFloat(rec.GridFeedin)
		case models.ColDirectConsumption:
			row[i] = FormatNullFloat(rec.DirectConsumption)
		case models.ColHour:
			row[i] = FormatHour(rec.Hour)
		default:
			if j, ok := extraIdx[col]; ok && j < len(rec.Extra) {
				row[i] = rec.Extra[j]
			}
		}
	}
	return row
}

// HourlyRow renders one hourly bucket
func HourlyRow(b models.HourlyBucket) []string {
	return []string{
		FormatDate(b.Date),
		FormatHour(b.Hour),
		FormatFloat(b.GridPurchase),
		FormatFloat(b.GridFeedin),
		FormatBool(b.IsPeakFeedInHour),
	}
}

// SummaryRow renders one serial summary
func SummaryRow(s models.SerialSummary) []string {
	return []string{s.Serial, FormatFloat(s.GridPurchase), FormatFloat(s.GridFeedin)}
}

// WriteCleanCSV writes the cleaned records
func WriteCleanCSV(path string, columns, extra []string, records []models.CleanRecord) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(CleanColumns(columns)); err != nil {
			return err
		}
		for _, rec := range records {
			if err := w.Write(CleanRow(columns, extra, rec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteHourlyCSV writes the hourly totals with peak flags
func WriteHourlyCSV(path string, buckets []models.HourlyBucket) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(HourlyColumns); err != nil {
			return err
		}
		for _, b := range buckets {
			if err := w.Write(HourlyRow(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteSummaryCSV writes the per-serial totals in their ranked order
func WriteSummaryCSV(path string, summaries []models.SerialSummary) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(SummaryColumns); err != nil {
			return err
		}
		for _, s := range summaries {
			if err := w.Write(SummaryRow(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, fill func(w *csv.Writer) error) error {
	return writeAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := fill(w); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	})
}

// writeAtomic writes to a temp file next to path and renames it into place
func writeAtomic(path string, fill func(out io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("creating output directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
