package pipeline

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/jgoulah/gridflow/pkg/models"
)

// Cell values that mean "no value" rather than "bad value"
var naValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"#N/A": true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"-nan": true,
	"null": true,
	"NULL": true,
	"None": true,
}

func isNA(s string) bool {
	return naValues[s]
}

// ParseNumber parses a flow value. Blank, NA-like and unparseable values are missing.
// Hexadecimal literals are not numbers here.
func ParseNumber(s string) sql.Null[float64] {
	v, ok := parseNumber(s)
	if !ok {
		return sql.Null[float64]{}
	}
	return sql.Null[float64]{V: v, Valid: true}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if isNA(s) || isHex(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// TimeParser tries an ordered list of layouts; the first match wins. Values no
// layout matches are handed to dateparse. Values without a zone are read as UTC.
type TimeParser struct {
	layouts []string
}

// NewTimeParser creates a parser over layouts
func NewTimeParser(layouts []string) *TimeParser {
	return &TimeParser{layouts: layouts}
}

func (p *TimeParser) parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if isNA(s) {
		return time.Time{}, false
	}
	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// Bare digit runs would be read as unix epochs
	if isDigits(s) {
		return time.Time{}, false
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseTimestamp parses a full date-and-time value. A date without time reads as midnight.
func (p *TimeParser) ParseTimestamp(s string) sql.Null[time.Time] {
	t, ok := p.parse(s)
	if !ok {
		return sql.Null[time.Time]{}
	}
	return sql.Null[time.Time]{V: t, Valid: true}
}

// ParseDate parses a value with the same layouts and keeps only its civil date
func (p *TimeParser) ParseDate(s string) sql.Null[time.Time] {
	t, ok := p.parse(s)
	if !ok {
		return sql.Null[time.Time]{}
	}
	return sql.Null[time.Time]{V: civilDate(t), Valid: true}
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeReport counts cells that carried text but could not be coerced
type NormalizeReport struct {
	Failures map[string]int
	// Records whose timestamp falls on a different day than their date column.
	// The two fields are kept as parsed; this is only a data-quality signal.
	DateMismatches int
}

// TotalFailures sums failures across columns
func (r NormalizeReport) TotalFailures() int {
	total := 0
	for _, n := range r.Failures {
		total += n
	}
	return total
}

// Normalizer turns raw rows into clean-record candidates
type Normalizer struct {
	times *TimeParser
}

// NewNormalizer creates a normalizer that parses times with layouts
func NewNormalizer(layouts []string) *Normalizer {
	return &Normalizer{times: NewTimeParser(layouts)}
}

// ExtraColumns returns the pass-through columns of a header, in order.
// An input "hour" column is replaced by the derived hour and is not passed through.
func ExtraColumns(columns []string) []string {
	known := make(map[string]bool, len(models.RequiredColumns)+1)
	for _, col := range models.RequiredColumns {
		known[col] = true
	}
	known[models.ColHour] = true

	var extra []string
	for _, col := range columns {
		if !known[col] {
			extra = append(extra, col)
		}
	}
	return extra
}

// Normalize coerces every row. It never fails on cell content.
func (n *Normalizer) Normalize(table *models.RawTable) ([]models.CleanRecord, NormalizeReport) {
	report := NormalizeReport{Failures: make(map[string]int)}
	extra := ExtraColumns(table.Columns)

	records := make([]models.CleanRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		rec := models.CleanRecord{
			Serial:            row.Fields[models.ColSerial],
			Timestamp:         n.times.ParseTimestamp(row.Fields[models.ColTimestamp]),
			Date:              n.times.ParseDate(row.Fields[models.ColDate]),
			GridPurchase:      ParseNumber(row.Fields[models.ColGridPurchase]),
			GridFeedin:        ParseNumber(row.Fields[models.ColGridFeedin]),
			DirectConsumption: ParseNumber(row.Fields[models.ColDirectConsumption]),
		}
		if rec.Timestamp.Valid {
			rec.Hour = sql.Null[int]{V: rec.Timestamp.V.Hour(), Valid: true}
		}
		if len(extra) > 0 {
			rec.Extra = make([]string, len(extra))
			for i, col := range extra {
				rec.Extra[i] = row.Fields[col]
			}
		}

		n.noteFailure(&report, row, models.ColTimestamp, rec.Timestamp.Valid)
		n.noteFailure(&report, row, models.ColDate, rec.Date.Valid)
		n.noteFailure(&report, row, models.ColGridPurchase, rec.GridPurchase.Valid)
		n.noteFailure(&report, row, models.ColGridFeedin, rec.GridFeedin.Valid)
		n.noteFailure(&report, row, models.ColDirectConsumption, rec.DirectConsumption.Valid)

		if rec.Timestamp.Valid && rec.Date.Valid && !civilDate(rec.Timestamp.V).Equal(rec.Date.V) {
			report.DateMismatches++
			logger.Debug("line %d: timestamp %s and date %s disagree, keeping both as parsed",
				row.Line, rec.Timestamp.V.Format(time.RFC3339), rec.Date.V.Format("2006-01-02"))
		}

		records = append(records, rec)
	}

	return records, report
}

func (n *Normalizer) noteFailure(report *NormalizeReport, row models.RawRecord, col string, valid bool) {
	if valid {
		return
	}
	raw := strings.TrimSpace(row.Fields[col])
	if isNA(raw) {
		return
	}
	report.Failures[col]++
	logger.Debug("line %d: %s value %q could not be parsed, treating as missing", row.Line, col, raw)
}
