// Package pipeline turns raw meter readings into a clean record set, hourly grid
// totals with peak feed-in flags, and per-serial totals.
//
// Stages run in strict order on the full dataset: load, normalize, clean, then the
// two aggregations over the clean set. Each stage returns a new slice and leaves its
// input untouched.
package pipeline

import (
	"time"

	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/jgoulah/gridflow/pkg/models"
)

// Stats describes what a run did to the data
type Stats struct {
	Loaded           int
	Duplicates       int
	AllMissing       int
	Clean            int
	HourlyBuckets    int
	PeakBuckets      int
	Serials          int
	CoercionFailures map[string]int
	DateMismatches   int
	Duration         time.Duration
}

// Result is the output of one run
type Result struct {
	Columns      []string // Input header order
	ExtraColumns []string // Pass-through columns carried in CleanRecord.Extra
	Clean        []models.CleanRecord
	Hourly       []models.HourlyBucket
	Summary      []models.SerialSummary
	Stats        Stats
}

// Pipeline wires the stages together
type Pipeline struct {
	loader     *Loader
	normalizer *Normalizer
	now        func() time.Time
}

// New creates a pipeline reading comma-separated fields (0 means ';') and
// parsing times with layouts
func New(comma rune, layouts []string) *Pipeline {
	return &Pipeline{
		loader:     NewLoader(comma),
		normalizer: NewNormalizer(layouts),
		now:        time.Now,
	}
}

// Run loads path and processes it. Only structural input failures return an error.
func (p *Pipeline) Run(path string) (*Result, error) {
	start := p.now()

	table, err := p.loader.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d rows from %s", len(table.Rows), path)

	res := p.Process(table)
	res.Stats.Duration = p.now().Sub(start)
	return res, nil
}

// Process runs every stage after loading
func (p *Pipeline) Process(table *models.RawTable) *Result {
	normalized, report := p.normalizer.Normalize(table)
	if n := report.TotalFailures(); n > 0 {
		logger.Warn("%d cells could not be parsed and were treated as missing: %v", n, report.Failures)
	}
	if report.DateMismatches > 0 {
		logger.Warn("%d records have a timestamp on a different day than their date column", report.DateMismatches)
	}

	deduped := Dedupe(normalized)
	clean := DropAllMissing(deduped)
	hourly := AggregateHourly(clean)
	summary := SummarizeBySerial(clean)

	peaks := 0
	for _, b := range hourly {
		if b.IsPeakFeedInHour {
			peaks++
		}
	}

	stats := Stats{
		Loaded:           len(table.Rows),
		Duplicates:       len(normalized) - len(deduped),
		AllMissing:       len(deduped) - len(clean),
		Clean:            len(clean),
		HourlyBuckets:    len(hourly),
		PeakBuckets:      peaks,
		Serials:          len(summary),
		CoercionFailures: report.Failures,
		DateMismatches:   report.DateMismatches,
	}
	logger.Debug("Pipeline stats: %+v", stats)

	return &Result{
		Columns:      table.Columns,
		ExtraColumns: ExtraColumns(table.Columns),
		Clean:        clean,
		Hourly:       hourly,
		Summary:      summary,
		Stats:        stats,
	}
}
