package models

import (
	"database/sql"
	"time"
)

// Input column names
const (
	ColSerial            = "serial"
	ColTimestamp         = "timestamp"
	ColDate              = "date"
	ColGridPurchase      = "grid_purchase"
	ColGridFeedin        = "grid_feedin"
	ColDirectConsumption = "direct_consumption"
	ColHour              = "hour"
	ColIsPeakFeedInHour  = "is_peak_feed_in_hour"
)

// RequiredColumns lists the header columns every input file must carry
var RequiredColumns = []string{
	ColSerial,
	ColTimestamp,
	ColDate,
	ColGridPurchase,
	ColGridFeedin,
	ColDirectConsumption,
}

// EnergyColumns are the flow fields that decide whether a record carries any data
var EnergyColumns = []string{ColGridPurchase, ColGridFeedin, ColDirectConsumption}

// RawRecord is one input line as text, keyed by header column name
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// RawTable is the loader output: header order plus rows
type RawTable struct {
	Columns []string
	Rows    []RawRecord
}

// CleanRecord is a measurement after type coercion.
// A field with Valid == false is missing, which is distinct from zero.
type CleanRecord struct {
	Serial            string
	Timestamp         sql.Null[time.Time] // Full timestamp as parsed
	Date              sql.Null[time.Time] // Civil date at midnight UTC, parsed from the date column
	GridPurchase      sql.Null[float64]
	GridFeedin        sql.Null[float64]
	DirectConsumption sql.Null[float64]
	Hour              sql.Null[int] // Hour of Timestamp
	Extra             []string      // Pass-through column values
}

// HasEnergy reports whether at least one flow field is present
func (r CleanRecord) HasEnergy() bool {
	return r.GridPurchase.Valid || r.GridFeedin.Valid || r.DirectConsumption.Valid
}

// HourlyBucket holds grid flow totals for one (date, hour) key
type HourlyBucket struct {
	Date             sql.Null[time.Time]
	Hour             sql.Null[int]
	GridPurchase     float64
	GridFeedin       float64
	IsPeakFeedInHour bool
}

// SerialSummary holds lifetime grid flow totals for one device
type SerialSummary struct {
	Serial       string
	GridPurchase float64
	GridFeedin   float64
}
