package pipeline

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/gridflow/pkg/models"
)

// Clean removes exact duplicates, then records without any energy value.
// Both passes keep the relative order of survivors.
func Clean(records []models.CleanRecord) []models.CleanRecord {
	return DropAllMissing(Dedupe(records))
}

// Dedupe keeps the first occurrence of every field-for-field identical record.
// Comparison is on coerced values: two missing cells are equal whatever text they held.
func Dedupe(records []models.CleanRecord) []models.CleanRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.CleanRecord, 0, len(records))
	for _, rec := range records {
		key := recordKey(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// DropAllMissing removes records whose purchase, feed-in and direct consumption are all missing
func DropAllMissing(records []models.CleanRecord) []models.CleanRecord {
	out := make([]models.CleanRecord, 0, len(records))
	for _, rec := range records {
		if rec.HasEnergy() {
			out = append(out, rec)
		}
	}
	return out
}

const keySep = "\x1f"

func recordKey(rec models.CleanRecord) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(rec.Serial))
	b.WriteString(keySep)
	b.WriteString(timeKey(rec.Timestamp))
	b.WriteString(keySep)
	b.WriteString(timeKey(rec.Date))
	b.WriteString(keySep)
	b.WriteString(floatKey(rec.GridPurchase))
	b.WriteString(keySep)
	b.WriteString(floatKey(rec.GridFeedin))
	b.WriteString(keySep)
	b.WriteString(floatKey(rec.DirectConsumption))
	for _, v := range rec.Extra {
		b.WriteString(keySep)
		b.WriteString(strconv.Quote(v))
	}
	return b.String()
}

func timeKey(v sql.Null[time.Time]) string {
	if !v.Valid {
		return "~"
	}
	return v.V.Format(time.RFC3339Nano)
}

func floatKey(v sql.Null[float64]) string {
	if !v.Valid {
		return "~"
	}
	f := v.V
	if f == 0 {
		f = 0 // -0 and 0 are the same reading
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
