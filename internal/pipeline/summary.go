package pipeline

import (
	"math"
	"sort"

	"github.com/jgoulah/gridflow/pkg/models"
)

// SummarizeBySerial totals purchase and feed-in per device over the whole clean set,
// ranked by purchase descending. Equal purchases are ordered by serial; a NaN
// purchase total ranks last.
// Direct consumption is not part of the summary.
func SummarizeBySerial(records []models.CleanRecord) []models.SerialSummary {
	index := make(map[string]int)
	var out []models.SerialSummary

	for _, rec := range records {
		i, ok := index[rec.Serial]
		if !ok {
			i = len(out)
			index[rec.Serial] = i
			out = append(out, models.SerialSummary{Serial: rec.Serial})
		}
		if rec.GridPurchase.Valid {
			out[i].GridPurchase += rec.GridPurchase.V
		}
		if rec.GridFeedin.Valid {
			out[i].GridFeedin += rec.GridFeedin.V
		}
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].Serial < out[b].Serial
	})
	sort.SliceStable(out, func(a, b int) bool {
		pa, pb := out[a].GridPurchase, out[b].GridPurchase
		if math.IsNaN(pa) || math.IsNaN(pb) {
			return !math.IsNaN(pa) && math.IsNaN(pb)
		}
		return pa > pb
	})
	return out
}
