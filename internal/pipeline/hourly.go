package pipeline

import (
	"database/sql"
	"math"
	"sort"
	"time"

	"github.com/jgoulah/gridflow/pkg/models"
)

type bucketKey struct {
	date    time.Time
	hasDate bool
	hour    int
	hasHour bool
}

func keyOf(rec models.CleanRecord) bucketKey {
	k := bucketKey{hasDate: rec.Date.Valid, hasHour: rec.Hour.Valid}
	if k.hasDate {
		k.date = rec.Date.V
	}
	if k.hasHour {
		k.hour = rec.Hour.V
	}
	return k
}

// dateKey identifies the peak-detection partition of a bucket
type dateKey struct {
	date    time.Time
	hasDate bool
}

// AggregateHourly sums purchase and feed-in per (date, hour) and flags the peak
// feed-in hour of every date. Missing values add nothing to a sum. Records with a
// missing date or hour are grouped under the missing key; the missing date is its
// own partition. Every bucket that reaches its partition maximum is flagged, so ties
// yield several peak hours.
//
// Buckets are ordered by date then hour, with missing keys after present ones.
func AggregateHourly(records []models.CleanRecord) []models.HourlyBucket {
	index := make(map[bucketKey]int)
	var keys []bucketKey
	var buckets []models.HourlyBucket

	for _, rec := range records {
		k := keyOf(rec)
		i, ok := index[k]
		if !ok {
			i = len(buckets)
			index[k] = i
			keys = append(keys, k)
			b := models.HourlyBucket{}
			if k.hasDate {
				b.Date = sql.Null[time.Time]{V: k.date, Valid: true}
			}
			if k.hasHour {
				b.Hour = sql.Null[int]{V: k.hour, Valid: true}
			}
			buckets = append(buckets, b)
		}
		if rec.GridPurchase.Valid {
			buckets[i].GridPurchase += rec.GridPurchase.V
		}
		if rec.GridFeedin.Valid {
			buckets[i].GridFeedin += rec.GridFeedin.V
		}
	}

	order := make([]int, len(buckets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lessKey(keys[order[a]], keys[order[b]])
	})

	sorted := make([]models.HourlyBucket, len(buckets))
	for i, j := range order {
		sorted[i] = buckets[j]
	}

	flagPeaks(sorted)
	return sorted
}

func lessKey(a, b bucketKey) bool {
	if a.hasDate != b.hasDate {
		return a.hasDate
	}
	if a.hasDate && !a.date.Equal(b.date) {
		return a.date.Before(b.date)
	}
	if a.hasHour != b.hasHour {
		return a.hasHour
	}
	return a.hour < b.hour
}

func partitionOf(b models.HourlyBucket) dateKey {
	if !b.Date.Valid {
		return dateKey{}
	}
	return dateKey{date: b.Date.V, hasDate: true}
}

// flagPeaks marks the buckets at their partition maximum. A NaN total (from
// adding +Inf and -Inf) takes no part in the maximum and is never a peak.
func flagPeaks(buckets []models.HourlyBucket) {
	peak := make(map[dateKey]float64)
	for _, b := range buckets {
		if math.IsNaN(b.GridFeedin) {
			continue
		}
		p := partitionOf(b)
		if m, ok := peak[p]; !ok || b.GridFeedin > m {
			peak[p] = b.GridFeedin
		}
	}
	for i := range buckets {
		m, ok := peak[partitionOf(buckets[i])]
		buckets[i].IsPeakFeedInHour = ok && buckets[i].GridFeedin == m
	}
}
