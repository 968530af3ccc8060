package pipeline

import (
	"database/sql"
	"time"

	"github.com/jgoulah/gridflow/pkg/models"
)

func num(v float64) sql.Null[float64] {
	return sql.Null[float64]{V: v, Valid: true}
}

var none sql.Null[float64]

func day(y int, m time.Month, d int) sql.Null[time.Time] {
	return sql.Null[time.Time]{V: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func hr(h int) sql.Null[int] {
	return sql.Null[int]{V: h, Valid: true}
}

// reading builds a clean record on 2024-01-<d> at hour h
func reading(serial string, d, h int, purchase, feedin, direct sql.Null[float64]) models.CleanRecord {
	ts := time.Date(2024, 1, d, h, 0, 0, 0, time.UTC)
	return models.CleanRecord{
		Serial:            serial,
		Timestamp:         sql.Null[time.Time]{V: ts, Valid: true},
		Date:              day(2024, 1, d),
		Hour:              hr(h),
		GridPurchase:      purchase,
		GridFeedin:        feedin,
		DirectConsumption: direct,
	}
}
