package pipeline

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridflow/pkg/models"
)

func TestAggregateHourlySumsSkippingMissing(t *testing.T) {
	records := []models.CleanRecord{
		reading("S1", 1, 5, num(10), num(1), none),
		reading("S2", 1, 5, none, num(2), num(7)),
		reading("S3", 1, 5, num(2.5), none, none),
		reading("S1", 1, 6, none, none, num(1)),
	}

	got := AggregateHourly(records)
	require.Len(t, got, 2)

	assert.Equal(t, models.HourlyBucket{Date: day(2024, 1, 1), Hour: hr(5), GridPurchase: 12.5, GridFeedin: 3, IsPeakFeedInHour: true}, got[0])
	assert.Equal(t, models.HourlyBucket{Date: day(2024, 1, 1), Hour: hr(6), GridPurchase: 0, GridFeedin: 0, IsPeakFeedInHour: false}, got[1])
}

func TestAggregateHourlyFlagsAllTiedPeaks(t *testing.T) {
	records := []models.CleanRecord{
		reading("S1", 1, 12, num(0), num(3), none),
		reading("S1", 1, 10, num(0), num(5), none),
		reading("S1", 1, 11, num(0), num(2), none),
		reading("S2", 1, 11, num(0), num(3), none),
	}

	got := AggregateHourly(records)
	require.Len(t, got, 3)

	hours := []int{got[0].Hour.V, got[1].Hour.V, got[2].Hour.V}
	assert.Equal(t, []int{10, 11, 12}, hours)
	assert.True(t, got[0].IsPeakFeedInHour)
	assert.True(t, got[1].IsPeakFeedInHour)
	assert.False(t, got[2].IsPeakFeedInHour)
}

func TestAggregateHourlyPeaksArePerDate(t *testing.T) {
	records := []models.CleanRecord{
		reading("S1", 2, 9, none, num(1), none),
		reading("S1", 1, 9, none, num(100), none),
		reading("S1", 1, 10, none, num(50), none),
		reading("S1", 2, 10, none, num(0.5), none),
	}

	got := AggregateHourly(records)
	require.Len(t, got, 4)

	assert.Equal(t, day(2024, 1, 1), got[0].Date)
	assert.Equal(t, day(2024, 1, 1), got[1].Date)
	assert.Equal(t, day(2024, 1, 2), got[2].Date)
	assert.Equal(t, day(2024, 1, 2), got[3].Date)

	assert.Equal(t, []bool{true, false, true, false}, []bool{
		got[0].IsPeakFeedInHour, got[1].IsPeakFeedInHour, got[2].IsPeakFeedInHour, got[3].IsPeakFeedInHour,
	})
}

func TestAggregateHourlyKeepsMissingKeys(t *testing.T) {
	noDate := reading("S1", 1, 5, num(1), num(4), none)
	noDate.Date = sql.Null[time.Time]{}

	noHour := reading("S1", 1, 0, num(2), num(9), none)
	noHour.Timestamp = sql.Null[time.Time]{}
	noHour.Hour = sql.Null[int]{}

	neither := reading("S2", 1, 0, num(3), num(1), none)
	neither.Date = sql.Null[time.Time]{}
	neither.Timestamp = sql.Null[time.Time]{}
	neither.Hour = sql.Null[int]{}

	records := []models.CleanRecord{
		neither,
		noDate,
		reading("S1", 1, 7, num(5), num(6), none),
		noHour,
	}

	got := AggregateHourly(records)
	require.Len(t, got, 4)

	// 2024-01-01: hour 7, then the missing hour bucket, which holds the date's peak
	assert.Equal(t, models.HourlyBucket{Date: day(2024, 1, 1), Hour: hr(7), GridPurchase: 5, GridFeedin: 6}, got[0])
	assert.Equal(t, models.HourlyBucket{Date: day(2024, 1, 1), GridPurchase: 2, GridFeedin: 9, IsPeakFeedInHour: true}, got[1])

	// Missing date partition sorts last and picks its own peak
	assert.Equal(t, models.HourlyBucket{Hour: hr(5), GridPurchase: 1, GridFeedin: 4, IsPeakFeedInHour: true}, got[2])
	assert.Equal(t, models.HourlyBucket{GridPurchase: 3, GridFeedin: 1}, got[3])
}

func TestAggregateHourlyEmpty(t *testing.T) {
	assert.Empty(t, AggregateHourly(nil))
}

func TestAggregateHourlyIgnoresNaNTotalsForPeaks(t *testing.T) {
	records := []models.CleanRecord{
		reading("S1", 1, 5, num(0), num(math.Inf(1)), none),
		reading("S2", 1, 5, num(0), num(math.Inf(-1)), none),
		reading("S1", 1, 6, num(0), num(3), none),
		reading("S1", 1, 7, num(0), num(4), none),
	}

	got := AggregateHourly(records)
	require.Len(t, got, 3)

	assert.True(t, math.IsNaN(got[0].GridFeedin))
	assert.False(t, got[0].IsPeakFeedInHour)
	assert.False(t, got[1].IsPeakFeedInHour)
	assert.Equal(t, 7, got[2].Hour.V)
	assert.True(t, got[2].IsPeakFeedInHour)
}

func TestAggregateHourlyAllNaNDateHasNoPeak(t *testing.T) {
	records := []models.CleanRecord{
		reading("S1", 1, 5, num(0), num(math.Inf(1)), none),
		reading("S2", 1, 5, num(0), num(math.Inf(-1)), none),
		reading("S1", 2, 0, num(0), num(1), none),
	}

	got := AggregateHourly(records)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsPeakFeedInHour)
	assert.True(t, got[1].IsPeakFeedInHour)
}
