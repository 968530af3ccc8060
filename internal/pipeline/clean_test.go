package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/pkg/models"
)

func TestDedupeKeepsFirstOccurrenceInOrder(t *testing.T) {
	a := reading("S1", 1, 5, num(10), num(0), num(10))
	b := reading("S2", 1, 5, num(1), num(2), none)
	c := reading("S1", 1, 6, num(3), none, none)

	got := Dedupe([]models.CleanRecord{a, b, a, c, b})
	assert.Equal(t, []models.CleanRecord{a, b, c}, got)
}

func TestDedupeComparesCoercedValues(t *testing.T) {
	table := &models.RawTable{
		Columns: models.RequiredColumns,
		Rows: []models.RawRecord{
			{Line: 2, Fields: map[string]string{
				"serial": "S1", "timestamp": "2024-01-01T05:00", "date": "2024-01-01",
				"grid_purchase": "10", "grid_feedin": "abc", "direct_consumption": "10",
			}},
			{Line: 3, Fields: map[string]string{
				"serial": "S1", "timestamp": "2024-01-01 05:00:00", "date": "2024-01-01",
				"grid_purchase": "10.0", "grid_feedin": "xyz", "direct_consumption": "1e1",
			}},
		},
	}

	records, _ := NewNormalizer(config.DefaultTimeLayouts).Normalize(table)
	got := Dedupe(records)
	require.Len(t, got, 1)
	assert.Equal(t, records[0], got[0])
}

func TestDedupeSeesPassThroughColumns(t *testing.T) {
	a := reading("S1", 1, 5, num(1), num(1), num(1))
	a.Extra = []string{"roof"}
	b := a
	b.Extra = []string{"garage"}

	assert.Len(t, Dedupe([]models.CleanRecord{a, b}), 2)
}

func TestDedupeZeroSign(t *testing.T) {
	a := reading("S1", 1, 5, num(0), none, none)
	b := reading("S1", 1, 5, ParseNumber("-0"), none, none)

	assert.Len(t, Dedupe([]models.CleanRecord{a, b}), 1)
}

func TestDropAllMissing(t *testing.T) {
	full := reading("S1", 1, 5, num(1), num(2), num(3))
	onlyDirect := reading("S1", 1, 6, none, none, num(3))
	onlyFeedin := reading("S1", 1, 7, none, num(0), none)
	empty := reading("S1", 1, 8, none, none, none)

	got := DropAllMissing([]models.CleanRecord{full, empty, onlyDirect, onlyFeedin, empty})
	assert.Equal(t, []models.CleanRecord{full, onlyDirect, onlyFeedin}, got)
}

func TestCleanIsIdempotentAndLeavesInputAlone(t *testing.T) {
	in := []models.CleanRecord{
		reading("S1", 1, 5, num(10), num(0), num(10)),
		reading("S1", 1, 5, num(10), num(0), num(10)),
		reading("S1", 1, 6, none, none, none),
		reading("S2", 1, 6, none, num(4), none),
	}
	before := append([]models.CleanRecord(nil), in...)

	once := Clean(in)
	twice := Clean(once)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
	assert.Equal(t, before, in)
}
