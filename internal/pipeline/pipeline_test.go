package pipeline

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/pkg/models"
)

const example = header + "\n" +
	"S1;2024-01-01T05:00;2024-01-01;10;0;10\n" +
	"S1;2024-01-01T05:00;2024-01-01;10;0;10\n" +
	"S1;2024-01-01T06:00;2024-01-01;;;\n"

func TestRunWorkedExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.csv")
	require.NoError(t, os.WriteFile(path, []byte(example), 0644))

	res, err := New(';', config.DefaultTimeLayouts).Run(path)
	require.NoError(t, err)

	require.Len(t, res.Clean, 1)
	assert.Equal(t, "S1", res.Clean[0].Serial)
	assert.Equal(t, 5, res.Clean[0].Hour.V)
	assert.Equal(t, 10.0, res.Clean[0].GridPurchase.V)

	assert.Equal(t, []models.HourlyBucket{
		{Date: day(2024, 1, 1), Hour: hr(5), GridPurchase: 10, GridFeedin: 0, IsPeakFeedInHour: true},
	}, res.Hourly)

	assert.Equal(t, []models.SerialSummary{{Serial: "S1", GridPurchase: 10, GridFeedin: 0}}, res.Summary)

	assert.Equal(t, 3, res.Stats.Loaded)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 1, res.Stats.AllMissing)
	assert.Equal(t, 1, res.Stats.Clean)
	assert.Equal(t, 1, res.Stats.HourlyBuckets)
	assert.Equal(t, 1, res.Stats.PeakBuckets)
	assert.Equal(t, 1, res.Stats.Serials)
	assert.Equal(t, models.RequiredColumns, res.Columns)
	assert.Empty(t, res.ExtraColumns)
}

func TestRunMissingInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	_, err := New(';', config.DefaultTimeLayouts).Run(path)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, err.Error(), path)
}

// randomTable builds a messy input: repeated rows, bad cells, blank energy fields
func randomTable(rng *rand.Rand, n int) *models.RawTable {
	cell := func(vals ...string) string { return vals[rng.Intn(len(vals))] }
	table := &models.RawTable{Columns: append(append([]string(nil), models.RequiredColumns...), "site")}

	for i := 0; i < n; i++ {
		if i > 0 && rng.Intn(5) == 0 {
			prev := table.Rows[rng.Intn(len(table.Rows))]
			table.Rows = append(table.Rows, models.RawRecord{Line: i + 2, Fields: prev.Fields})
			continue
		}
		fields := map[string]string{
			"serial":             cell("S1", "S2", "S3", "S4"),
			"timestamp":          fmt.Sprintf("2024-01-0%d %02d:%s", 1+rng.Intn(3), rng.Intn(4), cell("00", "15", "30")),
			"date":               fmt.Sprintf("2024-01-0%d", 1+rng.Intn(3)),
			"grid_purchase":      cell("", "1", "2.5", "4", "bad", "0"),
			"grid_feedin":        cell("", "0", "3", "3", "7.25", "n/a", "x"),
			"direct_consumption": cell("", "1", "oops"),
			"site":               cell("roof", "garage"),
		}
		if rng.Intn(10) == 0 {
			fields["timestamp"] = "never"
		}
		if rng.Intn(10) == 0 {
			fields["date"] = ""
		}
		table.Rows = append(table.Rows, models.RawRecord{Line: i + 2, Fields: fields})
	}
	return table
}

func TestPipelineProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := New(';', config.DefaultTimeLayouts)

	for iter := 0; iter < 50; iter++ {
		res := p.Process(randomTable(rng, 1+rng.Intn(200)))

		// No duplicates, no all-missing records
		seen := make(map[string]bool)
		for _, rec := range res.Clean {
			key := recordKey(rec)
			require.False(t, seen[key], "duplicate record survived cleaning")
			seen[key] = true
			require.True(t, rec.HasEnergy(), "all-missing record survived cleaning")
		}

		// Cleaning is idempotent
		require.Equal(t, res.Clean, Clean(res.Clean))

		// Bucket sums match the records sharing the key
		for _, b := range res.Hourly {
			var purchase, feedin float64
			for _, rec := range res.Clean {
				if rec.Date == b.Date && rec.Hour == b.Hour {
					if rec.GridPurchase.Valid {
						purchase += rec.GridPurchase.V
					}
					if rec.GridFeedin.Valid {
						feedin += rec.GridFeedin.V
					}
				}
			}
			require.InDelta(t, purchase, b.GridPurchase, 1e-9)
			require.InDelta(t, feedin, b.GridFeedin, 1e-9)
		}

		// Peak flags are exactly the partition maxima, ties included
		peak := make(map[string]float64)
		part := func(b models.HourlyBucket) string {
			if !b.Date.Valid {
				return "~"
			}
			return b.Date.V.Format("2006-01-02")
		}
		for _, b := range res.Hourly {
			if m, ok := peak[part(b)]; !ok || b.GridFeedin > m {
				peak[part(b)] = b.GridFeedin
			}
		}
		for _, b := range res.Hourly {
			require.Equal(t, b.GridFeedin == peak[part(b)], b.IsPeakFeedInHour)
		}

		// Summary is non-increasing by purchase
		require.True(t, sort.SliceIsSorted(res.Summary, func(i, j int) bool {
			return res.Summary[i].GridPurchase > res.Summary[j].GridPurchase
		}))

		require.Equal(t, res.Stats.Loaded, res.Stats.Clean+res.Stats.Duplicates+res.Stats.AllMissing)
	}
}

func TestProcessCarriesExtraColumns(t *testing.T) {
	input := header + ";site\nS1;2024-01-01T05:00;2024-01-01;1;2;3;roof\n"
	table, err := NewLoader(';').Read(strings.NewReader(input), "in.csv")
	require.NoError(t, err)

	res := New(';', config.DefaultTimeLayouts).Process(table)
	assert.Equal(t, []string{"site"}, res.ExtraColumns)
	require.Len(t, res.Clean, 1)
	assert.Equal(t, []string{"roof"}, res.Clean[0].Extra)
}
