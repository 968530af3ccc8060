package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "serial;timestamp;date;grid_purchase;grid_feedin;direct_consumption"

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")

	_, err := Load(path)
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, path, perr.Path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), path)
}

func TestReadEmptyInput(t *testing.T) {
	_, err := NewLoader(';').Read(strings.NewReader(""), "empty.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHeader)
	assert.Contains(t, err.Error(), "empty.csv")
}

func TestReadHeaderWithoutRequiredColumns(t *testing.T) {
	input := "serial;timestamp;grid_purchase\nS1;2024-01-01T05:00;3\n"

	_, err := NewLoader(';').Read(strings.NewReader(input), "partial.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumns)
	assert.NotErrorIs(t, err, ErrNoHeader)
	assert.NotContains(t, err.Error(), "missing header row")
	assert.Contains(t, err.Error(), "date")
	assert.Contains(t, err.Error(), "grid_feedin")
	assert.Contains(t, err.Error(), "direct_consumption")
}

func TestReadKeepsColumnsAndPadsShortRows(t *testing.T) {
	input := "\ufeff" + header + ";site\n" +
		"S1;2024-01-01T05:00;2024-01-01;10;0;10;roof\n" +
		"\n" +
		"S2;x\n"

	table, err := NewLoader(';').Read(strings.NewReader(input), "in.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"serial", "timestamp", "date", "grid_purchase", "grid_feedin", "direct_consumption", "site"}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "S1", first.Fields["serial"])
	assert.Equal(t, "10", first.Fields["grid_purchase"])
	assert.Equal(t, "roof", first.Fields["site"])

	second := table.Rows[1]
	assert.Equal(t, 4, second.Line)
	assert.Equal(t, "x", second.Fields["timestamp"])
	assert.Equal(t, "", second.Fields["grid_feedin"])
	assert.Equal(t, "", second.Fields["site"])
}

func TestReadRowWithTooManyFields(t *testing.T) {
	input := header + "\nS1;a;b;c;d;e;f\n"

	_, err := NewLoader(';').Read(strings.NewReader(input), "wide.csv")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, err.Error(), "wide.csv line 2")
}

func TestLoadCustomDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comma.csv")
	content := strings.ReplaceAll(header, ";", ",") + "\nS1,2024-01-01T05:00,2024-01-01,1,2,3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := NewLoader(',').Load(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "2", table.Rows[0].Fields["grid_feedin"])
}
