package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jgoulah/gridflow/pkg/models"
)

var (
	// ErrNoHeader is returned for input without a header row
	ErrNoHeader = errors.New("missing header row")
	// ErrMissingColumns is returned when the header lacks a required column
	ErrMissingColumns = errors.New("missing required columns")
)

// ParseError is a structural input failure. It always names the offending path.
type ParseError struct {
	Path string
	Line int // 0 when the failure is not tied to a line
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Loader reads delimited measurement files
type Loader struct {
	Comma rune
}

// NewLoader creates a loader for the given field separator (0 means ';')
func NewLoader(comma rune) *Loader {
	if comma == 0 {
		comma = ';'
	}
	return &Loader{Comma: comma}
}

// Load reads the file at path
func (l *Loader) Load(path string) (*models.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	return l.Read(f, path)
}

// Read parses r; source names the input in errors
func (l *Loader) Read(r io.Reader, source string) (*models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.Comma = l.Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Path: source, Err: ErrNoHeader}
	}
	if err != nil {
		return nil, &ParseError{Path: source, Line: lineOf(err), Err: fmt.Errorf("reading header: %w", err)}
	}

	columns := make([]string, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		columns[i] = strings.TrimSpace(col)
	}

	if missing := missingColumns(columns); len(missing) > 0 {
		return nil, &ParseError{
			Path: source,
			Line: 1,
			Err:  fmt.Errorf("%w: %s not found in header %v", ErrMissingColumns, strings.Join(missing, ", "), columns),
		}
	}

	table := &models.RawTable{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: source, Line: lineOf(err), Err: fmt.Errorf("reading row: %w", err)}
		}

		line, _ := reader.FieldPos(0)
		if len(record) > len(columns) {
			return nil, &ParseError{
				Path: source,
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", len(columns), len(record)),
			}
		}

		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			// Short rows are padded, the missing cells become missing values
			if i < len(record) {
				fields[col] = record[i]
			} else {
				fields[col] = ""
			}
		}
		table.Rows = append(table.Rows, models.RawRecord{Line: line, Fields: fields})
	}

	return table, nil
}

// Load reads path with the default ';' separator
func Load(path string) (*models.RawTable, error) {
	return NewLoader(';').Load(path)
}

func missingColumns(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		seen[col] = true
	}

	var missing []string
	for _, col := range models.RequiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func lineOf(err error) int {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return perr.Line
	}
	return 0
}
