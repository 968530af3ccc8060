package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jgoulah/gridflow/internal/pipeline"
	"github.com/jgoulah/gridflow/pkg/models"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339Nano
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// Run describes the snapshot currently stored
type Run struct {
	ID         string
	Source     string
	CreatedAt  time.Time
	Loaded     int
	Clean      int
	Duplicates int
	AllMissing int
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		created_at TEXT NOT NULL,
		loaded INTEGER NOT NULL,
		clean INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		all_missing INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS clean_records (
		seq INTEGER PRIMARY KEY,
		serial TEXT NOT NULL,
		timestamp TEXT,
		date TEXT,
		hour INTEGER,
		grid_purchase REAL,
		grid_feedin REAL,
		direct_consumption REAL,
		extra TEXT
	);
	CREATE TABLE IF NOT EXISTS hourly_totals (
		seq INTEGER PRIMARY KEY,
		date TEXT,
		hour INTEGER,
		grid_purchase REAL NOT NULL,
		grid_feedin REAL NOT NULL,
		is_peak_feed_in_hour INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS serial_summary (
		rank INTEGER PRIMARY KEY,
		serial TEXT NOT NULL,
		grid_purchase REAL NOT NULL,
		grid_feedin REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_clean_serial ON clean_records(serial);
	CREATE INDEX IF NOT EXISTS idx_hourly_peak ON hourly_totals(is_peak_feed_in_hour);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun replaces the stored snapshot with res in one transaction.
// It returns the id of the new run.
func (db *DB) SaveRun(source string, res *pipeline.Result) (string, error) {
	id := uuid.NewString()

	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"runs", "clean_records", "hourly_totals", "serial_summary"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return "", fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT INTO runs (id, source, created_at, loaded, clean, duplicates, all_missing) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, createdAt, res.Stats.Loaded, res.Stats.Clean, res.Stats.Duplicates, res.Stats.AllMissing,
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	cleanStmt, err := tx.Prepare(`
	INSERT INTO clean_records (seq, serial, timestamp, date, hour, grid_purchase, grid_feedin, direct_consumption, extra)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing clean insert: %w", err)
	}
	defer cleanStmt.Close()

	for i, rec := range res.Clean {
		extra, err := extraJSON(res.ExtraColumns, rec.Extra)
		if err != nil {
			return "", fmt.Errorf("encoding extra columns: %w", err)
		}
		if _, err := cleanStmt.Exec(
			i, rec.Serial,
			nullTime(rec.Timestamp, tsLayout), nullTime(rec.Date, dateLayout), nullInt(rec.Hour),
			nullFloat(rec.GridPurchase), nullFloat(rec.GridFeedin), nullFloat(rec.DirectConsumption),
			extra,
		); err != nil {
			return "", fmt.Errorf("inserting clean record: %w", err)
		}
	}

	hourlyStmt, err := tx.Prepare(`
	INSERT INTO hourly_totals (seq, date, hour, grid_purchase, grid_feedin, is_peak_feed_in_hour)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("preparing hourly insert: %w", err)
	}
	defer hourlyStmt.Close()

	for i, b := range res.Hourly {
		if _, err := hourlyStmt.Exec(i, nullTime(b.Date, dateLayout), nullInt(b.Hour), b.GridPurchase, b.GridFeedin, b.IsPeakFeedInHour); err != nil {
			return "", fmt.Errorf("inserting hourly total: %w", err)
		}
	}

	for i, s := range res.Summary {
		if _, err := tx.Exec(
			`INSERT INTO serial_summary (rank, serial, grid_purchase, grid_feedin) VALUES (?, ?, ?, ?)`,
			i, s.Serial, s.GridPurchase, s.GridFeedin,
		); err != nil {
			return "", fmt.Errorf("inserting serial summary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// LatestRun returns the stored run, or nil when the database is empty
func (db *DB) LatestRun() (*Run, error) {
	row := db.conn.QueryRow(`SELECT id, source, created_at, loaded, clean, duplicates, all_missing FROM runs LIMIT 1`)

	var run Run
	var createdAt string
	err := row.Scan(&run.ID, &run.Source, &createdAt, &run.Loaded, &run.Clean, &run.Duplicates, &run.AllMissing)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &run, nil
}

// ListSerialSummary returns the serial totals in rank order
func (db *DB) ListSerialSummary() ([]models.SerialSummary, error) {
	rows, err := db.conn.Query(`SELECT serial, grid_purchase, grid_feedin FROM serial_summary ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("querying serial summary: %w", err)
	}
	defer rows.Close()

	var results []models.SerialSummary
	for rows.Next() {
		var s models.SerialSummary
		if err := rows.Scan(&s.Serial, &s.GridPurchase, &s.GridFeedin); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// ListHourly returns every hourly bucket in output order
func (db *DB) ListHourly() ([]models.HourlyBucket, error) {
	return db.queryHourly(`SELECT date, hour, grid_purchase, grid_feedin, is_peak_feed_in_hour FROM hourly_totals ORDER BY seq`)
}

// ListPeakHours returns only the buckets flagged as peak feed-in hours
func (db *DB) ListPeakHours() ([]models.HourlyBucket, error) {
	return db.queryHourly(`SELECT date, hour, grid_purchase, grid_feedin, is_peak_feed_in_hour FROM hourly_totals WHERE is_peak_feed_in_hour = 1 ORDER BY seq`)
}

func (db *DB) queryHourly(query string) ([]models.HourlyBucket, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying hourly totals: %w", err)
	}
	defer rows.Close()

	var results []models.HourlyBucket
	for rows.Next() {
		var b models.HourlyBucket
		var dateStr sql.NullString
		var hour sql.NullInt64

		if err := rows.Scan(&dateStr, &hour, &b.GridPurchase, &b.GridFeedin, &b.IsPeakFeedInHour); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		if dateStr.Valid && dateStr.String != "" {
			d, err := time.Parse(dateLayout, dateStr.String)
			if err != nil {
				return nil, fmt.Errorf("parsing date: %w", err)
			}
			b.Date = sql.Null[time.Time]{V: d, Valid: true}
		}
		if hour.Valid {
			b.Hour = sql.Null[int]{V: int(hour.Int64), Valid: true}
		}

		results = append(results, b)
	}
	return results, rows.Err()
}

// CountCleanRecords returns the number of stored clean records
func (db *DB) CountCleanRecords() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM clean_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting clean records: %w", err)
	}
	return n, nil
}

func nullTime(v sql.Null[time.Time], layout string) interface{} {
	if !v.Valid {
		return nil
	}
	return v.V.Format(layout)
}

func nullInt(v sql.Null[int]) interface{} {
	if !v.Valid {
		return nil
	}
	return int64(v.V)
}

func nullFloat(v sql.Null[float64]) interface{} {
	if !v.Valid {
		return nil
	}
	return v.V
}

func extraJSON(columns, values []string) (interface{}, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(values) {
			m[col] = values[i]
		}
	}
	data, err := json.Marshal(m, json.Deterministic(true))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
