package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jgoulah/energytracker/pkg/models"
	_ "modernc.org/sqlite"
)

// Frame wraps a private in-memory database holding one run's usage records
type Frame struct {
	conn *sql.DB
}

// Aggregate is one grouped row before cost and tip are derived
type Aggregate struct {
	DeviceType string
	PowerWatt  float64
	HoursOn    int
}

// New creates an empty in-memory frame and initializes the schema
func New(ctx context.Context) (*Frame, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every new connection to :memory: is a fresh database
	conn.SetMaxOpenConns(1)

	f := &Frame{conn: conn}
	if err := f.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return f, nil
}

// Close closes the database connection, discarding the frame
func (f *Frame) Close() error {
	return f.conn.Close()
}

// initSchema creates the necessary tables
func (f *Frame) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		device_type TEXT,
		power_watt REAL,
		status TEXT
	);
	CREATE INDEX idx_usage_status ON usage_records(status);
	CREATE INDEX idx_usage_device_type ON usage_records(device_type);
	`

	_, err := f.conn.ExecContext(ctx, schema)
	return err
}

// InsertRecords loads records into the frame in a single transaction.
// Empty device types and missing power values are stored as NULL.
func (f *Frame) InsertRecords(ctx context.Context, records []models.UsageRecord) error {
	tx, err := f.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO usage_records (device_type, power_watt, status)
	VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		deviceType := sql.NullString{String: r.DeviceType, Valid: r.DeviceType != ""}
		power := sql.NullFloat64{Float64: r.PowerWatt, Valid: r.HasPower}
		status := sql.NullString{String: r.Status, Valid: r.Status != ""}

		if _, err := stmt.ExecContext(ctx, deviceType, power, status); err != nil {
			return fmt.Errorf("inserting usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// CountByStatus returns the number of records with exactly the given status
func (f *Frame) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := f.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE status = ?`, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// AggregateByDevice groups the records with the given status by device type.
// Power is summed (missing values count as zero) and, separately, rows are
// counted; the two groupings are joined on device type. Rows without a device
// type are not grouped. Results are ordered by device type.
func (f *Frame) AggregateByDevice(ctx context.Context, status string) ([]Aggregate, error) {
	query := `
	WITH active AS (
		SELECT device_type, power_watt
		FROM usage_records
		WHERE status = ? AND device_type IS NOT NULL
	),
	usage AS (
		SELECT device_type, TOTAL(power_watt) AS power_watt
		FROM active
		GROUP BY device_type
	),
	counts AS (
		SELECT device_type, COUNT(*) AS hours_on
		FROM active
		GROUP BY device_type
	)
	SELECT usage.device_type, usage.power_watt, counts.hours_on
	FROM usage
	JOIN counts ON counts.device_type = usage.device_type
	ORDER BY usage.device_type
	`

	rows, err := f.conn.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("querying aggregates: %w", err)
	}
	defer rows.Close()

	var results []Aggregate
	for rows.Next() {
		var a Aggregate
		if err := rows.Scan(&a.DeviceType, &a.PowerWatt, &a.HoursOn); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, a)
	}

	return results, rows.Err()
}
