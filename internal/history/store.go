// Package history provides persistent snapshot storage using SQLite.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/ppiankov/policydeck/internal/policy"
)

// SnapshotSummary is a compact representation of a historical snapshot.
type SnapshotSummary struct {
	At                time.Time `json:"at"`
	FetchErr          string    `json:"fetchError,omitempty"`
	ID                int64     `json:"id"`
	PolicyCount       int       `json:"policyCount"`
	HighRiskCount     int       `json:"highRiskCount"`
	UnidentifiedCount int       `json:"unidentifiedCount"`
	FetchOK           bool      `json:"fetchOk"`
}

// TrendPoint is one observation of an app's policy over time.
type TrendPoint struct {
	At     time.Time `json:"at"`
	Badge  string    `json:"badge"`
	Action string    `json:"action"`
	Port   int       `json:"port"`
}

// Store persists snapshots and policies to SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a snapshot and its policies to the database.
func (s *Store) Save(snap policy.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // commit below; rollback is no-op after commit

	var highRisk, unidentified int
	for i := range snap.Policies {
		switch policy.Classify(snap.Policies[i]) {
		case policy.BadgeHighRisk:
			highRisk++
		case policy.BadgeUnidentified:
			unidentified++
		}
	}

	result, err := tx.Exec(
		"INSERT INTO snapshots (at, policy_count, high_risk_count, unidentified_count, fetch_ok, fetch_err) VALUES (?, ?, ?, ?, ?, ?)",
		snap.At, len(snap.Policies), highRisk, unidentified, snap.FetchErr == "", snap.FetchErr,
	)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	snapID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO policies (snapshot_id, policy_id, app_name, protocol, port, action, badge) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing policy insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement lifetime bounded by tx

	for i := range snap.Policies {
		p := &snap.Policies[i]
		_, err := stmt.Exec(snapID, p.ID, p.AppName, p.Protocol, p.Port, p.Action, string(policy.Classify(*p)))
		if err != nil {
			return fmt.Errorf("inserting policy: %w", err)
		}
	}

	return tx.Commit()
}

// List returns the most recent snapshot summaries, ordered newest first.
func (s *Store) List(limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		"SELECT id, at, policy_count, high_risk_count, unidentified_count, fetch_ok, fetch_err FROM snapshots ORDER BY at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var summaries []SnapshotSummary
	for rows.Next() {
		var sum SnapshotSummary
		if err := rows.Scan(&sum.ID, &sum.At, &sum.PolicyCount, &sum.HighRiskCount, &sum.UnidentifiedCount, &sum.FetchOK, &sum.FetchErr); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Trend returns the badge observations for one app over time, newest first.
func (s *Store) Trend(appName string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT s.at, p.badge, p.action, p.port
		FROM policies p
		JOIN snapshots s ON s.id = p.snapshot_id
		WHERE p.app_name = ?
		ORDER BY s.at DESC
		LIMIT ?`,
		appName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trend: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.At, &p.Badge, &p.Action, &p.Port); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// GetLatest returns the most recent snapshot with its policies, or nil if
// no snapshots exist.
func (s *Store) GetLatest() (*policy.Snapshot, error) {
	var snapID int64
	var at time.Time
	var fetchErr string
	err := s.db.QueryRow("SELECT id, at, fetch_err FROM snapshots ORDER BY at DESC LIMIT 1").Scan(&snapID, &at, &fetchErr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT policy_id, app_name, protocol, port, action FROM policies WHERE snapshot_id = ?",
		snapID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying policies: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	snap := &policy.Snapshot{At: at, FetchErr: fetchErr}
	for rows.Next() {
		var p policy.Record
		if err := rows.Scan(&p.ID, &p.AppName, &p.Protocol, &p.Port, &p.Action); err != nil {
			return nil, fmt.Errorf("scanning policy: %w", err)
		}
		snap.Policies = append(snap.Policies, p)
	}
	return snap, rows.Err()
}
