// Package store persists check runs and watchlists in sqlite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"modcheck/internal/checker"
	"modcheck/internal/mods"
	"modcheck/internal/summary"
)

// Run is a persisted batch. Results is only filled by GetRun.
type Run struct {
	ID          string             `json:"id"`
	WatchlistID int64              `json:"watchlistId,omitempty"`
	Source      string             `json:"source"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
	Summary     summary.Summary    `json:"summary"`
	Results     []mods.CheckResult `json:"results,omitempty"`
}

// FromReport converts a finished batch into a Run.
func FromReport(rep *checker.Report, watchlistID int64) *Run {
	return &Run{
		ID:          rep.ID,
		WatchlistID: watchlistID,
		Source:      rep.Source,
		StartedAt:   rep.StartedAt,
		FinishedAt:  rep.FinishedAt,
		Summary:     rep.Summary,
		Results:     rep.Results,
	}
}

// Watchlist is a named mod list checked on a schedule.
type Watchlist struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name" validate:"required,max=100"`
	Mods          []mods.ModRef `json:"mods" validate:"required,min=1,dive"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastCheckedAt *time.Time    `json:"lastCheckedAt,omitempty"`
}

// Init ensures the tables exist and carry every required column.
func Init(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
       id TEXT PRIMARY KEY,
       watchlist_id INTEGER,
       source TEXT,
       started_at TEXT NOT NULL,
       finished_at TEXT,
       summary TEXT
   )`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS results (
       id INTEGER PRIMARY KEY AUTOINCREMENT,
       run_id TEXT NOT NULL,
       position INTEGER NOT NULL,
       mod_id TEXT NOT NULL,
       name TEXT,
       version TEXT,
       current_version TEXT,
       status TEXT,
       message TEXT,
       size REAL,
       dependencies TEXT,
       dependency_check TEXT,
       attempts INTEGER
   )`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS watchlists (
       id INTEGER PRIMARY KEY AUTOINCREMENT,
       name TEXT NOT NULL,
       mods TEXT NOT NULL,
       created_at TEXT NOT NULL,
       last_checked_at TEXT
   )`)
	if err != nil {
		return err
	}

	// Databases created by earlier releases lack these columns.
	if err := addColumns(db, "runs", map[string]string{
		"watchlist_id": "INTEGER",
		"source":       "TEXT",
	}); err != nil {
		return err
	}
	return addColumns(db, "results", map[string]string{
		"size":     "REAL",
		"attempts": "INTEGER",
	})
}

func addColumns(db *sql.DB, table string, columns map[string]string) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return err
		}
		existing[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for col, typ := range columns {
		if _, ok := existing[col]; ok {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, col, typ)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", table, col, err)
		}
	}
	return nil
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// InsertRun stores a run and its results in one transaction.
func InsertRun(db *sql.DB, run *Run) error {
	sum, err := json.Marshal(run.Summary)
	if err != nil {
		return err
	}
	return inTx(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO runs(id, watchlist_id, source, started_at, finished_at, summary) VALUES(?,?,?,?,?,?)`,
			run.ID, nullID(run.WatchlistID), run.Source, formatTime(run.StartedAt), formatTime(run.FinishedAt), string(sum)); err != nil {
			return err
		}
		stmt, err := tx.Prepare(`INSERT INTO results(run_id, position, mod_id, name, version, current_version, status, message, size, dependencies, dependency_check, attempts) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, r := range run.Results {
			deps, err := json.Marshal(r.Dependencies)
			if err != nil {
				return err
			}
			check, err := json.Marshal(r.DependencyCheck)
			if err != nil {
				return err
			}
			if _, err := stmt.Exec(run.ID, i, r.ModID, r.Name, r.Version, r.CurrentVersion, string(r.Status), r.Message, r.SizeMB, string(deps), string(check), r.Attempts); err != nil {
				return fmt.Errorf("insert result %s: %w", r.ModID, err)
			}
		}
		return nil
	})
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

const runColumns = `id, IFNULL(watchlist_id, 0), IFNULL(source, ''), started_at, IFNULL(finished_at, ''), IFNULL(summary, '{}')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r                 Run
		started, finished string
		sum               string
	)
	if err := s.Scan(&r.ID, &r.WatchlistID, &r.Source, &started, &finished, &sum); err != nil {
		return nil, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if finished != "" {
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(sum), &r.Summary); err != nil {
		return nil, fmt.Errorf("run %s summary: %w", r.ID, err)
	}
	return &r, nil
}

func queryRuns(db *sql.DB, query string, args ...any) ([]Run, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its results, or sql.ErrNoRows.
func GetRun(db *sql.DB, id string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	if r.Results, err = RunResults(db, id); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first, without results.
func ListRuns(db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	return queryRuns(db, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
}

// LatestRun returns the newest run of a watchlist, or sql.ErrNoRows.
func LatestRun(db *sql.DB, watchlistID int64) (*Run, error) {
	return scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE watchlist_id=? ORDER BY started_at DESC LIMIT 1`, watchlistID))
}

// PreviousRun returns the run of the same watchlist started just before run,
// or sql.ErrNoRows. Runs outside a watchlist have no predecessor.
func PreviousRun(db *sql.DB, run *Run) (*Run, error) {
	if run.WatchlistID == 0 {
		return nil, sql.ErrNoRows
	}
	return scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE watchlist_id=? AND started_at < ? ORDER BY started_at DESC LIMIT 1`,
		run.WatchlistID, formatTime(run.StartedAt)))
}

// RunResults returns the results of a run in submission order.
func RunResults(db *sql.DB, runID string) ([]mods.CheckResult, error) {
	rows, err := db.Query(`SELECT mod_id, IFNULL(name, ''), IFNULL(version, ''), IFNULL(current_version, ''), IFNULL(status, ''), IFNULL(message, ''), IFNULL(size, 0), IFNULL(dependencies, '[]'), IFNULL(dependency_check, '{}'), IFNULL(attempts, 0) FROM results WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []mods.CheckResult{}
	for rows.Next() {
		var (
			r           mods.CheckResult
			status      string
			deps, check string
		)
		if err := rows.Scan(&r.ModID, &r.Name, &r.Version, &r.CurrentVersion, &status, &r.Message, &r.SizeMB, &deps, &check, &r.Attempts); err != nil {
			return nil, err
		}
		r.Status = mods.Status(status)
		if err := json.Unmarshal([]byte(deps), &r.Dependencies); err != nil {
			return nil, fmt.Errorf("result %s dependencies: %w", r.ModID, err)
		}
		if err := json.Unmarshal([]byte(check), &r.DependencyCheck); err != nil {
			return nil, fmt.Errorf("result %s dependency check: %w", r.ModID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
