package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// InsertWatchlist stores w and sets its ID and CreatedAt.
func InsertWatchlist(db *sql.DB, w *Watchlist) error {
	list, err := json.Marshal(w.Mods)
	if err != nil {
		return err
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	res, err := db.Exec(`INSERT INTO watchlists(name, mods, created_at) VALUES(?,?,?)`, w.Name, string(list), formatTime(w.CreatedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err == nil {
		w.ID = id
	}
	return nil
}

const watchlistColumns = `id, name, mods, created_at, IFNULL(last_checked_at, '')`

func scanWatchlist(s scanner) (*Watchlist, error) {
	var (
		w                Watchlist
		list             string
		created, checked string
	)
	if err := s.Scan(&w.ID, &w.Name, &list, &created, &checked); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(list), &w.Mods); err != nil {
		return nil, fmt.Errorf("watchlist %d mods: %w", w.ID, err)
	}
	var err error
	if w.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("watchlist %d: %w", w.ID, err)
	}
	if checked != "" {
		t, err := parseTime(checked)
		if err != nil {
			return nil, fmt.Errorf("watchlist %d: %w", w.ID, err)
		}
		w.LastCheckedAt = &t
	}
	return &w, nil
}

// GetWatchlist returns a watchlist by ID, or sql.ErrNoRows.
func GetWatchlist(db *sql.DB, id int64) (*Watchlist, error) {
	return scanWatchlist(db.QueryRow(`SELECT `+watchlistColumns+` FROM watchlists WHERE id=?`, id))
}

// ListWatchlists returns every watchlist ordered by ID.
func ListWatchlists(db *sql.DB) ([]Watchlist, error) {
	rows, err := db.Query(`SELECT ` + watchlistColumns + ` FROM watchlists ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Watchlist{}
	for rows.Next() {
		w, err := scanWatchlist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// DeleteWatchlist removes a watchlist. Its runs are kept.
func DeleteWatchlist(db *sql.DB, id int64) error {
	res, err := db.Exec(`DELETE FROM watchlists WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkWatchlistChecked records when a watchlist was last checked.
func MarkWatchlistChecked(db *sql.DB, id int64, at time.Time) error {
	_, err := db.Exec(`UPDATE watchlists SET last_checked_at=? WHERE id=?`, formatTime(at), id)
	return err
}
