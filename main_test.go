package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestResolveDBPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.db")
	if err := os.WriteFile(file, []byte{}, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"directory", dir, filepath.Join(dir, "modcheck.db")},
		{"file", file, file},
		{"nonexistent", filepath.Join(dir, "no.db"), filepath.Join(dir, "no.db")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDBPath(tt.input)
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestEnsureFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "new.db")
	if err := ensureFile(p); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if err := ensureFile(p); err != nil {
		t.Fatalf("ensure existing: %v", err)
	}
	if err := ensureFile(dir); err == nil {
		t.Fatalf("expected error for directory")
	}
}

func TestOpenDB(t *testing.T) {
	db, err := openDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	for _, table := range []string{"runs", "results", "watchlists", "schema_migrations"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatalf("query: %v", err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestWithShutdown(t *testing.T) {
	var flag atomic.Bool
	h := withShutdown(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), &flag)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d want 204", rr.Code)
	}
	flag.Store(true)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d want 503", rr.Code)
	}
}
