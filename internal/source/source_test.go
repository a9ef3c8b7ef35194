package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"modcheck/internal/config"
	"modcheck/internal/mods"
	"modcheck/internal/workshop"
)

const detailPage = `<html><body>
<section><dl><dt>Version</dt><dd>1.3.2</dd><dt>Version size</dt><dd>512 KB</dd></dl></section>
<section><h2>Dependencies</h2><a href="/workshop/64CEC8E005828E5D-MEI">Middle East Insurgents</a></section>
</body></html>`

const changelogPage = `<html><body><h1>Changelog</h1><h2>v1.4.0</h2><p>fixes</p><h2>1.3.2</h2></body></html>`

const searchPage = `<html><body>
<a href="/workshop/60C4CE4888FF4621-ACECore">ACE Core</a>
<a href="/workshop/5DBD560C5148E1DA-ACEMedical">ACE Medical</a>
</body></html>`

func newLive(t *testing.T) *Live {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/workshop/60C4CE4888FF4621":
			fmt.Fprint(w, detailPage)
		case r.URL.Path == "/workshop/60C4CE4888FF4621/changelog":
			fmt.Fprint(w, changelogPage)
		case r.URL.Path == "/workshop" && r.URL.Query().Get("search") == "ace":
			fmt.Fprint(w, searchPage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	client, err := workshop.NewClient(workshop.Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewLive(client)
}

func TestLiveModPage(t *testing.T) {
	l := newLive(t)
	page, err := l.ModPage(context.Background(), "60C4CE4888FF4621")
	if err != nil {
		t.Fatalf("mod page: %v", err)
	}
	if page.Version != "1.3.2" || page.SizeMB != 0.5 {
		t.Fatalf("got %+v", page)
	}
	if len(page.Dependencies) != 1 || page.Dependencies[0].ModID != "64CEC8E005828E5D" {
		t.Fatalf("got deps %+v", page.Dependencies)
	}
}

func TestLiveModPageStatusError(t *testing.T) {
	l := newLive(t)
	_, err := l.ModPage(context.Background(), "DEADBEEF")
	var se *workshop.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Fatalf("got %v want 404 StatusError", err)
	}
}

func TestLiveChangelogVersion(t *testing.T) {
	l := newLive(t)
	v, err := l.ChangelogVersion(context.Background(), "60C4CE4888FF4621")
	if err != nil {
		t.Fatalf("changelog: %v", err)
	}
	if v != "1.4.0" {
		t.Fatalf("got %q want 1.4.0", v)
	}
}

func TestLiveSearch(t *testing.T) {
	l := newLive(t)
	cands, err := l.Search(context.Background(), "ace")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("got %d candidates want 2: %+v", len(cands), cands)
	}
	if cands[0].ModID != "60C4CE4888FF4621" || cands[0].Name != "ACE Core" {
		t.Fatalf("got %+v", cands[0])
	}
}

func TestMock(t *testing.T) {
	m, err := NewMock()
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	page, err := m.ModPage(context.Background(), "65933c74b33c5b63")
	if err != nil {
		t.Fatalf("mod page: %v", err)
	}
	if page.Version != "1.0.2" || page.SizeMB != 0.04095703125 || len(page.Dependencies) != 1 {
		t.Fatalf("got %+v", page)
	}
	if _, err := m.ModPage(context.Background(), "DEADBEEF"); !errors.Is(err, mods.ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
	cands, _ := m.Search(context.Background(), "ace")
	if len(cands) != 1 || cands[0].ModID != "60C4CE4888FF4621" {
		t.Fatalf("got %+v", cands)
	}
	if v, _ := m.ChangelogVersion(context.Background(), "60C4CE4888FF4621"); v != "1.3.2" {
		t.Fatalf("got %q want 1.3.2", v)
	}
}

func TestMockRejectsBadData(t *testing.T) {
	if _, err := newMock([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewSelectsSource(t *testing.T) {
	client, err := workshop.NewClient(workshop.Options{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	cfg := config.Default()
	src, err := New(cfg, client)
	if err != nil || src.Name() != "live" {
		t.Fatalf("got %v %v want live", src, err)
	}
	cfg.UseMockData = true
	src, err = New(cfg, client)
	if err != nil || src.Name() != "mock" {
		t.Fatalf("got %v %v want mock", src, err)
	}
}
