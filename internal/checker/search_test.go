package checker

import (
	"context"
	"errors"
	"testing"

	"modcheck/internal/mods"
)

func TestSearch(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0", depB)}
	src.search = map[string][]mods.SearchCandidate{
		"alpha": {{ModID: "AAAA0001", Name: "Alpha", SearchTerm: "alpha", ImageURL: "https://img/a.png"}},
		"many": {
			{ModID: "BBBB0002", Name: "Many One", SearchTerm: "many"},
			{ModID: "CCCC0003", Name: "Many Two", SearchTerm: "many"},
		},
	}
	stubSleep(t, src)
	events, emit := collect()

	found, err := New(src, DefaultOptions()).Search(context.Background(), []string{" alpha ", "", "many", "nothing"}, emit)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("got %d mods want 1", len(found))
	}
	lk := found[0]
	if lk.ModID != "AAAA0001" || lk.Name != "Alpha" || lk.Version != "1.0.0" || !lk.Success {
		t.Fatalf("got %+v", lk)
	}
	if lk.ImageURL != "https://img/a.png" || len(lk.Dependencies) != 1 {
		t.Fatalf("got %+v", lk)
	}

	var progress, multiple int
	for _, e := range *events {
		switch ev := e.(type) {
		case *Progress:
			progress++
			if ev.Total != 3 {
				t.Fatalf("progress total %d want 3", ev.Total)
			}
		case *MultipleResults:
			multiple++
			if ev.SearchTerm != "many" || ev.TotalFound != 2 {
				t.Fatalf("got %+v", ev)
			}
		}
	}
	if progress != 3 || multiple != 1 {
		t.Fatalf("got %d progress %d multiple", progress, multiple)
	}
	last, ok := (*events)[len(*events)-1].(*SearchComplete)
	if !ok || len(last.Mods) != 1 {
		t.Fatalf("last event %+v", (*events)[len(*events)-1])
	}
	if src.calls["BBBB0002"] != 0 || src.calls["CCCC0003"] != 0 {
		t.Fatalf("ambiguous candidates were looked up")
	}
}

func TestSearchRequiresTerms(t *testing.T) {
	src := newFakeSource()
	_, err := New(src, DefaultOptions()).Search(context.Background(), []string{" ", ""}, nil)
	if !errors.Is(err, mods.ErrMalformedInput) {
		t.Fatalf("got %v want ErrMalformedInput", err)
	}
}

func TestSearchFailedTermContinues(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0")}
	src.search = map[string][]mods.SearchCandidate{
		"alpha": {{ModID: "AAAA0001", Name: "Alpha"}},
	}
	stubSleep(t, src)
	found, err := New(src, DefaultOptions()).Search(context.Background(), []string{"broken", "alpha"}, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ModID != "AAAA0001" {
		t.Fatalf("got %+v", found)
	}
}

func TestSearchKeepsUnresolvableCandidate(t *testing.T) {
	src := newFakeSource()
	src.search = map[string][]mods.SearchCandidate{
		"ghost": {{ModID: "TEMP-GHOST", Name: "Ghost", Unreliable: true}},
	}
	stubSleep(t, src)
	found, err := New(src, DefaultOptions()).Search(context.Background(), []string{"ghost"}, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	lk := found[0]
	if lk.Success || lk.Version != VersionUnknown || !lk.Unreliable || lk.Name != "Ghost" {
		t.Fatalf("got %+v", lk)
	}
}

func TestLookupChangelogFallback(t *testing.T) {
	tests := []struct {
		name      string
		changelog map[string]string
		want      string
	}{
		{"changelog version", map[string]string{"AAAA0001": "1.4.0"}, "1.4.0"},
		{"no changelog", nil, VersionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.pages = map[string][]fakePage{"AAAA0001": page("")}
			if tt.changelog != nil {
				src.changelog = tt.changelog
			}
			stubSleep(t, src)
			lk, err := New(src, DefaultOptions()).Lookup(context.Background(), "aaaa0001")
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if lk.Version != tt.want {
				t.Fatalf("got %q want %q", lk.Version, tt.want)
			}
			if lk.ModID != "AAAA0001" {
				t.Fatalf("got id %q", lk.ModID)
			}
		})
	}
}

func TestLookupNotFound(t *testing.T) {
	src := newFakeSource()
	stubSleep(t, src)
	_, err := New(src, DefaultOptions()).Lookup(context.Background(), "DEADBEEF")
	if !errors.Is(err, mods.ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}
