package source

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"modcheck/internal/mods"
)

//go:embed mockdata/mods.json
var mockData []byte

type mockEntry struct {
	ModID        string               `json:"modId"`
	Name         string               `json:"name"`
	Version      string               `json:"version"`
	SizeMB       float64              `json:"size"`
	Dependencies []mods.DependencyRef `json:"dependencies"`
}

// Mock serves a fixed dataset without touching the network.
type Mock struct {
	entries []mockEntry
	byID    map[string]mockEntry
}

// NewMock loads the embedded dataset.
func NewMock() (*Mock, error) {
	return newMock(mockData)
}

func newMock(data []byte) (*Mock, error) {
	var entries []mockEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode mock data: %w", err)
	}
	m := &Mock{entries: entries, byID: make(map[string]mockEntry, len(entries))}
	for _, e := range entries {
		m.byID[mods.NormalizeID(e.ModID)] = e
	}
	return m, nil
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) ModPage(ctx context.Context, modID string) (mods.PageData, error) {
	e, ok := m.byID[mods.NormalizeID(modID)]
	if !ok {
		return mods.PageData{}, fmt.Errorf("%s: %w", modID, mods.ErrNotFound)
	}
	deps := append([]mods.DependencyRef{}, e.Dependencies...)
	return mods.PageData{Version: e.Version, SizeMB: e.SizeMB, Dependencies: deps}, nil
}

func (m *Mock) ChangelogVersion(ctx context.Context, modID string) (string, error) {
	e, ok := m.byID[mods.NormalizeID(modID)]
	if !ok {
		return "", fmt.Errorf("%s: %w", modID, mods.ErrNotFound)
	}
	return e.Version, nil
}

// Search matches term against mod names, ignoring case.
func (m *Mock) Search(ctx context.Context, term string) ([]mods.SearchCandidate, error) {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := []mods.SearchCandidate{}
	for _, e := range m.entries {
		if needle == "" || !strings.Contains(strings.ToLower(e.Name), needle) {
			continue
		}
		out = append(out, mods.SearchCandidate{ModID: e.ModID, Name: e.Name, SearchTerm: term, Strategy: "mock"})
	}
	return out, nil
}
