package checker

import (
	"time"

	"modcheck/internal/mods"
	"modcheck/internal/summary"
)

// EventType tags every streamed event.
type EventType string

const (
	EventProgress        EventType = "progress"
	EventComplete        EventType = "complete"
	EventMultipleResults EventType = "multiple_results"
)

// Event is one record of a run's event stream.
type Event interface {
	Kind() EventType
}

// Progress is emitted before an item is processed.
type Progress struct {
	Type       EventType `json:"type"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	ModName    string    `json:"modName,omitempty"`
	SearchTerm string    `json:"searchTerm,omitempty"`
}

func (*Progress) Kind() EventType { return EventProgress }

// Complete terminates a batch check.
type Complete struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"runId"`
	Timestamp time.Time          `json:"timestamp"`
	Summary   summary.Summary    `json:"summary"`
	Results   []mods.CheckResult `json:"results"`
}

func (*Complete) Kind() EventType { return EventComplete }

// MultipleResults reports a search term matching more than one mod.
// None of the candidates is added to the search result.
type MultipleResults struct {
	Type       EventType              `json:"type"`
	SearchTerm string                 `json:"searchTerm"`
	Results    []mods.SearchCandidate `json:"results"`
	TotalFound int                    `json:"totalFound"`
}

func (*MultipleResults) Kind() EventType { return EventMultipleResults }

// SearchComplete terminates a search batch.
type SearchComplete struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Mods      []Lookup  `json:"mods"`
}

func (*SearchComplete) Kind() EventType { return EventComplete }

// Emit receives events in order. It must not block for long; the run waits on it.
type Emit func(Event)

func discard(Event) {}
