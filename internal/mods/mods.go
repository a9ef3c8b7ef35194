package mods

import (
	"errors"
	"strings"
)

// ErrNotFound reports a mod the catalog does not know. It is permanent and
// never worth retrying.
var ErrNotFound = errors.New("mod not found")

// Status classifies a checked mod.
type Status string

const (
	StatusUpToDate            Status = "up-to-date"
	StatusOutdated            Status = "outdated"
	StatusMissingDeps         Status = "missing-deps"
	StatusOutdatedMissingDeps Status = "outdated-missing-deps"
	StatusError               Status = "error"
)

// Sentinel values reported as the catalog version when none could be read.
const (
	VersionNotFound = "VERSION_NOT_FOUND"
	VersionError    = "ERROR"
)

// ModRef is one entry of a user's mod list. Version is the declared version.
type ModRef struct {
	ModID   string `json:"modId" validate:"required,hexadecimal"`
	Name    string `json:"name" validate:"max=200"`
	Version string `json:"version" validate:"max=64"`
}

// Key returns the normalized catalog id.
func (m ModRef) Key() string { return NormalizeID(m.ModID) }

// DependencyRef is a dependency listed on a catalog page.
type DependencyRef struct {
	ModID string `json:"modId"`
	Name  string `json:"name"`
}

// PageData is what the extractor recovers from one detail page.
// An empty Version means no version was found. SizeMB is 0 both when the
// size is absent and when the page reports zero.
type PageData struct {
	Version      string          `json:"version,omitempty"`
	SizeMB       float64         `json:"size"`
	Dependencies []DependencyRef `json:"dependencies"`
}

// HasVersion reports whether a catalog version was extracted.
func (p PageData) HasVersion() bool { return p.Version != "" }

// DependencyCheck partitions a page's dependencies by presence in the user's list.
type DependencyCheck struct {
	Found      []DependencyRef `json:"found"`
	Missing    []DependencyRef `json:"missing"`
	HasMissing bool            `json:"hasMissing"`
}

// CheckResult is the reconciled outcome for one mod.
type CheckResult struct {
	ModID           string          `json:"modId"`
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	CurrentVersion  string          `json:"currentVersion"`
	Status          Status          `json:"status"`
	Message         string          `json:"message"`
	Dependencies    []DependencyRef `json:"dependencies"`
	DependencyCheck DependencyCheck `json:"dependencyCheck"`
	SizeMB          float64         `json:"size"`
	Attempts        int             `json:"attempts,omitempty"`
}

// Ref returns the ModRef the result was produced for.
func (r CheckResult) Ref() ModRef {
	return ModRef{ModID: r.ModID, Name: r.Name, Version: r.Version}
}

// SearchCandidate is one mod discovered on a search listing.
// Unreliable marks ids synthesized from the mod name rather than read from the page.
type SearchCandidate struct {
	ModID      string `json:"modId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	SearchTerm string `json:"searchTerm,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Unreliable bool   `json:"unreliable,omitempty"`
}

// NormalizeID returns the canonical form of a catalog id. Ids compare case-insensitively.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
