package reconcile

import (
	"golang.org/x/mod/semver"

	"modcheck/internal/mods"
)

// ChangeKind describes how a mod moved between two runs.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeRemoved   ChangeKind = "removed"
	ChangeChanged   ChangeKind = "changed"
	ChangeUnchanged ChangeKind = "unchanged"
)

// Direction values for a catalog version move.
const (
	DirectionNewer = "newer"
	DirectionOlder = "older"
)

// Change is the difference for one mod between a previous and a current run.
type Change struct {
	ModID           string      `json:"modId"`
	Name            string      `json:"name"`
	Kind            ChangeKind  `json:"kind"`
	PreviousStatus  mods.Status `json:"previousStatus,omitempty"`
	Status          mods.Status `json:"status,omitempty"`
	PreviousVersion string      `json:"previousVersion,omitempty"`
	CurrentVersion  string      `json:"currentVersion,omitempty"`
	Direction       string      `json:"direction,omitempty"`
}

// Compare matches results by normalized id. Current results come first in
// their order, followed by mods only present in prev.
func Compare(prev, cur []mods.CheckResult) []Change {
	before := make(map[string]mods.CheckResult, len(prev))
	for _, r := range prev {
		before[mods.NormalizeID(r.ModID)] = r
	}
	seen := make(map[string]bool, len(cur))
	changes := make([]Change, 0, len(cur))
	for _, r := range cur {
		key := mods.NormalizeID(r.ModID)
		if seen[key] {
			continue
		}
		seen[key] = true
		c := Change{ModID: r.ModID, Name: r.Name, Status: r.Status, CurrentVersion: r.CurrentVersion}
		p, ok := before[key]
		if !ok {
			c.Kind = ChangeAdded
			changes = append(changes, c)
			continue
		}
		c.PreviousStatus = p.Status
		c.PreviousVersion = p.CurrentVersion
		if p.Status == r.Status && p.CurrentVersion == r.CurrentVersion {
			c.Kind = ChangeUnchanged
		} else {
			c.Kind = ChangeChanged
			c.Direction = Direction(p.CurrentVersion, r.CurrentVersion)
		}
		changes = append(changes, c)
	}
	for _, p := range prev {
		key := mods.NormalizeID(p.ModID)
		if seen[key] {
			continue
		}
		seen[key] = true
		changes = append(changes, Change{
			ModID:           p.ModID,
			Name:            p.Name,
			Kind:            ChangeRemoved,
			PreviousStatus:  p.Status,
			PreviousVersion: p.CurrentVersion,
		})
	}
	return changes
}

// Changed returns the changes that are not ChangeUnchanged.
func Changed(changes []Change) []Change {
	var out []Change
	for _, c := range changes {
		if c.Kind != ChangeUnchanged {
			out = append(out, c)
		}
	}
	return out
}

// Direction orders two catalog versions when both are valid semantic
// versions. Four-part versions and sentinels yield "".
func Direction(from, to string) string {
	a, b := "v"+from, "v"+to
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return ""
	}
	switch semver.Compare(a, b) {
	case -1:
		return DirectionNewer
	case 1:
		return DirectionOlder
	}
	return ""
}
