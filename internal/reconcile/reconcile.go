// Package reconcile compares extracted catalog data with a user's mod list.
package reconcile

import (
	"fmt"
	"strings"

	"modcheck/internal/mods"
)

// IDSet is the set of normalized mod ids declared by the user.
type IDSet map[string]struct{}

// NewIDSet builds the set from a mod list.
func NewIDSet(list []mods.ModRef) IDSet {
	s := make(IDSet, len(list))
	for _, m := range list {
		s[m.Key()] = struct{}{}
	}
	return s
}

// Has reports whether id is declared, ignoring case.
func (s IDSet) Has(id string) bool {
	_, ok := s[mods.NormalizeID(id)]
	return ok
}

// CheckDependencies partitions deps into those declared and those missing.
// Found and Missing are never nil and preserve the order of deps.
func CheckDependencies(deps []mods.DependencyRef, declared IDSet) mods.DependencyCheck {
	check := mods.DependencyCheck{
		Found:   []mods.DependencyRef{},
		Missing: []mods.DependencyRef{},
	}
	for _, d := range deps {
		if declared.Has(d.ModID) {
			check.Found = append(check.Found, d)
		} else {
			check.Missing = append(check.Missing, d)
		}
	}
	check.HasMissing = len(check.Missing) > 0
	return check
}

// Verdict is the classification of one page against one declared entry.
type Verdict struct {
	Status          mods.Status
	Message         string
	DependencyCheck mods.DependencyCheck
}

// Classify derives the status of a mod. Versions are compared as literal
// strings: "1.0" and "1.0.0" differ.
func Classify(page mods.PageData, declaredVersion string, declared IDSet) Verdict {
	check := CheckDependencies(page.Dependencies, declared)
	if !page.HasVersion() {
		return Verdict{
			Status:          mods.StatusError,
			Message:         "Unable to find version on page",
			DependencyCheck: check,
		}
	}
	v := Verdict{DependencyCheck: check}
	if page.Version == declaredVersion {
		v.Status = mods.StatusUpToDate
		v.Message = "Up to date"
	} else {
		v.Status = mods.StatusOutdated
		v.Message = fmt.Sprintf("Version mismatch: %s -> %s", declaredVersion, page.Version)
	}
	if check.HasMissing {
		if v.Status == mods.StatusUpToDate {
			v.Status = mods.StatusMissingDeps
		} else {
			v.Status = mods.StatusOutdatedMissingDeps
		}
		v.Message += " | Missing dependencies: " + names(check.Missing)
	}
	return v
}

// Check builds the full result for a successfully fetched page.
func Check(mod mods.ModRef, page mods.PageData, declared IDSet) mods.CheckResult {
	v := Classify(page, mod.Version, declared)
	current := page.Version
	if !page.HasVersion() {
		current = mods.VersionNotFound
	}
	deps := page.Dependencies
	if deps == nil {
		deps = []mods.DependencyRef{}
	}
	return mods.CheckResult{
		ModID:           mod.ModID,
		Name:            mod.Name,
		Version:         mod.Version,
		CurrentVersion:  current,
		Status:          v.Status,
		Message:         v.Message,
		Dependencies:    deps,
		DependencyCheck: v.DependencyCheck,
		SizeMB:          page.SizeMB,
	}
}

// Failed builds the result for a mod whose page could not be fetched.
func Failed(mod mods.ModRef, err error, attempts int) mods.CheckResult {
	return mods.CheckResult{
		ModID:          mod.ModID,
		Name:           mod.Name,
		Version:        mod.Version,
		CurrentVersion: mods.VersionError,
		Status:         mods.StatusError,
		Message:        "Error: " + err.Error(),
		Dependencies:   []mods.DependencyRef{},
		DependencyCheck: mods.DependencyCheck{
			Found:   []mods.DependencyRef{},
			Missing: []mods.DependencyRef{},
		},
		Attempts: attempts,
	}
}

func names(deps []mods.DependencyRef) string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Name
	}
	return strings.Join(out, ", ")
}
