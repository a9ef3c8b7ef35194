package summary

import "modcheck/internal/mods"

// Summary represents aggregated status counts for one run.
type Summary struct {
	Total               int     `json:"total"`
	UpToDate            int     `json:"upToDate"`
	Outdated            int     `json:"outdated"`
	MissingDepsOnly     int     `json:"missingDepsOnly"`
	OutdatedMissingDeps int     `json:"outdatedMissingDeps"`
	Errors              int     `json:"errors"`
	TotalSizeMB         float64 `json:"totalSize"`
}

// Summarize counts every result exactly once. A status outside the known set
// is counted as an error so Total always equals the sum of the buckets.
func Summarize(results []mods.CheckResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case mods.StatusUpToDate:
			s.UpToDate++
		case mods.StatusOutdated:
			s.Outdated++
		case mods.StatusMissingDeps:
			s.MissingDepsOnly++
		case mods.StatusOutdatedMissingDeps:
			s.OutdatedMissingDeps++
		default:
			s.Errors++
		}
		s.TotalSizeMB += r.SizeMB
	}
	return s
}

// Problems is the number of results needing attention.
func (s Summary) Problems() int {
	return s.Outdated + s.MissingDepsOnly + s.OutdatedMissingDeps + s.Errors
}
