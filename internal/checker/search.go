package checker

import (
	"context"
	"strconv"
	"strings"

	"modcheck/internal/mods"
	"modcheck/internal/telemetry"
)

// VersionUnknown is reported by lookups that found no version anywhere.
const VersionUnknown = "Unknown"

// Lookup is the metadata of a single mod resolved by id or search.
type Lookup struct {
	ModID        string               `json:"modId"`
	Name         string               `json:"name,omitempty"`
	Version      string               `json:"version"`
	Dependencies []mods.DependencyRef `json:"dependencies"`
	SizeMB       float64              `json:"size"`
	ImageURL     string               `json:"imageUrl,omitempty"`
	SearchTerm   string               `json:"searchTerm,omitempty"`
	Unreliable   bool                 `json:"unreliable,omitempty"`
	Success      bool                 `json:"success"`
}

// Lookup fetches one mod's page. When the page shows no version the
// changelog is consulted; failing both the version is VersionUnknown.
func (r *Runner) Lookup(ctx context.Context, modID string) (*Lookup, error) {
	modID = mods.NormalizeID(modID)
	page, _, err := retry(ctx, r.opts, func(ctx context.Context) (mods.PageData, error) {
		return r.src.ModPage(ctx, modID)
	})
	if err != nil {
		return nil, err
	}
	lk := &Lookup{
		ModID:        modID,
		Version:      page.Version,
		Dependencies: page.Dependencies,
		SizeMB:       page.SizeMB,
		Success:      true,
	}
	if lk.Dependencies == nil {
		lk.Dependencies = []mods.DependencyRef{}
	}
	if !page.HasVersion() {
		lk.Version = VersionUnknown
		if v, err := r.src.ChangelogVersion(context.WithoutCancel(ctx), modID); err == nil && v != "" {
			lk.Version = v
		}
	}
	return lk, nil
}

// Search resolves free-text terms to mods. A term matching exactly one mod
// is looked up and added to the result; a term matching several emits a
// MultipleResults event instead. Terms are processed sequentially with the
// same retry and pacing rules as a batch check.
func (r *Runner) Search(ctx context.Context, terms []string, emit Emit) ([]Lookup, error) {
	if emit == nil {
		emit = discard
	}
	var clean []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, &mods.InputError{Reason: "no search terms"}
	}
	found := []Lookup{}
	for i, term := range clean {
		if err := ctx.Err(); err != nil {
			return found, canceled(i, len(clean), err)
		}
		emit(&Progress{Type: EventProgress, Current: i + 1, Total: len(clean), SearchTerm: term})

		cands, _, err := retry(ctx, r.opts, func(ctx context.Context) ([]mods.SearchCandidate, error) {
			return r.src.Search(ctx, term)
		})
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return found, canceled(i, len(clean), ctx.Err())
			}
			telemetry.EventCtx(ctx, "search_failed", map[string]string{"term": term, "error": err.Error()})
		case len(cands) == 1:
			found = append(found, r.resolve(ctx, cands[0]))
		case len(cands) > 1:
			emit(&MultipleResults{Type: EventMultipleResults, SearchTerm: term, Results: cands, TotalFound: len(cands)})
		default:
			telemetry.EventCtx(ctx, "search_empty", map[string]string{"term": term})
		}

		if i < len(clean)-1 {
			if err := sleep(ctx, r.opts.PacingDelay); err != nil {
				return found, canceled(i+1, len(clean), err)
			}
		}
	}
	emit(&SearchComplete{Type: EventComplete, Timestamp: now().UTC(), Mods: found})
	return found, nil
}

// resolve confirms a search candidate with a lookup. Candidates whose page
// cannot be read are kept with an unknown version so the caller still sees
// what the listing offered.
func (r *Runner) resolve(ctx context.Context, c mods.SearchCandidate) Lookup {
	lk, err := r.Lookup(ctx, c.ModID)
	if err != nil {
		telemetry.EventCtx(ctx, "lookup_failed", map[string]string{
			"mod_id":     c.ModID,
			"unreliable": strconv.FormatBool(c.Unreliable),
			"error":      err.Error(),
		})
		lk = &Lookup{ModID: c.ModID, Version: VersionUnknown, Dependencies: []mods.DependencyRef{}}
	}
	lk.Name = c.Name
	lk.ImageURL = c.ImageURL
	lk.SearchTerm = c.SearchTerm
	lk.Unreliable = c.Unreliable
	return *lk
}
