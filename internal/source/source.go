// Package source provides the catalog backends a batch reads from.
package source

import (
	"context"

	"modcheck/internal/checker"
	"modcheck/internal/config"
	"modcheck/internal/extract"
	"modcheck/internal/mods"
	"modcheck/internal/workshop"
)

// New returns the mock dataset when cfg asks for it and the live catalog otherwise.
func New(cfg config.Config, client *workshop.Client) (checker.Source, error) {
	if cfg.UseMockData {
		return NewMock()
	}
	return NewLive(client), nil
}

// Live reads the workshop site.
type Live struct {
	client *workshop.Client
	ext    *extract.Extractor
}

// NewLive returns a Live source using the default extraction strategies.
func NewLive(client *workshop.Client) *Live {
	return &Live{client: client, ext: extract.New()}
}

func (l *Live) Name() string { return "live" }

func (l *Live) get(ctx context.Context, url string) (string, error) {
	resp, err := l.client.Fetch(ctx, url, nil)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &workshop.StatusError{URL: url, Status: resp.Status}
	}
	return resp.Text(), nil
}

// ModPage fetches and extracts the detail page of modID.
func (l *Live) ModPage(ctx context.Context, modID string) (mods.PageData, error) {
	html, err := l.get(ctx, l.client.DetailURL(modID))
	if err != nil {
		return mods.PageData{}, err
	}
	return l.ext.Extract(html), nil
}

// ChangelogVersion returns the newest version on the changelog page, or ""
// when the page lists none.
func (l *Live) ChangelogVersion(ctx context.Context, modID string) (string, error) {
	html, err := l.get(ctx, l.client.ChangelogURL(modID))
	if err != nil {
		return "", err
	}
	v, _ := extract.ChangelogVersion(html)
	return v, nil
}

// Search returns the candidates listed for term.
func (l *Live) Search(ctx context.Context, term string) ([]mods.SearchCandidate, error) {
	html, err := l.get(ctx, l.client.SearchURL(term))
	if err != nil {
		return nil, err
	}
	return extract.SearchResults(html, term), nil
}
