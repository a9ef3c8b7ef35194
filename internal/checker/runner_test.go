package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"modcheck/internal/extract"
	"modcheck/internal/mods"
	"modcheck/internal/workshop"
)

type fakePage struct {
	html string
	err  error
}

type fakeSource struct {
	mu        sync.Mutex
	pages     map[string][]fakePage
	search    map[string][]mods.SearchCandidate
	changelog map[string]string
	calls     map[string]int
	trace     []string
	onFetch   func(id string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages:     map[string][]fakePage{},
		search:    map[string][]mods.SearchCandidate{},
		changelog: map[string]string{},
		calls:     map[string]int{},
	}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) record(s string) {
	f.mu.Lock()
	f.trace = append(f.trace, s)
	f.mu.Unlock()
}

func (f *fakeSource) ModPage(ctx context.Context, id string) (mods.PageData, error) {
	f.mu.Lock()
	n := f.calls[id]
	f.calls[id]++
	seq := f.pages[id]
	f.trace = append(f.trace, "fetch "+id)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(id)
	}
	if len(seq) == 0 {
		return mods.PageData{}, mods.ErrNotFound
	}
	p := seq[min(n, len(seq)-1)]
	if p.err != nil {
		return mods.PageData{}, p.err
	}
	return extract.Extract(p.html), nil
}

func (f *fakeSource) Search(ctx context.Context, term string) ([]mods.SearchCandidate, error) {
	f.record("search " + term)
	if term == "broken" {
		return nil, &workshop.StatusError{Status: 500}
	}
	return f.search[term], nil
}

func (f *fakeSource) ChangelogVersion(ctx context.Context, id string) (string, error) {
	v, ok := f.changelog[id]
	if !ok {
		return "", mods.ErrNotFound
	}
	return v, nil
}

func (f *fakeSource) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// stubSleep replaces sleep with a recorder that returns immediately.
func stubSleep(t *testing.T, f *fakeSource) {
	t.Helper()
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		f.record("sleep " + d.String())
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
}

func detailHTML(version string, deps ...mods.DependencyRef) string {
	var b strings.Builder
	b.WriteString("<html><body><section><dl>")
	if version != "" {
		fmt.Fprintf(&b, "<dt>Version</dt><dd>%s</dd>", version)
	}
	b.WriteString("<dt>Version size</dt><dd>2,048 KB</dd></dl></section>")
	if len(deps) > 0 {
		b.WriteString("<section><h2>Dependencies</h2>")
		for _, d := range deps {
			fmt.Fprintf(&b, `<a href="/workshop/%s-x">%s</a>`, d.ModID, d.Name)
		}
		b.WriteString("</section>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

func page(version string, deps ...mods.DependencyRef) []fakePage {
	return []fakePage{{html: detailHTML(version, deps...)}}
}

var (
	refA    = mods.ModRef{ModID: "AAAA0001", Name: "A", Version: "1.0.0"}
	refB    = mods.ModRef{ModID: "BBBB0002", Name: "B", Version: "2.0.0"}
	refC    = mods.ModRef{ModID: "CCCC0003", Name: "C", Version: "3.0.0"}
	depB    = mods.DependencyRef{ModID: "BBBB0002", Name: "B"}
	depCore = mods.DependencyRef{ModID: "C0DE0000", Name: "Core"}
)

func collect() (*[]Event, Emit) {
	var events []Event
	return &events, func(e Event) { events = append(events, e) }
}

func TestRunScenarios(t *testing.T) {
	tests := []struct {
		name    string
		list    []mods.ModRef
		pages   map[string][]fakePage
		status  mods.Status
		message string
		current string
	}{
		{
			name:    "all up to date",
			list:    []mods.ModRef{refA, refB},
			pages:   map[string][]fakePage{"AAAA0001": page("1.0.0", depB), "BBBB0002": page("2.0.0")},
			status:  mods.StatusUpToDate,
			message: "Up to date",
			current: "1.0.0",
		},
		{
			name:    "outdated",
			list:    []mods.ModRef{refA},
			pages:   map[string][]fakePage{"AAAA0001": page("1.2.0")},
			status:  mods.StatusOutdated,
			message: "Version mismatch: 1.0.0 -> 1.2.0",
			current: "1.2.0",
		},
		{
			name:    "missing dependency",
			list:    []mods.ModRef{refA},
			pages:   map[string][]fakePage{"AAAA0001": page("1.0.0", depCore)},
			status:  mods.StatusMissingDeps,
			message: "Up to date | Missing dependencies: Core",
			current: "1.0.0",
		},
		{
			name: "game version is not the mod version",
			list: []mods.ModRef{refA},
			pages: map[string][]fakePage{"AAAA0001": {{
				html: `<section><dl><dt>Game version</dt><dd>1.2.3</dd></dl></section>`,
			}}},
			status:  mods.StatusError,
			message: "Unable to find version on page",
			current: mods.VersionNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.pages = tt.pages
			stubSleep(t, src)
			events, emit := collect()
			rep, err := New(src, DefaultOptions()).Run(context.Background(), tt.list, emit)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			first := rep.Results[0]
			if first.Status != tt.status || first.Message != tt.message || first.CurrentVersion != tt.current {
				t.Fatalf("got %+v", first)
			}
			if rep.Summary.Total != len(tt.list) {
				t.Fatalf("summary total %d want %d", rep.Summary.Total, len(tt.list))
			}
			last := (*events)[len(*events)-1]
			if last.Kind() != EventComplete {
				t.Fatalf("last event %T", last)
			}
		})
	}
}

func TestRunFailureDoesNotAbortBatch(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{
		"AAAA0001": page("1.0.0"),
		"BBBB0002": {{err: &workshop.StatusError{URL: "u", Status: 503}}},
		"CCCC0003": page("3.0.0"),
	}
	stubSleep(t, src)
	rep, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{refA, refB, refC}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.calls["BBBB0002"] != 4 {
		t.Fatalf("got %d attempts want 4", src.calls["BBBB0002"])
	}
	failed := rep.Results[1]
	if failed.Status != mods.StatusError || failed.CurrentVersion != mods.VersionError {
		t.Fatalf("got %+v", failed)
	}
	if failed.Message != "Error: HTTP 503: Service Unavailable" || failed.Attempts != 4 {
		t.Fatalf("got %+v", failed)
	}
	if rep.Results[2].Status != mods.StatusUpToDate {
		t.Fatalf("batch did not continue: %+v", rep.Results[2])
	}
	if rep.Summary.Errors != 1 || rep.Summary.UpToDate != 2 {
		t.Fatalf("got summary %+v", rep.Summary)
	}

	want := []string{
		"fetch AAAA0001", "sleep 1s",
		"fetch BBBB0002", "sleep 2s", "fetch BBBB0002", "sleep 2s", "fetch BBBB0002", "sleep 2s", "fetch BBBB0002",
		"sleep 1s", "fetch CCCC0003",
	}
	got := src.Trace()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got trace %v\nwant %v", got, want)
	}
}

func TestRunRecoversOnRetry(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{
		"AAAA0001": {
			{err: &workshop.NetworkError{URL: "u", Err: errors.New("connection reset")}},
			{html: detailHTML("1.0.0")},
		},
	}
	stubSleep(t, src)
	rep, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{refA}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Results[0].Status != mods.StatusUpToDate || rep.Results[0].Attempts != 2 {
		t.Fatalf("got %+v", rep.Results[0])
	}
	if rep.Results[0].SizeMB != 2 {
		t.Fatalf("got size %v want 2", rep.Results[0].SizeMB)
	}
}

func TestRunNotFoundIsNotRetried(t *testing.T) {
	src := newFakeSource()
	stubSleep(t, src)
	rep, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{refA}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if src.calls["AAAA0001"] != 1 {
		t.Fatalf("got %d attempts want 1", src.calls["AAAA0001"])
	}
	if rep.Results[0].Message != "Error: mod not found" {
		t.Fatalf("got %q", rep.Results[0].Message)
	}
}

func TestRunEmitsProgressThenOneComplete(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0"), "BBBB0002": page("2.0.0"), "CCCC0003": page("3.0.0")}
	stubSleep(t, src)
	events, emit := collect()
	if _, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{refA, refB, refC}, emit); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(*events) != 4 {
		t.Fatalf("got %d events want 4", len(*events))
	}
	for i, e := range (*events)[:3] {
		p, ok := e.(*Progress)
		if !ok {
			t.Fatalf("event %d is %T", i, e)
		}
		if p.Current != i+1 || p.Total != 3 {
			t.Fatalf("event %d: %+v", i, p)
		}
	}
	c, ok := (*events)[3].(*Complete)
	if !ok || len(c.Results) != 3 || c.Summary.UpToDate != 3 {
		t.Fatalf("got complete %+v", (*events)[3])
	}
}

func TestRunPacingOnlyBetweenItems(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0"), "BBBB0002": page("2.0.0")}
	stubSleep(t, src)
	if _, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{refA, refB}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "fetch AAAA0001,sleep 1s,fetch BBBB0002"
	if got := strings.Join(src.Trace(), ","); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestRunPacingWallClock(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0"), "BBBB0002": page("2.0.0")}
	var mu sync.Mutex
	fetched := map[string]time.Time{}
	src.onFetch = func(id string) {
		mu.Lock()
		fetched[id] = time.Now()
		mu.Unlock()
	}
	opts := Options{MaxRetries: 0, PacingDelay: 50 * time.Millisecond}
	if _, err := New(src, opts).Run(context.Background(), []mods.ModRef{refA, refB}, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gap := fetched["BBBB0002"].Sub(fetched["AAAA0001"]); gap < 50*time.Millisecond {
		t.Fatalf("second fetch after %v, want >= 50ms", gap)
	}
}

func TestRunCancellationStopsAtItemBoundary(t *testing.T) {
	src := newFakeSource()
	src.pages = map[string][]fakePage{"AAAA0001": page("1.0.0"), "BBBB0002": page("2.0.0")}
	stubSleep(t, src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src.onFetch = func(id string) {
		if id == "AAAA0001" {
			cancel()
		}
	}
	events, emit := collect()
	rep, err := New(src, DefaultOptions()).Run(ctx, []mods.ModRef{refA, refB}, emit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v want context.Canceled", err)
	}
	if len(rep.Results) != 1 || rep.Results[0].Status != mods.StatusUpToDate {
		t.Fatalf("in-flight item not completed: %+v", rep.Results)
	}
	if src.calls["BBBB0002"] != 0 {
		t.Fatalf("second item fetched after cancel")
	}
	for _, e := range *events {
		if e.Kind() == EventComplete {
			t.Fatalf("complete emitted after cancel")
		}
	}
}

func TestRunRejectsMalformedInput(t *testing.T) {
	src := newFakeSource()
	events, emit := collect()
	_, err := New(src, DefaultOptions()).Run(context.Background(), []mods.ModRef{{Name: "no id"}}, emit)
	if !errors.Is(err, mods.ErrMalformedInput) {
		t.Fatalf("got %v want ErrMalformedInput", err)
	}
	if len(*events) != 0 || len(src.Trace()) != 0 {
		t.Fatalf("work done for malformed input")
	}
}
