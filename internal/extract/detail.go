package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"modcheck/internal/mods"
)

const versionPattern = `\d+\.\d+(?:\.\d+)?(?:\.\d+)?`

var (
	anchoredVersionRE = regexp.MustCompile(`^(` + versionPattern + `)$`)
	versionMarkupREs  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<dt[^>]*>\s*Version\s*</dt>\s*<dd[^>]*>\s*(` + versionPattern + `)\s*</dd>`),
		regexp.MustCompile(`(?i)Version</dt>\s*<dd[^>]*>[^<]*?(` + versionPattern + `)`),
	}
	sizeValueRE  = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(KB|MB|GB)`)
	sizeMarkupRE = regexp.MustCompile(`(?i)<dt[^>]*>\s*Version size\s*</dt>\s*<dd[^>]*>([^<]*)</dd>`)
	depIDRE      = regexp.MustCompile(`(?i)/workshop/([0-9A-F]+)\b`)
)

// gameContextWindow is how far back a loose version match looks for a
// "game" label. Those rows carry the game build, not the mod version.
const gameContextWindow = 50

// Extractor holds the ordered strategies for each detail page field.
type Extractor struct {
	Version      []Strategy[string]
	Size         []Strategy[float64]
	Dependencies []Strategy[[]mods.DependencyRef]
}

// New returns an Extractor with the default strategy order.
func New() *Extractor {
	return &Extractor{
		Version: []Strategy[string]{
			{Name: "definition-list", Fn: definitionListVersion},
			{Name: "markup-pattern", Fn: markupVersion},
		},
		Size: []Strategy[float64]{
			{Name: "definition-list", Fn: definitionListSize},
			{Name: "markup-pattern", Fn: markupSize},
		},
		Dependencies: []Strategy[[]mods.DependencyRef]{
			{Name: "section-links", Fn: sectionDependencies},
			{Name: "embedded-payload", Fn: payloadDependencies},
		},
	}
}

var defaultExtractor = New()

// Extract parses html and extracts a PageData with the default strategies.
func Extract(html string) mods.PageData { return defaultExtractor.Extract(html) }

// Extract parses html once and runs every field's strategies against it.
func (e *Extractor) Extract(html string) mods.PageData {
	return e.ExtractDocument(Parse(html))
}

// ExtractDocument extracts a PageData from an already parsed page.
func (e *Extractor) ExtractDocument(doc *Document) mods.PageData {
	version, _, _ := First(doc, e.Version)
	size, _, _ := First(doc, e.Size)
	deps, _, _ := First(doc, e.Dependencies)
	return mods.PageData{
		Version:      version,
		SizeMB:       size,
		Dependencies: dedupe(deps),
	}
}

// definitionValues returns the text of the dd directly following each dt
// whose trimmed text equals label.
func definitionValues(doc *Document, label string) []string {
	var out []string
	doc.DOM.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		if strings.TrimSpace(dt.Text()) != label {
			return
		}
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		out = append(out, strings.TrimSpace(dd.Text()))
	})
	return out
}

func definitionListVersion(doc *Document) (string, bool) {
	for _, v := range definitionValues(doc, "Version") {
		if m := anchoredVersionRE.FindStringSubmatch(v); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func markupVersion(doc *Document) (string, bool) {
	for _, re := range versionMarkupREs {
		for _, m := range re.FindAllStringSubmatchIndex(doc.Raw, -1) {
			if inGameContext(doc.Raw, m[0]) {
				continue
			}
			return doc.Raw[m[2]:m[3]], true
		}
	}
	return "", false
}

func inGameContext(raw string, at int) bool {
	start := at - gameContextWindow
	if start < 0 {
		start = 0
	}
	return strings.Contains(strings.ToLower(raw[start:at]), "game")
}

func definitionListSize(doc *Document) (float64, bool) {
	for _, v := range definitionValues(doc, "Version size") {
		if mb, ok := ParseSize(v); ok {
			return mb, true
		}
	}
	return 0, false
}

func markupSize(doc *Document) (float64, bool) {
	for _, m := range sizeMarkupRE.FindAllStringSubmatch(doc.Raw, -1) {
		if mb, ok := ParseSize(m[1]); ok {
			return mb, true
		}
	}
	return 0, false
}

// ParseSize reads a human size such as "1,234.5 KB" and returns megabytes.
func ParseSize(s string) (float64, bool) {
	m := sizeValueRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "KB":
		n /= 1024
	case "GB":
		n *= 1024
	}
	return n, true
}

// dependencyScope returns the section holding the Dependencies heading.
// Pages without the heading have no dependencies; the rest of the page is
// never scanned since navigation links also point at /workshop/.
func dependencyScope(doc *Document) (*goquery.Selection, bool) {
	var heading *goquery.Selection
	doc.DOM.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if strings.EqualFold(collapse(h.Text()), "Dependencies") {
			heading = h
			return false
		}
		return true
	})
	if heading == nil {
		return nil, false
	}
	scope := heading.Closest("section")
	if scope.Length() == 0 {
		scope = heading.Parent()
	}
	return scope, true
}

func sectionDependencies(doc *Document) ([]mods.DependencyRef, bool) {
	scope, ok := dependencyScope(doc)
	if !ok {
		return nil, false
	}
	var deps []mods.DependencyRef
	scope.Find(`a[href*="/workshop/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := depIDRE.FindStringSubmatch(href)
		name := collapse(a.Text())
		if m == nil || name == "" {
			return
		}
		deps = append(deps, mods.DependencyRef{ModID: mods.NormalizeID(m[1]), Name: name})
	})
	return deps, len(deps) > 0
}

// payloadDependencies reads dependencies from the embedded page payload for
// pages that render the Dependencies section client-side.
func payloadDependencies(doc *Document) ([]mods.DependencyRef, bool) {
	if _, ok := dependencyScope(doc); !ok {
		return nil, false
	}
	props, ok := pageProps(doc)
	if !ok {
		return nil, false
	}
	var deps []mods.DependencyRef
	for _, path := range [][]string{
		{"dependencies"},
		{"asset", "dependencies"},
		{"assetVersionDetail", "dependencies"},
	} {
		list, _ := dig(props, path...).([]any)
		for _, item := range list {
			entry, _ := item.(map[string]any)
			if asset, ok := entry["asset"].(map[string]any); ok {
				entry = asset
			}
			id, _ := entry["id"].(string)
			name, _ := entry["name"].(string)
			if id == "" || strings.TrimSpace(name) == "" {
				continue
			}
			deps = append(deps, mods.DependencyRef{ModID: mods.NormalizeID(id), Name: collapse(name)})
		}
		if len(deps) > 0 {
			return deps, true
		}
	}
	return nil, false
}

// pageProps decodes props.pageProps from the embedded __NEXT_DATA__ script.
func pageProps(doc *Document) (map[string]any, bool) {
	script := doc.DOM.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, false
	}
	props, ok := dig(data, "props", "pageProps").(map[string]any)
	return props, ok
}

func dig(v any, path ...string) any {
	for _, p := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[p]
	}
	return v
}

func dedupe(deps []mods.DependencyRef) []mods.DependencyRef {
	out := make([]mods.DependencyRef, 0, len(deps))
	seen := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		key := mods.NormalizeID(d.ModID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
