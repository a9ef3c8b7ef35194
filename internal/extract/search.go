package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"modcheck/internal/mods"
)

var (
	searchLinkRE  = regexp.MustCompile(`(?i)/workshop/([0-9A-F]{8,})\b`)
	payloadPairRE = regexp.MustCompile(`"id"\s*:\s*"([0-9A-Fa-f]{8,})"[^{}]*?"name"\s*:\s*"([^"]{1,199})"`)
	byAuthorRE    = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_ ]*?)\s+by\s+\S[^<]*$`)
	nonHexRE      = regexp.MustCompile(`[^0-9A-Fa-f]`)
)

var payloadLists = []string{"mods", "assets", "searchResults", "workshopItems", "items"}

var imageKeys = []string{"imageUrl", "thumbnail", "preview", "image", "cover", "thumb", "src"}

// navigationNames are link texts of site chrome, never mods.
var navigationNames = map[string]bool{
	"info":     true,
	"workshop": true,
	"home":     true,
	"search":   true,
	"browse":   true,
}

// Strategy names recorded on search candidates.
const (
	StrategyPayload  = "embedded-payload"
	StrategyLink     = "link-pattern"
	StrategyFreeText = "free-text"
)

// SearchResults extracts every mod listed on a search page. Unlike detail
// extraction all strategies run and their results are merged; the first
// name seen for an id is kept. Candidates found only by the free-text
// strategy carry an id derived from the name and are flagged Unreliable.
func SearchResults(html, term string) []mods.SearchCandidate {
	doc := Parse(html)
	c := &collector{term: term, byID: map[string]int{}, names: map[string]bool{}}
	payloadCandidates(doc, c)
	linkCandidates(doc, c)
	freeTextCandidates(doc, c)
	fillImages(doc, c.out)
	return c.out
}

type collector struct {
	term  string
	out   []mods.SearchCandidate
	byID  map[string]int
	names map[string]bool
}

func (c *collector) add(cand mods.SearchCandidate) {
	cand.ModID = mods.NormalizeID(cand.ModID)
	cand.Name = collapse(cand.Name)
	if len(cand.ModID) < 4 || !plausibleName(cand.Name) {
		return
	}
	if i, ok := c.byID[cand.ModID]; ok {
		if c.out[i].ImageURL == "" {
			c.out[i].ImageURL = cand.ImageURL
		}
		return
	}
	if cand.Unreliable && c.names[strings.ToLower(cand.Name)] {
		return
	}
	cand.SearchTerm = c.term
	c.byID[cand.ModID] = len(c.out)
	c.names[strings.ToLower(cand.Name)] = true
	c.out = append(c.out, cand)
}

func plausibleName(name string) bool {
	if name == "" || len(name) >= 200 {
		return false
	}
	if navigationNames[strings.ToLower(name)] {
		return false
	}
	return !strings.Contains(name, "Mod ") && !strings.Contains(name, "mod ")
}

func payloadCandidates(doc *Document, c *collector) {
	if props, ok := pageProps(doc); ok {
		for _, key := range payloadLists {
			list, _ := props[key].([]any)
			for _, item := range list {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				id, _ := entry["id"].(string)
				name, _ := entry["name"].(string)
				c.add(mods.SearchCandidate{ModID: id, Name: name, ImageURL: payloadImage(entry), Strategy: StrategyPayload})
			}
		}
		return
	}
	for _, m := range payloadPairRE.FindAllStringSubmatch(doc.Raw, -1) {
		c.add(mods.SearchCandidate{ModID: m[1], Name: m[2], Strategy: StrategyPayload})
	}
}

func payloadImage(entry map[string]any) string {
	for _, k := range imageKeys {
		switch v := entry[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if u, _ := v["url"].(string); u != "" {
				return u
			}
		}
	}
	if previews, ok := entry["previews"].([]any); ok && len(previews) > 0 {
		if p, ok := previews[0].(map[string]any); ok {
			u, _ := p["url"].(string)
			return u
		}
	}
	return ""
}

func linkCandidates(doc *Document, c *collector) {
	doc.DOM.Find(`a[href*="/workshop/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := searchLinkRE.FindStringSubmatch(href)
		if m == nil {
			return
		}
		img := a.Find("img").First()
		name := collapse(a.Text())
		if name == "" {
			name = a.AttrOr("title", img.AttrOr("alt", ""))
		}
		c.add(mods.SearchCandidate{ModID: m[1], Name: name, ImageURL: img.AttrOr("src", ""), Strategy: StrategyLink})
	})
}

func freeTextCandidates(doc *Document, c *collector) {
	body := doc.DOM.Find("body").Clone()
	body.Find("script, style").Remove()
	for _, line := range strings.Split(body.Text(), "\n") {
		m := byAuthorRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		c.add(mods.SearchCandidate{ModID: TemporaryID(name), Name: name, Strategy: StrategyFreeText, Unreliable: true})
	}
}

// TemporaryID derives a placeholder id from a mod name. It is not a real
// catalog id and must be confirmed by a lookup before use.
func TemporaryID(name string) string {
	id := strings.ToUpper(nonHexRE.ReplaceAllString(name, ""))
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

func fillImages(doc *Document, out []mods.SearchCandidate) {
	for i := range out {
		if out[i].ImageURL != "" {
			continue
		}
		name := strings.ToLower(out[i].Name)
		doc.DOM.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if strings.Contains(strings.ToLower(img.AttrOr("alt", "")), name) {
				out[i].ImageURL = img.AttrOr("src", "")
				return out[i].ImageURL == ""
			}
			return true
		})
	}
}
