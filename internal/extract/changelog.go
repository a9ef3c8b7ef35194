package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var changelogHeadingRE = regexp.MustCompile(`(?i)^(?:v|version\s*)?(` + versionPattern + `)\b`)

// ChangelogVersion returns the newest version listed on a changelog page,
// taken from the first heading that starts with a version number.
func ChangelogVersion(html string) (string, bool) {
	doc := Parse(html)
	var version string
	doc.DOM.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if m := changelogHeadingRE.FindStringSubmatch(strings.TrimSpace(h.Text())); m != nil {
			version = m[1]
			return false
		}
		return true
	})
	return version, version != ""
}
