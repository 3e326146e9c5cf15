package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}`)

	facebookPattern  = regexp.MustCompile(`https?://(?:www\.)?facebook\.com/[^\s"'<>]+`)
	instagramPattern = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[^\s"'<>]+`)
	twitterPattern   = regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/[^\s"'<>]+`)

	spaces = regexp.MustCompile(`\s+`)
)

const maxNameLength = 200

// findAll returns unique matches in order of appearance.
func findAll(re *regexp.Regexp, text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func firstMatch(re *regexp.Regexp, text string) string {
	return strings.TrimSpace(re.FindString(text))
}

// visibleText joins every text node under s with single spaces,
// skipping script and style content.
func visibleText(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}

// cleanText is the trimmed, whitespace-collapsed text of s.
func cleanText(s *goquery.Selection) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s.Text(), " "))
}

// resolve turns href into an absolute URL relative to base.
func resolve(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// socialLinks picks the first facebook, instagram and twitter/x link
// among the anchors of doc.
func socialLinks(doc *goquery.Selection) (facebook, instagram, twitter string, linkCount int) {
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		linkCount++
		href, _ := a.Attr("href")
		if facebook == "" {
			facebook = firstMatch(facebookPattern, href)
		}
		if instagram == "" {
			instagram = firstMatch(instagramPattern, href)
		}
		if twitter == "" {
			twitter = firstMatch(twitterPattern, href)
		}
	})
	return facebook, instagram, twitter, linkCount
}

// tableTeams extracts one record per data row from tables whose header row
// names a team-like column. When fallbackFirstColumn is set, tables with two
// or more header cells but no keyword use the first column, and rows whose
// name is just a keyword are taken as repeated headers and skipped.
func tableTeams(doc *goquery.Document, pageURL string, keywords []string, fallbackFirstColumn bool, withEmail bool) []RawTeam {
	var teams []RawTeam

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		var headers []string
		rows.First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(cleanText(cell)))
		})

		nameCol := -1
		for i, h := range headers {
			if containsAny(h, keywords) {
				nameCol = i
				break
			}
		}
		if nameCol < 0 && fallbackFirstColumn && len(headers) >= 2 {
			nameCol = 0
		}
		if nameCol < 0 {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() <= nameCol {
				return
			}
			cell := cells.Eq(nameCol)
			name := cleanText(cell)
			if name == "" || (fallbackFirstColumn && isHeaderWord(name, keywords)) {
				return
			}

			team := RawTeam{Name: name, SourceURL: pageURL}
			if href, ok := cell.Find("a[href]").First().Attr("href"); ok {
				team.Website = resolve(pageURL, href)
			}
			if withEmail {
				team.Email = firstMatch(emailPattern, visibleText(row))
			}
			teams = append(teams, team)
		})
	})

	return teams
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func isHeaderWord(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if lower == kw {
			return true
		}
	}
	return false
}
