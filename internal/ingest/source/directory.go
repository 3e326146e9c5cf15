package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/transport"
	"go.uber.org/zap"
)

var (
	cardKeywords           = []string{"team", "club", "squad", "roster"}
	directoryTableKeywords = []string{"team", "club", "name"}
)

// Directory extracts team listings from league and association directories.
type Directory struct {
	fetcher transport.Fetcher
	log     *zap.Logger
}

// NewDirectory creates the directory adapter. A nil fetcher gets a 1 req/s client.
func NewDirectory(fetcher transport.Fetcher, log *zap.Logger) *Directory {
	log = logger.OrNop(log)
	if fetcher == nil {
		fetcher = transport.NewClient(transport.Options{RequestsPerSecond: 1, Logger: log})
	}
	return &Directory{fetcher: fetcher, log: log.Named("directory")}
}

func (d *Directory) Type() SourceType { return SourceDirectory }
func (d *Directory) sealed()          {}

// Scrape treats query as the listing URL.
func (d *Directory) Scrape(ctx context.Context, query string, _ Options) ([]RawTeam, error) {
	listURL := strings.TrimSpace(query)
	body, err := d.fetcher.Fetch(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", listURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		d.log.Warn("unparseable directory", zap.String("url", listURL), zap.Error(err))
		return nil, nil
	}

	// Strategy 1: card layouts
	teams := cardTeams(doc, listURL)

	// Strategy 2: standings / roster tables
	teams = append(teams, tableTeams(doc, listURL, directoryTableKeywords, true, false)...)

	// Strategy 3: plain lists, only when nothing structured was found
	if len(teams) == 0 {
		teams = listTeams(doc, listURL)
	}

	seen := make(map[string]bool)
	unique := make([]RawTeam, 0, len(teams))
	for _, t := range teams {
		key := strings.ToLower(strings.TrimSpace(t.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		t.SourceType = SourceDirectory
		unique = append(unique, t)
	}

	d.log.Info("directory scraped", zap.String("url", listURL), zap.Int("teams", len(unique)))
	return unique, nil
}

func cardTeams(doc *goquery.Document, listURL string) []RawTeam {
	var teams []RawTeam
	for _, kw := range cardKeywords {
		doc.Find("div, article, section").Each(func(_ int, card *goquery.Selection) {
			class, _ := card.Attr("class")
			if !strings.Contains(strings.ToLower(class), kw) {
				return
			}

			name := cleanText(card.Find("h2, h3, h4, a, strong").First())
			if name == "" || len(name) > maxNameLength {
				return
			}

			team := RawTeam{Name: name, SourceURL: listURL}
			if href, ok := card.Find("a[href]").First().Attr("href"); ok {
				team.Website = resolve(listURL, href)
			}
			text := visibleText(card)
			team.Email = firstMatch(emailPattern, text)
			team.Phone = firstMatch(phonePattern, text)
			teams = append(teams, team)
		})
	}
	return teams
}

func listTeams(doc *goquery.Document, listURL string) []RawTeam {
	var teams []RawTeam
	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		items := list.Find("li")
		if items.Length() < 3 {
			return
		}
		items.Each(func(_ int, li *goquery.Selection) {
			text := cleanText(li)
			if text == "" || len(text) > maxNameLength {
				return
			}

			team := RawTeam{Name: text, SourceURL: listURL}
			if link := li.Find("a[href]").First(); link.Length() > 0 {
				href, _ := link.Attr("href")
				team.Website = resolve(listURL, href)
				if linkText := cleanText(link); linkText != "" {
					team.Name = linkText
				}
			}
			teams = append(teams, team)
		})
	})
	return teams
}
