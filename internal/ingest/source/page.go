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

var pageTableKeywords = []string{"team", "club", "name", "organization"}

// Page extracts contact details from a single web page.
type Page struct {
	fetcher transport.Fetcher
	log     *zap.Logger
}

// NewPage creates the single-page adapter. A nil fetcher gets a 1 req/s client.
func NewPage(fetcher transport.Fetcher, log *zap.Logger) *Page {
	log = logger.OrNop(log)
	if fetcher == nil {
		fetcher = transport.NewClient(transport.Options{RequestsPerSecond: 1, Logger: log})
	}
	return &Page{fetcher: fetcher, log: log.Named("page")}
}

func (p *Page) Type() SourceType { return SourceSinglePage }
func (p *Page) sealed()          {}

// Scrape treats query as the page URL. The page itself always yields one
// record; tables listing teams add one record per row.
func (p *Page) Scrape(ctx context.Context, query string, _ Options) ([]RawTeam, error) {
	pageURL := strings.TrimSpace(query)
	body, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		p.log.Warn("unparseable page", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}

	teams := []RawTeam{pageTeam(doc, pageURL)}
	for _, t := range tableTeams(doc, pageURL, pageTableKeywords, false, true) {
		t.SourceType = SourceSinglePage
		teams = append(teams, t)
	}

	p.log.Info("page scraped", zap.String("url", pageURL), zap.Int("records", len(teams)))
	return teams, nil
}

func pageTeam(doc *goquery.Document, pageURL string) RawTeam {
	text := visibleText(doc.Selection)
	emails := findAll(emailPattern, text)
	phones := findAll(phonePattern, text)
	facebook, instagram, twitter, links := socialLinks(doc.Selection)

	name := cleanText(doc.Find("h1").First())
	if name == "" {
		name = cleanText(doc.Find("title").First())
	}
	if name == "" {
		name = hostOf(pageURL)
	}

	if emails == nil {
		emails = []string{}
	}
	if phones == nil {
		phones = []string{}
	}

	return RawTeam{
		Name:            name,
		Email:           first(emails),
		Phone:           first(phones),
		Website:         pageURL,
		SocialFacebook:  facebook,
		SocialInstagram: instagram,
		SocialTwitter:   twitter,
		SourceURL:       pageURL,
		SourceType:      SourceSinglePage,
		Raw: map[string]any{
			"all_emails":      emails,
			"all_phones":      phones,
			"all_links_count": links,
		},
	}
}
