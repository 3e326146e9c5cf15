package source

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/transport"
	"go.uber.org/zap"
)

const (
	// PlacesSearchURL is the Places API (New) text search endpoint.
	PlacesSearchURL = "https://places.googleapis.com/v1/places:searchText"

	placesFieldMask = "places.displayName,places.formattedAddress,places.nationalPhoneNumber," +
		"places.websiteUri,places.googleMapsUri,places.types"

	// PlacesPageSize is the most results one text search returns.
	PlacesPageSize = 20
)

// Places searches a structured places API by free text.
type Places struct {
	apiKey   string
	endpoint string
	client   *transport.Client
	log      *zap.Logger
}

// NewPlaces creates the map-search adapter. A nil client gets a 2 req/s one.
func NewPlaces(apiKey string, client *transport.Client, log *zap.Logger) *Places {
	log = logger.OrNop(log)
	if client == nil {
		client = transport.NewClient(transport.Options{RequestsPerSecond: 2, Logger: log})
	}
	return &Places{
		apiKey:   apiKey,
		endpoint: PlacesSearchURL,
		client:   client,
		log:      log.Named("places"),
	}
}

// WithEndpoint points the adapter at another search URL.
func (p *Places) WithEndpoint(endpoint string) *Places {
	p.endpoint = endpoint
	return p
}

func (p *Places) Type() SourceType { return SourceMapSearch }
func (p *Places) sealed()          {}

type placesResponse struct {
	Places []place `json:"places"`
}

type place struct {
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress    string   `json:"formattedAddress"`
	NationalPhoneNumber string   `json:"nationalPhoneNumber"`
	WebsiteURI          string   `json:"websiteUri"`
	GoogleMapsURI       string   `json:"googleMapsUri"`
	Types               []string `json:"types"`
}

// Scrape runs one text search for "query in location".
func (p *Places) Scrape(ctx context.Context, query string, opts Options) ([]RawTeam, error) {
	if p.apiKey == "" {
		return nil, apperrors.Configuration("places.search", "places API key not configured")
	}

	text := query
	if opts.Location != "" {
		text = query + " in " + opts.Location
	}
	limit := opts.MaxResults
	if limit <= 0 || limit > PlacesPageSize {
		limit = PlacesPageSize
	}

	header := http.Header{}
	header.Set("X-Goog-Api-Key", p.apiKey)
	header.Set("X-Goog-FieldMask", placesFieldMask)

	resp, err := p.client.PostJSON(ctx, p.endpoint, header, map[string]any{
		"textQuery":      text,
		"maxResultCount": limit,
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Check("places.search"); err != nil {
		return nil, err
	}

	var parsed placesResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, apperrors.Parse("places.search", err)
	}
	// Keep each place's own JSON as the raw payload.
	var raw struct {
		Places []map[string]any `json:"places"`
	}
	_ = json.Unmarshal(resp.Body, &raw)

	teams := make([]RawTeam, 0, len(parsed.Places))
	for i, pl := range parsed.Places {
		if pl.DisplayName.Text == "" {
			continue
		}
		team := RawTeam{
			Name:       pl.DisplayName.Text,
			Location:   pl.FormattedAddress,
			Phone:      pl.NationalPhoneNumber,
			Website:    pl.WebsiteURI,
			SourceURL:  pl.GoogleMapsURI,
			SourceType: SourceMapSearch,
		}
		if i < len(raw.Places) {
			team.Raw = raw.Places[i]
		}
		teams = append(teams, team)
		if len(teams) >= limit {
			break
		}
	}

	p.log.Info("places search complete", zap.String("query", text), zap.Int("results", len(teams)))
	return teams, nil
}

// Enrich fetches the team's website and fills an empty email and social
// links from it. An unreachable website leaves the record as it was.
func (p *Places) Enrich(ctx context.Context, team RawTeam) RawTeam {
	if team.Website == "" {
		return team
	}
	page, err := p.client.Fetch(ctx, team.Website)
	if err != nil {
		p.log.Debug("website unreachable, skipping enrichment", zap.String("website", team.Website), zap.Error(err))
		return team
	}

	if team.Email == "" {
		team.Email = firstMatch(emailPattern, page)
	}
	if team.SocialFacebook == "" {
		team.SocialFacebook = firstMatch(facebookPattern, page)
	}
	if team.SocialInstagram == "" {
		team.SocialInstagram = firstMatch(instagramPattern, page)
	}
	if team.SocialTwitter == "" {
		team.SocialTwitter = firstMatch(twitterPattern, page)
	}
	return team
}
