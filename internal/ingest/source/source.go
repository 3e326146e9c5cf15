package source

import (
	"context"
	"fmt"

	"github.com/fortuna/kitscout/internal/transport"
	"go.uber.org/zap"
)

// SourceType identifies where a record was acquired.
type SourceType string

const (
	SourceMapSearch  SourceType = "map_search"
	SourceSinglePage SourceType = "single_page"
	SourceDirectory  SourceType = "directory"
	SourceManual     SourceType = "manual"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceMapSearch, SourceSinglePage, SourceDirectory, SourceManual:
		return true
	}
	return false
}

// RawTeam is one record as produced by a source, before cleaning.
type RawTeam struct {
	Name            string         `json:"name"`
	League          string         `json:"league,omitempty"`
	Location        string         `json:"location,omitempty"`
	Website         string         `json:"website,omitempty"`
	Email           string         `json:"email,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	SocialFacebook  string         `json:"social_facebook,omitempty"`
	SocialInstagram string         `json:"social_instagram,omitempty"`
	SocialTwitter   string         `json:"social_twitter,omitempty"`
	ContactName     string         `json:"contact_name,omitempty"`
	ContactRole     string         `json:"contact_role,omitempty"`
	SourceURL       string         `json:"source_url,omitempty"`
	SourceType      SourceType     `json:"source_type"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// Options narrows a scrape. Location and MaxResults only apply to map search.
type Options struct {
	Location   string
	MaxResults int
}

// Source is implemented by the three acquisition adapters in this package.
type Source interface {
	Type() SourceType
	Scrape(ctx context.Context, query string, opts Options) ([]RawTeam, error)
	sealed()
}

// Deps carries what the adapters need to talk to the outside world.
type Deps struct {
	PlacesAPIKey string
	// Pages fetches single pages and directories; defaults to a 1 req/s client.
	Pages  transport.Fetcher
	Logger *zap.Logger
}

// New returns the adapter for kind.
func New(kind SourceType, deps Deps) (Source, error) {
	switch kind {
	case SourceMapSearch:
		return NewPlaces(deps.PlacesAPIKey, nil, deps.Logger), nil
	case SourceSinglePage:
		return NewPage(deps.Pages, deps.Logger), nil
	case SourceDirectory:
		return NewDirectory(deps.Pages, deps.Logger), nil
	default:
		return nil, fmt.Errorf("no scraper for source type %q", kind)
	}
}
