package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/ingest/source"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/metrics"
	"github.com/fortuna/kitscout/internal/publisher"
	"github.com/fortuna/kitscout/internal/reconciliation"
	"github.com/fortuna/kitscout/internal/store"
	"go.uber.org/zap"
)

// TeamStore persists canonical teams.
type TeamStore interface {
	Create(ctx context.Context, team *store.Team) error
	Names(ctx context.Context) (map[int64]string, error)
}

// LeadStore persists new leads.
type LeadStore interface {
	Create(ctx context.Context, lead *store.Lead) error
}

// JobStore records scrape runs.
type JobStore interface {
	Start(ctx context.Context, source, query string) (*store.ScrapeJob, error)
	Complete(ctx context.Context, id int64, found, valid int, errMsg string) error
}

// enricher is implemented by sources that can fill gaps from a team's website.
type enricher interface {
	Enrich(ctx context.Context, team source.RawTeam) source.RawTeam
}

// Request describes one scrape.
type Request struct {
	Source     source.SourceType `json:"source"`
	Query      string            `json:"query"`
	Location   string            `json:"location,omitempty"`
	MaxResults int               `json:"max_results,omitempty"`
	// Enrich visits each result's website to fill missing email and social links.
	Enrich bool `json:"enrich,omitempty"`
}

// Batch is a cleaned scrape result, not yet stored.
type Batch struct {
	Request   Request                        `json:"request"`
	Found     int                            `json:"found"`
	Teams     []reconciliation.CanonicalTeam `json:"teams"`
	ScrapedAt time.Time                      `json:"scraped_at"`
}

// SaveOptions control how a batch is stored.
type SaveOptions struct {
	// SkipExisting drops teams whose name key is already stored.
	SkipExisting bool
}

// SaveReport describes what Save stored.
type SaveReport struct {
	JobID   int64    `json:"job_id"`
	Teams   int      `json:"teams"`
	Leads   int      `json:"leads"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ScrapeEvent is published on the scrape stream after a batch is saved.
type ScrapeEvent struct {
	JobID     int64             `json:"job_id"`
	Source    source.SourceType `json:"source"`
	Query     string            `json:"query"`
	Found     int               `json:"found"`
	Canonical int               `json:"canonical"`
	Saved     int               `json:"saved"`
	Skipped   int               `json:"skipped"`
	Errors    int               `json:"errors"`
}

// Ingester runs acquisition: scrape, clean, and store as new leads.
type Ingester struct {
	sources    map[source.SourceType]source.Source
	reconciler *reconciliation.Engine
	teams      TeamStore
	leads      LeadStore
	jobs       JobStore
	publisher  publisher.Publisher
	log        *zap.Logger
}

// NewIngester creates an ingester over the given sources. A nil publisher
// disables scrape events.
func NewIngester(sources []source.Source, reconciler *reconciliation.Engine, teams TeamStore, leads LeadStore,
	jobs JobStore, pub publisher.Publisher, log *zap.Logger) *Ingester {

	if reconciler == nil {
		reconciler = reconciliation.NewEngine("", log)
	}
	if pub == nil {
		pub = publisher.Nop{}
	}
	in := &Ingester{
		sources:    make(map[source.SourceType]source.Source, len(sources)),
		reconciler: reconciler,
		teams:      teams,
		leads:      leads,
		jobs:       jobs,
		publisher:  pub,
		log:        logger.OrNop(log).Named("ingest"),
	}
	for _, s := range sources {
		if s != nil {
			in.sources[s.Type()] = s
		}
	}
	return in
}

// Scrape fetches req.Query from the requested source and cleans the result.
func (in *Ingester) Scrape(ctx context.Context, req Request) (*Batch, error) {
	const op = "scrape"

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, apperrors.Invalid(op, "query is required")
	}
	src, ok := in.sources[req.Source]
	if !ok {
		if !req.Source.Valid() {
			return nil, apperrors.Invalid(op, fmt.Sprintf("unknown source %q", req.Source))
		}
		return nil, apperrors.Configuration(op, fmt.Sprintf("no scraper configured for %s", req.Source))
	}

	start := time.Now()
	raw, err := src.Scrape(ctx, req.Query, source.Options{Location: req.Location, MaxResults: req.MaxResults})
	if err != nil {
		metrics.RecordScrapeError(string(req.Source))
		return nil, fmt.Errorf("scraping %s: %w", req.Source, err)
	}
	metrics.RecordScrape(string(req.Source), len(raw))

	if req.Enrich {
		if e, ok := src.(enricher); ok {
			for i := range raw {
				if ctx.Err() != nil {
					break
				}
				raw[i] = e.Enrich(ctx, raw[i])
			}
		}
	}

	teams := in.reconciler.Clean(raw)
	in.log.Info("scrape complete",
		zap.String("source", string(req.Source)),
		zap.String("query", req.Query),
		zap.Int("found", len(raw)),
		zap.Int("canonical", len(teams)),
		zap.Duration("took", time.Since(start)),
	)
	return &Batch{Request: req, Found: len(raw), Teams: teams, ScrapedAt: time.Now().UTC()}, nil
}

// Save stores every canonical team of batch with one new lead each, inside
// a scrape job record. A failing record is reported and skipped.
func (in *Ingester) Save(ctx context.Context, batch *Batch, opts SaveOptions) (*SaveReport, error) {
	if batch == nil {
		return nil, apperrors.Invalid("save scrape", "empty batch")
	}
	job, err := in.jobs.Start(ctx, string(batch.Request.Source), batch.Request.Query)
	if err != nil {
		return nil, fmt.Errorf("starting scrape job: %w", err)
	}
	report := &SaveReport{JobID: job.ID}
	// The job must be closed even if ctx ends mid-batch.
	bookCtx := context.WithoutCancel(ctx)

	var matcher *reconciliation.Matcher
	if opts.SkipExisting {
		names, err := in.teams.Names(ctx)
		if err != nil {
			if cerr := in.jobs.Complete(bookCtx, job.ID, batch.Found, 0, err.Error()); cerr != nil {
				in.log.Warn("failed to close scrape job", zap.Int64("job_id", job.ID), zap.Error(cerr))
			}
			return nil, fmt.Errorf("loading stored team names: %w", err)
		}
		matcher = reconciliation.NewMatcher(names)
	}

	for _, ct := range batch.Teams {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}
		if _, ok := matcher.Match(ct.Team.Name); ok {
			report.Skipped++
			continue
		}

		team := teamRecord(ct.Team, job.ID)
		if err := in.teams.Create(ctx, team); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ct.Team.Name, err))
			continue
		}
		report.Teams++
		if matcher != nil {
			matcher.Add(team.ID, team.Name)
		}

		if err := in.leads.Create(ctx, leadRecord(team, ct.Team)); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ct.Team.Name, err))
			continue
		}
		report.Leads++
	}

	errMsg := ""
	if report.Leads == 0 && len(report.Errors) > 0 {
		errMsg = report.Errors[0]
	}
	if err := in.jobs.Complete(bookCtx, job.ID, batch.Found, report.Leads, errMsg); err != nil {
		in.log.Warn("failed to close scrape job", zap.Int64("job_id", job.ID), zap.Error(err))
	}

	event := ScrapeEvent{
		JobID:     job.ID,
		Source:    batch.Request.Source,
		Query:     batch.Request.Query,
		Found:     batch.Found,
		Canonical: len(batch.Teams),
		Saved:     report.Leads,
		Skipped:   report.Skipped,
		Errors:    len(report.Errors),
	}
	if err := in.publisher.Publish(bookCtx, publisher.StreamScrapes, publisher.EventScrapeCompleted, event); err != nil {
		in.log.Warn("failed to publish scrape event", zap.Int64("job_id", job.ID), zap.Error(err))
	}

	in.log.Info("scrape saved",
		zap.Int64("job_id", job.ID),
		zap.Int("leads", report.Leads),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

func teamRecord(t source.RawTeam, jobID int64) *store.Team {
	return &store.Team{
		Name:            t.Name,
		League:          t.League,
		Location:        t.Location,
		Website:         t.Website,
		Email:           t.Email,
		Phone:           t.Phone,
		SocialFacebook:  t.SocialFacebook,
		SocialInstagram: t.SocialInstagram,
		SocialTwitter:   t.SocialTwitter,
		SourceURL:       t.SourceURL,
		SourceType:      string(t.SourceType),
		ScrapeJobID:     &jobID,
	}
}

func leadRecord(team *store.Team, t source.RawTeam) *store.Lead {
	return &store.Lead{
		TeamID:       &team.ID,
		TeamName:     t.Name,
		League:       t.League,
		Location:     t.Location,
		ContactName:  t.ContactName,
		ContactEmail: t.Email,
		ContactPhone: t.Phone,
		ContactRole:  t.ContactRole,
		Status:       store.StatusNew,
	}
}
