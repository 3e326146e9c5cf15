package campaign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/leads"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/metrics"
	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CampaignStore persists campaigns.
type CampaignStore interface {
	Create(ctx context.Context, c *store.Campaign) error
	GetByID(ctx context.Context, id int64) (*store.Campaign, error)
	List(ctx context.Context, limit int) ([]*store.Campaign, error)
	Transition(ctx context.Context, id int64, to store.CampaignStatus, from ...store.CampaignStatus) error
	RecordResults(ctx context.Context, id int64, status store.CampaignStatus, recipients, sent, bounced int) (*store.Campaign, error)
}

// LeadStore is the lead access a campaign run needs.
type LeadStore interface {
	LeadSource
	UpdateStatus(ctx context.Context, id int64, status store.LeadStatus) (*store.Lead, error)
}

// Sender delivers one batch. *outreach.Dispatcher implements it.
type Sender interface {
	SendBatch(ctx context.Context, channel outreach.Channel, recipients []outreach.Recipient, tmpl outreach.Template,
		rateLimit time.Duration, onProgress outreach.ProgressFunc) []outreach.DispatchResult
}

// Rates are the per-channel pauses between provider calls.
type Rates struct {
	Email time.Duration
	SMS   time.Duration
}

// For returns the rate for channel. WhatsApp shares the SMS rate.
func (r Rates) For(channel outreach.Channel) time.Duration {
	if channel == outreach.ChannelEmail {
		return r.Email
	}
	return r.SMS
}

// CreateRequest describes a new campaign.
type CreateRequest struct {
	Name    string              `json:"name"`
	Channel outreach.Channel    `json:"channel"`
	Subject string              `json:"template_subject,omitempty"`
	Body    string              `json:"template_body,omitempty"`
	Filter  store.SegmentFilter `json:"segment_filter"`
}

// RunOptions tune a single run.
type RunOptions struct {
	// RateLimit overrides the channel rate when positive.
	RateLimit time.Duration
	// OnProgress receives every progress event of this run.
	OnProgress func(Progress)
}

// RunReport summarizes a finished (or paused) run.
type RunReport struct {
	RunID     string                    `json:"run_id"`
	Campaign  *store.Campaign           `json:"campaign"`
	Results   []outreach.DispatchResult `json:"results"`
	Sent      int                       `json:"sent"`
	Failed    int                       `json:"failed"`
	Cancelled int                       `json:"cancelled"`
	Contacted int                       `json:"contacted"`
}

// Manager creates and runs campaigns.
type Manager struct {
	campaigns CampaignStore
	leads     LeadStore
	engine    *Engine
	sender    Sender
	rates     Rates
	observers []Observer
	log       *zap.Logger

	mu      sync.Mutex
	running map[int64]context.CancelFunc
}

// NewManager wires a campaign manager.
func NewManager(campaigns CampaignStore, leadStore LeadStore, sender Sender, rates Rates, log *zap.Logger, observers ...Observer) *Manager {
	return &Manager{
		campaigns: campaigns,
		leads:     leadStore,
		engine:    NewEngine(leadStore),
		sender:    sender,
		rates:     rates,
		observers: observers,
		log:       logger.OrNop(log).Named("campaign"),
		running:   make(map[int64]context.CancelFunc),
	}
}

// Eligible previews the recipients of a segment on channel.
func (m *Manager) Eligible(ctx context.Context, channel outreach.Channel, f store.SegmentFilter) ([]*store.Lead, error) {
	if !channel.Valid() {
		return nil, apperrors.Invalid("eligible leads", fmt.Sprintf("unknown channel %q", channel))
	}
	return m.engine.Eligible(ctx, channel, f)
}

// Create validates req and stores a draft campaign. An empty body takes the
// catalog template for the channel and the segment's team type.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*store.Campaign, error) {
	const op = "create campaign"

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Invalid(op, "name is required")
	}
	if !req.Channel.Valid() {
		return nil, apperrors.Invalid(op, fmt.Sprintf("unknown channel %q", req.Channel))
	}
	if req.Filter.Status != "" && !req.Filter.Status.Valid() {
		return nil, apperrors.Invalid(op, fmt.Sprintf("unknown lead status %q", req.Filter.Status))
	}

	tmpl := outreach.Template{Subject: req.Subject, Body: req.Body}
	if strings.TrimSpace(tmpl.Body) == "" {
		tmpl = outreach.DefaultTemplate(req.Channel, req.Filter.TeamType)
	}
	if req.Channel != outreach.ChannelEmail {
		tmpl.Subject = ""
	} else if tmpl.Subject == "" {
		tmpl.Subject = outreach.DefaultTemplate(req.Channel, req.Filter.TeamType).Subject
	}

	eligible, err := m.engine.Eligible(ctx, req.Channel, req.Filter)
	if err != nil {
		return nil, err
	}

	c := &store.Campaign{
		Name:            name,
		Channel:         string(req.Channel),
		TemplateSubject: tmpl.Subject,
		TemplateBody:    tmpl.Body,
		SegmentFilter:   req.Filter,
		TotalRecipients: len(eligible),
	}
	if err := m.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	m.log.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.String("channel", c.Channel),
		zap.Int("eligible", len(eligible)),
	)
	return c, nil
}

// Get returns one campaign.
func (m *Manager) Get(ctx context.Context, id int64) (*store.Campaign, error) {
	return m.campaigns.GetByID(ctx, id)
}

// List returns the most recent campaigns.
func (m *Manager) List(ctx context.Context, limit int) ([]*store.Campaign, error) {
	return m.campaigns.List(ctx, limit)
}

// Run sends a draft campaign to its eligible leads and blocks until the batch
// ends. Pausing the campaign while it runs stops the batch and leaves it
// paused with the counters of what was attempted.
func (m *Manager) Run(ctx context.Context, id int64, opts RunOptions) (*RunReport, error) {
	const op = "run campaign"

	c, err := m.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != store.CampaignDraft {
		return nil, apperrors.Conflict(op, fmt.Sprintf("campaign %d is %s", id, c.Status))
	}
	channel := outreach.Channel(c.Channel)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !m.track(id, cancel) {
		return nil, apperrors.Conflict(op, fmt.Sprintf("campaign %d is already running", id))
	}
	defer m.untrack(id)

	if err := m.campaigns.Transition(ctx, id, store.CampaignActive, store.CampaignDraft); err != nil {
		return nil, err
	}
	// Bookkeeping after the batch must survive a cancelled run.
	bookCtx := context.WithoutCancel(ctx)

	eligible, err := m.engine.Eligible(ctx, channel, c.SegmentFilter)
	if err != nil {
		if terr := m.campaigns.Transition(bookCtx, id, store.CampaignPaused, store.CampaignActive); terr != nil {
			m.log.Warn("failed to pause campaign after error", zap.Int64("campaign_id", id), zap.Error(terr))
		}
		return nil, err
	}

	byID := make(map[int64]*store.Lead, len(eligible))
	recipients := make([]outreach.Recipient, 0, len(eligible))
	for _, lead := range eligible {
		byID[lead.ID] = lead
		recipients = append(recipients, recipientFor(lead))
	}

	rate := opts.RateLimit
	if rate <= 0 {
		rate = m.rates.For(channel)
	}

	report := &RunReport{RunID: uuid.NewString()}
	m.log.Info("campaign run started",
		zap.Int64("campaign_id", id),
		zap.String("run_id", report.RunID),
		zap.Int("recipients", len(recipients)),
	)

	var sent, failed int
	onProgress := func(completed, total int, last outreach.DispatchResult) {
		if last.Success {
			sent++
		} else {
			failed++
		}
		m.notify(bookCtx, opts, Progress{
			RunID:      report.RunID,
			CampaignID: id,
			Completed:  completed,
			Total:      total,
			Sent:       sent,
			Failed:     failed,
			Last:       &last,
		})
	}
	report.Results = m.sender.SendBatch(runCtx, channel, recipients, outreach.Template{
		Subject: c.TemplateSubject,
		Body:    c.TemplateBody,
	}, rate, onProgress)

	for _, res := range report.Results {
		switch {
		case res.Success:
			report.Sent++
		case res.Error == outreach.ErrorCancelled:
			report.Cancelled++
		default:
			report.Failed++
		}
	}
	report.Contacted = m.markContacted(bookCtx, byID, report.Results)

	status := store.CampaignCompleted
	if report.Cancelled > 0 || runCtx.Err() != nil {
		status = store.CampaignPaused
	}
	updated, err := m.campaigns.RecordResults(bookCtx, id, status, len(recipients), report.Sent, report.Failed)
	if apperrors.IsConflict(err) && status == store.CampaignCompleted {
		// Paused after the last send but before cancelling the run.
		status = store.CampaignPaused
		updated, err = m.campaigns.RecordResults(bookCtx, id, status, len(recipients), report.Sent, report.Failed)
	}
	if err != nil {
		return nil, fmt.Errorf("recording results for campaign %d: %w", id, err)
	}
	report.Campaign = updated

	if status == store.CampaignCompleted {
		metrics.RecordCampaignCompleted(c.Channel)
	}
	m.notify(bookCtx, opts, Progress{
		RunID:      report.RunID,
		CampaignID: id,
		Completed:  len(report.Results),
		Total:      len(recipients),
		Sent:       report.Sent,
		Failed:     report.Failed,
		Done:       true,
		Status:     status,
	})

	m.log.Info("campaign run finished",
		zap.Int64("campaign_id", id),
		zap.String("run_id", report.RunID),
		zap.String("status", string(status)),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("cancelled", report.Cancelled),
	)
	return report, nil
}

// Pause stops a draft or active campaign. A running batch is cancelled
// after its current recipient.
func (m *Manager) Pause(ctx context.Context, id int64) (*store.Campaign, error) {
	if err := m.campaigns.Transition(ctx, id, store.CampaignPaused, store.CampaignDraft, store.CampaignActive); err != nil {
		return nil, err
	}
	m.mu.Lock()
	cancel := m.running[id]
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.log.Info("campaign paused", zap.Int64("campaign_id", id), zap.Bool("was_running", cancel != nil))
	return m.campaigns.GetByID(ctx, id)
}

func (m *Manager) track(id int64, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[id]; ok {
		return false
	}
	m.running[id] = cancel
	return true
}

func (m *Manager) untrack(id int64) {
	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
}

func (m *Manager) notify(ctx context.Context, opts RunOptions, p Progress) {
	if opts.OnProgress != nil {
		opts.OnProgress(p)
	}
	for _, o := range m.observers {
		o.CampaignProgress(ctx, p)
	}
}

func (m *Manager) markContacted(ctx context.Context, byID map[int64]*store.Lead, results []outreach.DispatchResult) int {
	n := 0
	for _, res := range results {
		lead, ok := byID[res.LeadID]
		if !res.Success || !ok || !leads.CanContact(lead.Status) {
			continue
		}
		if _, err := m.leads.UpdateStatus(ctx, lead.ID, store.StatusContacted); err != nil {
			m.log.Warn("failed to mark lead contacted", zap.Int64("lead_id", lead.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

func recipientFor(lead *store.Lead) outreach.Recipient {
	return outreach.Recipient{
		LeadID: lead.ID,
		Name:   lead.ContactName,
		Email:  lead.ContactEmail,
		Phone:  lead.ContactPhone,
		Vars: map[string]string{
			"team_name":    lead.TeamName,
			"contact_name": lead.ContactName,
			"league":       lead.League,
			"location":     lead.Location,
			"team_type":    lead.TeamType,
		},
	}
}
