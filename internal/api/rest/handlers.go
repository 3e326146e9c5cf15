package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/campaign"
	"github.com/fortuna/kitscout/internal/ingest"
	"github.com/fortuna/kitscout/internal/leads"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/segmentation"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/fortuna/kitscout/internal/store/repository"
	"github.com/fortuna/kitscout/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxVariants     = 5
	maxBatchEmails  = 500
)

// HealthChecker is a dependency whose reachability /health reports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the components the handlers call. A nil component makes its
// routes answer 503.
type Deps struct {
	Checks     map[string]HealthChecker
	Ingester   *ingest.Ingester
	Leads      *leads.Service
	Campaigns  *campaign.Manager
	Validator  *validation.Validator
	Classifier *segmentation.Classifier
	Generator  *outreach.Generator
	Logger     *zap.Logger
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps Deps
	log  *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps, log: logger.OrNop(deps.Logger).Named("rest")}
}

// HealthCheck reports each dependency; any failure makes the service degraded.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.Checks))
	for name, c := range h.deps.Checks {
		if err := c.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":  state,
		"service": "kitscout",
		"checks":  checks,
	})
}

type scrapeRequest struct {
	ingest.Request
	Save         bool `json:"save"`
	SkipExisting bool `json:"skip_existing"`
}

// Scrape handles POST /api/v1/scrape
func (h *Handler) Scrape(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ingester == nil {
		respondUnavailable(w, "scraping")
		return
	}
	var req scrapeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	batch, err := h.deps.Ingester.Scrape(r.Context(), req.Request)
	if err != nil {
		respondAppError(w, "Scrape failed", err)
		return
	}
	resp := map[string]interface{}{"batch": batch}
	if req.Save {
		report, err := h.deps.Ingester.Save(r.Context(), batch, ingest.SaveOptions{SkipExisting: req.SkipExisting})
		if err != nil {
			respondAppError(w, "Failed to save scrape", err)
			return
		}
		resp["saved"] = report
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListLeads handles GET /api/v1/leads
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	q := r.URL.Query()
	filter, err := parseLeadFilter(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	limit, offset, err := parsePaging(q)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid paging", err)
		return
	}

	list, total, err := h.deps.Leads.List(r.Context(), filter, limit, offset)
	if err != nil {
		respondAppError(w, "Failed to fetch leads", err)
		return
	}
	if list == nil {
		list = []*store.Lead{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leads":  list,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ExportLeads handles GET /api/v1/leads/export
func (h *Handler) ExportLeads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	filter, err := parseLeadFilter(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.deps.Leads.Export(r.Context(), &buf, filter); err != nil {
		respondAppError(w, "Failed to export leads", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leads-%s.csv"`, time.Now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetLead handles GET /api/v1/leads/{leadID}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	id, err := pathID(r, "leadID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid lead ID", err)
		return
	}
	lead, err := h.deps.Leads.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, "Failed to fetch lead", err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// UpdateLead handles PATCH /api/v1/leads/{leadID}
func (h *Handler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	id, err := pathID(r, "leadID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid lead ID", err)
		return
	}
	var u store.LeadUpdate
	if err := decodeJSON(r, &u); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	lead, err := h.deps.Leads.Update(r.Context(), id, u)
	if err != nil {
		respondAppError(w, "Failed to update lead", err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

type leadBatchRequest struct {
	Filter store.LeadFilter `json:"filter"`
}

// ValidateLeads handles POST /api/v1/leads/validate
func (h *Handler) ValidateLeads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	var req leadBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	report, err := h.deps.Leads.ValidateEmails(r.Context(), req.Filter)
	if err != nil {
		respondAppError(w, "Failed to validate leads", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// SegmentLeads handles POST /api/v1/leads/segment
func (h *Handler) SegmentLeads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	var req leadBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	report, err := h.deps.Leads.Segment(r.Context(), req.Filter)
	if err != nil {
		respondAppError(w, "Failed to segment leads", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// MarkContacted handles POST /api/v1/leads/mark-contacted
func (h *Handler) MarkContacted(w http.ResponseWriter, r *http.Request) {
	if h.deps.Leads == nil {
		respondUnavailable(w, "leads")
		return
	}
	var req leadBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	n, err := h.deps.Leads.MarkContacted(r.Context(), req.Filter)
	if err != nil {
		respondAppError(w, "Failed to mark leads contacted", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"contacted": n})
}

type validateEmailRequest struct {
	Email  string   `json:"email"`
	Emails []string `json:"emails"`
}

// ValidateEmail handles POST /api/v1/validate-email
func (h *Handler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	if h.deps.Validator == nil {
		respondUnavailable(w, "email validation")
		return
	}
	var req validateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	switch {
	case len(req.Emails) > maxBatchEmails:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("At most %d emails per request", maxBatchEmails), nil)
	case len(req.Emails) > 0:
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"results": h.deps.Validator.ValidateBatch(r.Context(), req.Emails),
		})
	case strings.TrimSpace(req.Email) != "":
		respondJSON(w, http.StatusOK, h.deps.Validator.Validate(r.Context(), req.Email))
	default:
		respondError(w, http.StatusBadRequest, "email or emails is required", nil)
	}
}

// Classify handles POST /api/v1/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	if h.deps.Classifier == nil {
		respondUnavailable(w, "classification")
		return
	}
	var in segmentation.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(in.TeamName) == "" {
		respondError(w, http.StatusBadRequest, "team_name is required", nil)
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Classifier.Classify(r.Context(), in))
}

type generateRequest struct {
	outreach.GenerateRequest
	Variants int `json:"variants"`
}

// GenerateMessage handles POST /api/v1/messages/generate
func (h *Handler) GenerateMessage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Generator == nil {
		respondUnavailable(w, "message generation")
		return
	}
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Channel != "" && !req.Channel.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Unknown channel %q", req.Channel), nil)
		return
	}
	if req.Variants > 1 {
		n := min(req.Variants, maxVariants)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"variants": h.deps.Generator.Variants(r.Context(), req.GenerateRequest, n),
		})
		return
	}
	respondJSON(w, http.StatusOK, h.deps.Generator.Generate(r.Context(), req.GenerateRequest))
}

// ListCampaigns handles GET /api/v1/campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	limit, _, err := parsePaging(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid paging", err)
		return
	}
	list, err := h.deps.Campaigns.List(r.Context(), limit)
	if err != nil {
		respondAppError(w, "Failed to fetch campaigns", err)
		return
	}
	if list == nil {
		list = []*store.Campaign{}
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateCampaign handles POST /api/v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	var req campaign.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.deps.Campaigns.Create(r.Context(), req)
	if err != nil {
		respondAppError(w, "Failed to create campaign", err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// EligibleLeads handles GET /api/v1/campaigns/eligible
func (h *Handler) EligibleLeads(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	q := r.URL.Query()
	channel := outreach.Channel(q.Get("channel"))
	if channel == "" {
		channel = outreach.ChannelEmail
	}
	filter := store.SegmentFilter{
		TeamType:         q.Get("team_type"),
		CompetitiveLevel: q.Get("competitive_level"),
		BuyingPotential:  q.Get("buying_potential"),
		Status:           store.LeadStatus(q.Get("status")),
	}

	list, err := h.deps.Campaigns.Eligible(r.Context(), channel, filter)
	if err != nil {
		respondAppError(w, "Failed to select eligible leads", err)
		return
	}
	if list == nil {
		list = []*store.Lead{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"channel": channel,
		"count":   len(list),
		"leads":   list,
	})
}

// GetCampaign handles GET /api/v1/campaigns/{campaignID}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	id, err := pathID(r, "campaignID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID", err)
		return
	}
	c, err := h.deps.Campaigns.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, "Failed to fetch campaign", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

type runRequest struct {
	// RateLimit is a Go duration such as "1.5s".
	RateLimit string `json:"rate_limit"`
	Async     bool   `json:"async"`
}

// RunCampaign handles POST /api/v1/campaigns/{campaignID}/run
func (h *Handler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	id, err := pathID(r, "campaignID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID", err)
		return
	}
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	var opts campaign.RunOptions
	if req.RateLimit != "" {
		d, err := time.ParseDuration(req.RateLimit)
		if err != nil || d < 0 {
			respondError(w, http.StatusBadRequest, "Invalid rate_limit (use a duration such as 2s)", err)
			return
		}
		opts.RateLimit = d
	}

	if req.Async {
		c, err := h.deps.Campaigns.Get(r.Context(), id)
		if err != nil {
			respondAppError(w, "Failed to fetch campaign", err)
			return
		}
		if c.Status != store.CampaignDraft {
			respondAppError(w, "Campaign cannot run", apperrors.Conflict("run campaign", fmt.Sprintf("campaign %d is %s", id, c.Status)))
			return
		}
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := h.deps.Campaigns.Run(ctx, id, opts); err != nil {
				h.log.Error("background campaign run failed", zap.Int64("campaign_id", id), zap.Error(err))
			}
		}()
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"campaign_id": id,
			"message":     "Campaign run started",
		})
		return
	}

	report, err := h.deps.Campaigns.Run(r.Context(), id, opts)
	if err != nil {
		respondAppError(w, "Failed to run campaign", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// PauseCampaign handles POST /api/v1/campaigns/{campaignID}/pause
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	if h.deps.Campaigns == nil {
		respondUnavailable(w, "campaigns")
		return
	}
	id, err := pathID(r, "campaignID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign ID", err)
		return
	}
	c, err := h.deps.Campaigns.Pause(r.Context(), id)
	if err != nil {
		respondAppError(w, "Failed to pause campaign", err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func parseLeadFilter(q url.Values) (store.LeadFilter, error) {
	f := store.LeadFilter{
		Status:           store.LeadStatus(q.Get("status")),
		TeamType:         q.Get("team_type"),
		CompetitiveLevel: q.Get("competitive_level"),
		BuyingPotential:  q.Get("buying_potential"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}
	for _, key := range []string{"has_email", "has_phone"} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%s: %w", key, err)
		}
		if key == "has_email" {
			f.HasEmail = v
		} else {
			f.HasPhone = v
		}
	}
	return f, nil
}

func parsePaging(q url.Values) (limit, offset int, err error) {
	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 || l > repository.MaxLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", repository.MaxLimit)
		}
		limit = l
	}
	if raw := q.Get("offset"); raw != "" {
		o, err := strconv.Atoi(raw)
		if err != nil || o < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
		offset = o
	}
	return limit, offset, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

// decodeJSON reads a JSON body; an empty body leaves v unchanged.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}

// respondAppError picks the status from the error's kind.
func respondAppError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	respondError(w, status, message, err)
}

func respondUnavailable(w http.ResponseWriter, feature string) {
	respondError(w, http.StatusServiceUnavailable, feature+" is not configured", nil)
}
