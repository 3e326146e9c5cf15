package store

import (
	"time"
)

// LeadStatus is a lead's position in the outreach lifecycle.
type LeadStatus string

const (
	StatusNew          LeadStatus = "new"
	StatusValidated    LeadStatus = "validated"
	StatusEnriched     LeadStatus = "enriched"
	StatusSegmented    LeadStatus = "segmented"
	StatusContacted    LeadStatus = "contacted"
	StatusResponded    LeadStatus = "responded"
	StatusConverted    LeadStatus = "converted"
	StatusUnsubscribed LeadStatus = "unsubscribed"
)

// LeadStatuses lists every status in lifecycle order.
var LeadStatuses = []LeadStatus{
	StatusNew, StatusValidated, StatusEnriched, StatusSegmented,
	StatusContacted, StatusResponded, StatusConverted, StatusUnsubscribed,
}

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	for _, known := range LeadStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CampaignStatus tracks a campaign run.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// ScrapeJobStatus tracks an acquisition run.
type ScrapeJobStatus string

const (
	JobPending   ScrapeJobStatus = "pending"
	JobRunning   ScrapeJobStatus = "running"
	JobCompleted ScrapeJobStatus = "completed"
	JobFailed    ScrapeJobStatus = "failed"
)

// Team is a stored canonical team.
type Team struct {
	ID               int64     `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	League           string    `json:"league,omitempty" db:"league"`
	Location         string    `json:"location,omitempty" db:"location"`
	Website          string    `json:"website,omitempty" db:"website"`
	Email            string    `json:"email,omitempty" db:"email"`
	Phone            string    `json:"phone,omitempty" db:"phone"`
	SocialFacebook   string    `json:"social_facebook,omitempty" db:"social_facebook"`
	SocialInstagram  string    `json:"social_instagram,omitempty" db:"social_instagram"`
	SocialTwitter    string    `json:"social_twitter,omitempty" db:"social_twitter"`
	TeamType         string    `json:"team_type,omitempty" db:"team_type"`
	CompetitiveLevel string    `json:"competitive_level,omitempty" db:"competitive_level"`
	SourceURL        string    `json:"source_url,omitempty" db:"source_url"`
	SourceType       string    `json:"source_type,omitempty" db:"source_type"`
	ScrapeJobID      *int64    `json:"scrape_job_id,omitempty" db:"scrape_job_id"`
	ScrapedAt        time.Time `json:"scraped_at" db:"scraped_at"`
}

// Lead is a contactable team record.
type Lead struct {
	ID               int64      `json:"id" db:"id"`
	TeamID           *int64     `json:"team_id,omitempty" db:"team_id"`
	TeamName         string     `json:"team_name" db:"team_name"`
	League           string     `json:"league,omitempty" db:"league"`
	Location         string     `json:"location,omitempty" db:"location"`
	ContactName      string     `json:"contact_name,omitempty" db:"contact_name"`
	ContactEmail     string     `json:"contact_email,omitempty" db:"contact_email"`
	ContactPhone     string     `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactRole      string     `json:"contact_role,omitempty" db:"contact_role"`
	TeamType         string     `json:"team_type,omitempty" db:"team_type"`
	CompetitiveLevel string     `json:"competitive_level,omitempty" db:"competitive_level"`
	BuyingPotential  string     `json:"buying_potential,omitempty" db:"buying_potential"`
	KitLikelihood    *float64   `json:"custom_kit_likelihood,omitempty" db:"custom_kit_likelihood"`
	Status           LeadStatus `json:"status" db:"status"`
	EmailValid       *bool      `json:"email_valid,omitempty" db:"email_valid"`
	EmailBounceRisk  *float64   `json:"email_bounce_risk,omitempty" db:"email_bounce_risk"`
	Notes            string     `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// LeadFilter narrows lead queries. Empty fields match everything.
type LeadFilter struct {
	Status           LeadStatus   `json:"status,omitempty"`
	Statuses         []LeadStatus `json:"statuses,omitempty"`
	ExcludeStatus    LeadStatus   `json:"exclude_status,omitempty"`
	TeamType         string       `json:"team_type,omitempty"`
	CompetitiveLevel string       `json:"competitive_level,omitempty"`
	BuyingPotential  string       `json:"buying_potential,omitempty"`
	HasEmail         bool         `json:"has_email,omitempty"`
	HasPhone         bool         `json:"has_phone,omitempty"`
}

// LeadUpdate carries the fields to change; nil fields are left alone.
type LeadUpdate struct {
	Status           *LeadStatus `json:"status,omitempty"`
	ContactName      *string     `json:"contact_name,omitempty"`
	ContactEmail     *string     `json:"contact_email,omitempty"`
	ContactPhone     *string     `json:"contact_phone,omitempty"`
	ContactRole      *string     `json:"contact_role,omitempty"`
	TeamType         *string     `json:"team_type,omitempty"`
	CompetitiveLevel *string     `json:"competitive_level,omitempty"`
	BuyingPotential  *string     `json:"buying_potential,omitempty"`
	KitLikelihood    *float64    `json:"custom_kit_likelihood,omitempty"`
	EmailValid       *bool       `json:"email_valid,omitempty"`
	EmailBounceRisk  *float64    `json:"email_bounce_risk,omitempty"`
	Notes            *string     `json:"notes,omitempty"`
}

// Empty reports whether u changes nothing.
func (u LeadUpdate) Empty() bool {
	return u == LeadUpdate{}
}

// SegmentFilter selects campaign recipients. Empty fields match everything.
type SegmentFilter struct {
	TeamType         string     `json:"team_type,omitempty"`
	CompetitiveLevel string     `json:"competitive_level,omitempty"`
	BuyingPotential  string     `json:"buying_potential,omitempty"`
	Status           LeadStatus `json:"status,omitempty"`
}

// Campaign is a named outreach run over a segment.
type Campaign struct {
	ID              int64          `json:"id" db:"id"`
	Name            string         `json:"name" db:"name"`
	Channel         string         `json:"channel" db:"channel"`
	Status          CampaignStatus `json:"status" db:"status"`
	TemplateSubject string         `json:"template_subject,omitempty" db:"template_subject"`
	TemplateBody    string         `json:"template_body" db:"template_body"`
	SegmentFilter   SegmentFilter  `json:"segment_filter" db:"segment_filter"`
	TotalRecipients int            `json:"total_recipients" db:"total_recipients"`
	SentCount       int            `json:"sent_count" db:"sent_count"`
	OpenCount       int            `json:"open_count" db:"open_count"`
	ReplyCount      int            `json:"reply_count" db:"reply_count"`
	BounceCount     int            `json:"bounce_count" db:"bounce_count"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// ScrapeJob records one acquisition run.
type ScrapeJob struct {
	ID          int64           `json:"id" db:"id"`
	Source      string          `json:"source" db:"source"`
	Query       string          `json:"query" db:"query"`
	Status      ScrapeJobStatus `json:"status" db:"status"`
	TotalFound  int             `json:"total_found" db:"total_found"`
	TotalValid  int             `json:"total_valid" db:"total_valid"`
	Error       string          `json:"error,omitempty" db:"error"`
	StartedAt   *time.Time      `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}
