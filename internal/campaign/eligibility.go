package campaign

import (
	"context"
	"fmt"

	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/store"
)

// LeadSource returns every lead matching a filter.
type LeadSource interface {
	ListAll(ctx context.Context, filter store.LeadFilter) ([]*store.Lead, error)
}

// IsEligible reports whether lead can receive a message on channel under f.
// The lead needs an address for the channel, must not have unsubscribed and
// must match every non-empty field of f.
func IsEligible(lead *store.Lead, channel outreach.Channel, f store.SegmentFilter) bool {
	if lead == nil || lead.Status == store.StatusUnsubscribed {
		return false
	}
	switch channel {
	case outreach.ChannelEmail:
		if lead.ContactEmail == "" {
			return false
		}
	case outreach.ChannelSMS, outreach.ChannelWhatsApp:
		if lead.ContactPhone == "" {
			return false
		}
	default:
		return false
	}

	if f.TeamType != "" && lead.TeamType != f.TeamType {
		return false
	}
	if f.CompetitiveLevel != "" && lead.CompetitiveLevel != f.CompetitiveLevel {
		return false
	}
	if f.BuyingPotential != "" && lead.BuyingPotential != f.BuyingPotential {
		return false
	}
	if f.Status != "" && lead.Status != f.Status {
		return false
	}
	return true
}

// FilterFor converts a segment filter into the lead query that pre-selects
// candidates for channel.
func FilterFor(channel outreach.Channel, f store.SegmentFilter) store.LeadFilter {
	lf := store.LeadFilter{
		Status:           f.Status,
		ExcludeStatus:    store.StatusUnsubscribed,
		TeamType:         f.TeamType,
		CompetitiveLevel: f.CompetitiveLevel,
		BuyingPotential:  f.BuyingPotential,
	}
	if channel == outreach.ChannelEmail {
		lf.HasEmail = true
	} else {
		lf.HasPhone = true
	}
	return lf
}

// Engine selects campaign recipients.
type Engine struct {
	leads LeadSource
}

// NewEngine creates an eligibility engine over leads.
func NewEngine(leads LeadSource) *Engine {
	return &Engine{leads: leads}
}

// Eligible returns every lead that IsEligible accepts, newest first.
func (e *Engine) Eligible(ctx context.Context, channel outreach.Channel, f store.SegmentFilter) ([]*store.Lead, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
	candidates, err := e.leads.ListAll(ctx, FilterFor(channel, f))
	if err != nil {
		return nil, fmt.Errorf("loading candidate leads: %w", err)
	}

	eligible := make([]*store.Lead, 0, len(candidates))
	for _, lead := range candidates {
		if IsEligible(lead, channel, f) {
			eligible = append(eligible, lead)
		}
	}
	return eligible, nil
}
