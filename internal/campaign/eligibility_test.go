package campaign

import (
	"context"
	"testing"

	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEligible(t *testing.T) {
	youth := store.Lead{
		TeamName:         "Eastside Juniors",
		ContactEmail:     "coach@eastside.org",
		TeamType:         "youth",
		CompetitiveLevel: "recreational",
		BuyingPotential:  "medium",
		Status:           store.StatusSegmented,
	}
	with := func(mutate func(*store.Lead)) *store.Lead {
		l := youth
		mutate(&l)
		return &l
	}

	tests := []struct {
		name    string
		lead    *store.Lead
		channel outreach.Channel
		filter  store.SegmentFilter
		want    bool
	}{
		{"empty filter", &youth, outreach.ChannelEmail, store.SegmentFilter{}, true},
		{"matching filter", &youth, outreach.ChannelEmail, store.SegmentFilter{TeamType: "youth", BuyingPotential: "medium"}, true},
		{"status filter", &youth, outreach.ChannelEmail, store.SegmentFilter{Status: store.StatusSegmented}, true},
		{"team type mismatch", &youth, outreach.ChannelEmail, store.SegmentFilter{TeamType: "academy"}, false},
		{"level mismatch", &youth, outreach.ChannelEmail, store.SegmentFilter{CompetitiveLevel: "elite"}, false},
		{"potential mismatch", &youth, outreach.ChannelEmail, store.SegmentFilter{BuyingPotential: "high"}, false},
		{"status mismatch", &youth, outreach.ChannelEmail, store.SegmentFilter{Status: store.StatusNew}, false},
		{"no email", with(func(l *store.Lead) { l.ContactEmail = "" }), outreach.ChannelEmail, store.SegmentFilter{}, false},
		{"sms without phone", &youth, outreach.ChannelSMS, store.SegmentFilter{}, false},
		{"sms with phone", with(func(l *store.Lead) { l.ContactPhone = "+15125550100" }), outreach.ChannelSMS, store.SegmentFilter{}, true},
		{"whatsapp uses phone", with(func(l *store.Lead) { l.ContactPhone = "+15125550100" }), outreach.ChannelWhatsApp, store.SegmentFilter{}, true},
		{"unsubscribed", with(func(l *store.Lead) { l.Status = store.StatusUnsubscribed }), outreach.ChannelEmail, store.SegmentFilter{}, false},
		{"unsubscribed even when filtered for", with(func(l *store.Lead) { l.Status = store.StatusUnsubscribed }), outreach.ChannelEmail,
			store.SegmentFilter{Status: store.StatusUnsubscribed}, false},
		{"unknown channel", &youth, outreach.Channel("fax"), store.SegmentFilter{}, false},
		{"nil lead", nil, outreach.ChannelEmail, store.SegmentFilter{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.lead, tt.channel, tt.filter))
		})
	}
}

func TestFilterFor(t *testing.T) {
	f := store.SegmentFilter{TeamType: "academy", Status: store.StatusSegmented}

	email := FilterFor(outreach.ChannelEmail, f)
	assert.True(t, email.HasEmail)
	assert.False(t, email.HasPhone)
	assert.Equal(t, store.StatusUnsubscribed, email.ExcludeStatus)
	assert.Equal(t, "academy", email.TeamType)
	assert.Equal(t, store.StatusSegmented, email.Status)

	sms := FilterFor(outreach.ChannelSMS, f)
	assert.True(t, sms.HasPhone)
	assert.False(t, sms.HasEmail)
}

type staticLeads []*store.Lead

func (s staticLeads) ListAll(context.Context, store.LeadFilter) ([]*store.Lead, error) {
	return s, nil
}

func TestEngineReappliesEligibility(t *testing.T) {
	// The source ignores the pushed-down filter; the engine must not.
	src := staticLeads{
		{ID: 1, ContactEmail: "a@x.org", TeamType: "youth", Status: store.StatusSegmented},
		{ID: 2, ContactEmail: "b@x.org", TeamType: "academy", Status: store.StatusSegmented},
		{ID: 3, TeamType: "youth", Status: store.StatusSegmented},
		{ID: 4, ContactEmail: "d@x.org", TeamType: "youth", Status: store.StatusUnsubscribed},
	}
	got, err := NewEngine(src).Eligible(context.Background(), outreach.ChannelEmail, store.SegmentFilter{TeamType: "youth"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	_, err = NewEngine(src).Eligible(context.Background(), outreach.Channel("fax"), store.SegmentFilter{})
	assert.Error(t, err)
}
