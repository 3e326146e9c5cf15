package repository

import (
	"context"
	"testing"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.Database {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite://:memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx))
	return db
}

func ptr[T any](v T) *T { return &v }

func TestMigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.RunMigrations(context.Background()))

	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 4, n)
}

func TestTeamRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTeamRepository(newTestDB(t))

	oak := &store.Team{Name: "Oak FC", Email: "info@oakfc.org", SourceType: "map_search"}
	require.NoError(t, repo.Create(ctx, oak))
	require.NoError(t, repo.Create(ctx, &store.Team{Name: "Pine United"}))
	assert.NotZero(t, oak.ID)
	assert.False(t, oak.ScrapedAt.IsZero())

	teams, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Oak FC", teams[0].Name)
	assert.Equal(t, "info@oakfc.org", teams[0].Email)
	assert.Nil(t, teams[0].ScrapeJobID)

	names, err := repo.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{oak.ID: "Oak FC", teams[1].ID: "Pine United"}, names)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLeadRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	teams := NewTeamRepository(db)
	leads := NewLeadRepository(db)

	team := &store.Team{Name: "Oak FC"}
	require.NoError(t, teams.Create(ctx, team))

	lead := &store.Lead{TeamID: &team.ID, TeamName: "Oak FC", ContactEmail: "coach@oakfc.org"}
	require.NoError(t, leads.Create(ctx, lead))
	assert.Equal(t, store.StatusNew, lead.Status)

	got, err := leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oak FC", got.TeamName)
	assert.Equal(t, "coach@oakfc.org", got.ContactEmail)
	require.NotNil(t, got.TeamID)
	assert.Equal(t, team.ID, *got.TeamID)
	assert.Nil(t, got.EmailValid)
	assert.Nil(t, got.KitLikelihood)

	_, err = leads.GetByID(ctx, 999)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestLeadRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadRepository(newTestDB(t))

	for _, l := range []*store.Lead{
		{TeamName: "A", TeamType: "youth", ContactEmail: "a@x.org"},
		{TeamName: "B", TeamType: "youth", Status: store.StatusSegmented, ContactPhone: "+1555"},
		{TeamName: "C", TeamType: "academy", BuyingPotential: "high", Status: store.StatusSegmented},
		{TeamName: "D", Status: store.StatusUnsubscribed, ContactEmail: "d@x.org"},
	} {
		require.NoError(t, leads.Create(ctx, l))
	}

	names := func(filter store.LeadFilter) []string {
		t.Helper()
		list, err := leads.List(ctx, filter, 0, 0)
		require.NoError(t, err)
		out := make([]string, len(list))
		for i, l := range list {
			out[i] = l.TeamName
		}
		return out
	}

	assert.Equal(t, []string{"D", "C", "B", "A"}, names(store.LeadFilter{}))
	assert.Equal(t, []string{"B", "A"}, names(store.LeadFilter{TeamType: "youth"}))
	assert.Equal(t, []string{"C", "B"}, names(store.LeadFilter{Status: store.StatusSegmented}))
	assert.Equal(t, []string{"C"}, names(store.LeadFilter{Status: store.StatusSegmented, BuyingPotential: "high"}))
	assert.Equal(t, []string{"D", "A"}, names(store.LeadFilter{HasEmail: true}))
	assert.Equal(t, []string{"A"}, names(store.LeadFilter{HasEmail: true, ExcludeStatus: store.StatusUnsubscribed}))
	assert.Equal(t, []string{"B"}, names(store.LeadFilter{HasPhone: true}))
	assert.Equal(t, []string{"D", "A"}, names(store.LeadFilter{Statuses: []store.LeadStatus{store.StatusNew, store.StatusUnsubscribed}}))

	page, err := leads.List(ctx, store.LeadFilter{}, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "C", page[0].TeamName)

	n, err := leads.Count(ctx, store.LeadFilter{TeamType: "youth"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := leads.ListAll(ctx, store.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestLeadRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	leads := NewLeadRepository(newTestDB(t))
	lead := &store.Lead{TeamName: "Oak FC", ContactEmail: "coach@oakfc.org"}
	require.NoError(t, leads.Create(ctx, lead))

	got, err := leads.Update(ctx, lead.ID, store.LeadUpdate{
		Status:          ptr(store.StatusValidated),
		EmailValid:      ptr(true),
		EmailBounceRisk: ptr(0.1),
		Notes:           ptr("called twice"),
	})
	require.NoError(t, err)
	assert.Equal(t, store.StatusValidated, got.Status)
	require.NotNil(t, got.EmailValid)
	assert.True(t, *got.EmailValid)
	require.NotNil(t, got.EmailBounceRisk)
	assert.Equal(t, 0.1, *got.EmailBounceRisk)
	assert.Equal(t, "called twice", got.Notes)
	assert.Equal(t, "coach@oakfc.org", got.ContactEmail)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	unchanged, err := leads.Update(ctx, lead.ID, store.LeadUpdate{})
	require.NoError(t, err)
	assert.Equal(t, store.StatusValidated, unchanged.Status)

	_, err = leads.UpdateStatus(ctx, 999, store.StatusContacted)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCampaignRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCampaignRepository(newTestDB(t))

	c := &store.Campaign{
		Name:          "Spring youth push",
		Channel:       "email",
		TemplateBody:  "Hi {contact_name}",
		SegmentFilter: store.SegmentFilter{TeamType: "youth", BuyingPotential: "medium"},
	}
	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, store.CampaignDraft, c.Status)

	err := repo.Create(ctx, &store.Campaign{Name: "Spring youth push", Channel: "sms", TemplateBody: "x"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, store.SegmentFilter{TeamType: "youth", BuyingPotential: "medium"}, got.SegmentFilter)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.Transition(ctx, c.ID, store.CampaignActive, store.CampaignDraft, store.CampaignPaused))
	err = repo.Transition(ctx, c.ID, store.CampaignActive, store.CampaignDraft, store.CampaignPaused)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	done, err := repo.RecordResults(ctx, c.ID, store.CampaignCompleted, 10, 8, 2)
	require.NoError(t, err)
	assert.Equal(t, store.CampaignCompleted, done.Status)
	assert.Equal(t, 10, done.TotalRecipients)
	assert.Equal(t, 8, done.SentCount)
	assert.Equal(t, 2, done.BounceCount)
	assert.NotNil(t, done.CompletedAt)

	paused := &store.Campaign{Name: "Paused mid-run", Channel: "sms", TemplateBody: "x"}
	require.NoError(t, repo.Create(ctx, paused))
	require.NoError(t, repo.Transition(ctx, paused.ID, store.CampaignPaused, store.CampaignDraft))
	_, err = repo.RecordResults(ctx, paused.ID, store.CampaignCompleted, 3, 3, 0)
	assert.True(t, apperrors.IsConflict(err), "only an active campaign can complete")
	kept, err := repo.RecordResults(ctx, paused.ID, store.CampaignPaused, 3, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, store.CampaignPaused, kept.Status)
	assert.Equal(t, 3, kept.SentCount)
	assert.Nil(t, kept.CompletedAt)

	_, err = repo.RecordResults(ctx, 42, store.CampaignCompleted, 1, 1, 0)
	assert.True(t, apperrors.IsNotFound(err))

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := repo.Count(ctx, store.CampaignCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.GetByID(ctx, 42)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(repo.Transition(ctx, 42, store.CampaignPaused)))
}

func TestScrapeJobRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewScrapeJobRepository(newTestDB(t))

	first, err := repo.Start(ctx, "map_search", "youth soccer Austin")
	require.NoError(t, err)
	second, err := repo.Start(ctx, "directory", "https://league.example.org/clubs")
	require.NoError(t, err)

	require.NoError(t, repo.Complete(ctx, first.ID, 12, 10, ""))
	require.NoError(t, repo.Complete(ctx, second.ID, 0, 0, "upstream request failed"))
	assert.True(t, apperrors.IsNotFound(repo.Complete(ctx, 99, 0, 0, "")))

	jobs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, store.JobFailed, jobs[0].Status)
	assert.Equal(t, "upstream request failed", jobs[0].Error)
	assert.Equal(t, store.JobCompleted, jobs[1].Status)
	assert.Equal(t, 12, jobs[1].TotalFound)
	assert.Equal(t, 10, jobs[1].TotalValid)
	assert.NotNil(t, jobs[1].CompletedAt)
}
