package leads_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/leads"
	"github.com/fortuna/kitscout/internal/segmentation"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/fortuna/kitscout/internal/store/repository"
	"github.com/fortuna/kitscout/internal/validation"
	"github.com/stretchr/testify/suite"
)

type fakeValidator map[string]validation.Result

func (f fakeValidator) Validate(_ context.Context, email string) validation.Result {
	if r, ok := f[email]; ok {
		return r
	}
	return validation.Result{Email: email, BounceRisk: 1.0, Reason: "Invalid email format"}
}

// serialValidator records calls and how many overlap.
type serialValidator struct {
	inFlight, maxInFlight atomic.Int32
	calls                 atomic.Int32
	cancel                context.CancelFunc
}

func (v *serialValidator) Validate(_ context.Context, email string) validation.Result {
	n := v.inFlight.Add(1)
	defer v.inFlight.Add(-1)
	if n > v.maxInFlight.Load() {
		v.maxInFlight.Store(n)
	}
	time.Sleep(5 * time.Millisecond)
	if v.calls.Add(1) == 1 && v.cancel != nil {
		v.cancel()
	}
	return validation.Result{Email: email, FormatValid: true, HasMX: true, BounceRisk: 0.1}
}

type rulesClassifier struct{}

func (rulesClassifier) Classify(_ context.Context, in segmentation.Input) segmentation.Result {
	return segmentation.Classify(in.TeamName, in.League)
}

type ServiceSuite struct {
	suite.Suite
	ctx  context.Context
	db   *store.Database
	repo *repository.LeadRepository
	svc  *leads.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := store.Open(s.ctx, "sqlite://:memory:", nil)
	s.Require().NoError(err)
	s.Require().NoError(db.RunMigrations(s.ctx))
	s.db = db
	s.repo = repository.NewLeadRepository(db)

	validator := fakeValidator{
		"coach@oakfc.org":    {Email: "coach@oakfc.org", FormatValid: true, HasMX: true, BounceRisk: 0.1, Reason: "Valid"},
		"oak@mailinator.com": {Email: "oak@mailinator.com", FormatValid: true, BounceRisk: 0.95, Reason: "Disposable email provider"},
	}
	s.svc = leads.NewService(s.repo, validator, rulesClassifier{}, nil)
}

func (s *ServiceSuite) TearDownTest() {
	s.db.Close()
}

func (s *ServiceSuite) add(l store.Lead) *store.Lead {
	s.Require().NoError(s.repo.Create(s.ctx, &l))
	return &l
}

func (s *ServiceSuite) get(id int64) *store.Lead {
	l, err := s.repo.GetByID(s.ctx, id)
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) TestValidateEmails() {
	good := s.add(store.Lead{TeamName: "Oak FC", ContactEmail: "coach@oakfc.org"})
	bad := s.add(store.Lead{TeamName: "Oak Temp", ContactEmail: "oak@mailinator.com", Status: store.StatusSegmented})
	none := s.add(store.Lead{TeamName: "Pine"})

	report, err := s.svc.ValidateEmails(s.ctx, store.LeadFilter{})
	s.Require().NoError(err)
	s.Equal(leads.ValidationReport{Checked: 2, Deliverable: 1, Undeliverable: 1, Promoted: 1}, report)

	g := s.get(good.ID)
	s.Equal(store.StatusValidated, g.Status)
	s.Require().NotNil(g.EmailValid)
	s.True(*g.EmailValid)
	s.Equal(0.1, *g.EmailBounceRisk)

	b := s.get(bad.ID)
	s.Equal(store.StatusSegmented, b.Status, "only new leads are promoted")
	s.False(*b.EmailValid)
	s.Equal(0.95, *b.EmailBounceRisk)

	s.Nil(s.get(none.ID).EmailValid)
}

func (s *ServiceSuite) TestValidateEmailsOneAtATime() {
	for _, email := range []string{"a@oak.org", "b@oak.org", "c@oak.org", "d@oak.org"} {
		s.add(store.Lead{TeamName: email, ContactEmail: email})
	}
	v := &serialValidator{}
	svc := leads.NewService(s.repo, v, rulesClassifier{}, nil)

	report, err := svc.ValidateEmails(s.ctx, store.LeadFilter{})
	s.Require().NoError(err)
	s.Equal(4, report.Checked)
	s.Equal(int32(4), v.calls.Load())
	s.Equal(int32(1), v.maxInFlight.Load())
}

func (s *ServiceSuite) TestValidateEmailsStopsWhenCancelled() {
	for _, email := range []string{"a@oak.org", "b@oak.org", "c@oak.org"} {
		s.add(store.Lead{TeamName: email, ContactEmail: email})
	}
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	v := &serialValidator{cancel: cancel}
	svc := leads.NewService(s.repo, v, rulesClassifier{}, nil)

	report, err := svc.ValidateEmails(ctx, store.LeadFilter{})
	s.ErrorIs(err, context.Canceled)
	s.Equal(int32(1), v.calls.Load())
}

func (s *ServiceSuite) TestSegment() {
	academy := s.add(store.Lead{TeamName: "Riverside Academy U16"})
	youth := s.add(store.Lead{TeamName: "Eastside Juniors", Status: store.StatusValidated})
	done := s.add(store.Lead{TeamName: "Metro Semi-Pro", Status: store.StatusContacted})

	report, err := s.svc.Segment(s.ctx, store.LeadFilter{})
	s.Require().NoError(err)
	s.Equal(2, report.Segmented)
	s.Equal(map[string]int{"academy": 1, "youth": 1}, report.ByType)

	a := s.get(academy.ID)
	s.Equal(store.StatusSegmented, a.Status)
	s.Equal("academy", a.TeamType)
	s.Equal("competitive", a.CompetitiveLevel)
	s.Equal("high", a.BuyingPotential)
	s.Equal(0.8, *a.KitLikelihood)
	s.Contains(a.Notes, "Detected type: academy")

	s.Equal("youth", s.get(youth.ID).TeamType)
	s.Equal(store.StatusContacted, s.get(done.ID).Status)
	s.Empty(s.get(done.ID).TeamType)

	report, err = s.svc.Segment(s.ctx, store.LeadFilter{Status: store.StatusContacted})
	s.Require().NoError(err)
	s.Zero(report.Segmented)
}

func (s *ServiceSuite) TestMarkContacted() {
	seg := s.add(store.Lead{TeamName: "A", Status: store.StatusSegmented, TeamType: "youth"})
	val := s.add(store.Lead{TeamName: "B", Status: store.StatusValidated, TeamType: "youth"})
	fresh := s.add(store.Lead{TeamName: "C", TeamType: "youth"})
	unsub := s.add(store.Lead{TeamName: "D", Status: store.StatusUnsubscribed, TeamType: "youth"})

	n, err := s.svc.MarkContacted(s.ctx, store.LeadFilter{TeamType: "youth"})
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(store.StatusContacted, s.get(seg.ID).Status)
	s.Equal(store.StatusContacted, s.get(val.ID).Status)
	s.Equal(store.StatusNew, s.get(fresh.ID).Status)
	s.Equal(store.StatusUnsubscribed, s.get(unsub.ID).Status)
}

func (s *ServiceSuite) TestUpdate() {
	l := s.add(store.Lead{TeamName: "Oak FC"})

	email := "  Coach@OakFC.org "
	notes := "met at tournament"
	got, err := s.svc.Update(s.ctx, l.ID, store.LeadUpdate{ContactEmail: &email, Notes: &notes})
	s.Require().NoError(err)
	s.Equal("coach@oakfc.org", got.ContactEmail)
	s.Equal("met at tournament", got.Notes)

	got, err = s.svc.SetStatus(s.ctx, l.ID, store.StatusUnsubscribed)
	s.Require().NoError(err)
	s.Equal(store.StatusUnsubscribed, got.Status)

	_, err = s.svc.SetStatus(s.ctx, l.ID, store.StatusNew)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))

	_, err = s.svc.SetStatus(s.ctx, l.ID, "archived")
	s.Equal(apperrors.KindInvalid, apperrors.KindOf(err))

	_, err = s.svc.SetStatus(s.ctx, 404, store.StatusContacted)
	s.True(apperrors.IsNotFound(err))
}

func (s *ServiceSuite) TestExport() {
	s.add(store.Lead{TeamName: "Oak FC", ContactEmail: "coach@oakfc.org", Notes: "likes \"red\", blue"})
	s.add(store.Lead{TeamName: "Pine United", TeamType: "youth"})

	var buf bytes.Buffer
	n, err := s.svc.Export(s.ctx, &buf, store.LeadFilter{})
	s.Require().NoError(err)
	s.Equal(2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal(leads.ExportHeader, rows[0])
	s.Equal("Pine United", rows[1][1])
	s.Equal("Oak FC", rows[2][1])
	s.Equal("likes \"red\", blue", rows[2][15])
	s.Equal("", rows[2][13])
}

func (s *ServiceSuite) TestListReturnsTotal() {
	for _, name := range []string{"A", "B", "C"} {
		s.add(store.Lead{TeamName: name})
	}
	page, total, err := s.svc.List(s.ctx, store.LeadFilter{}, 2, 0)
	s.Require().NoError(err)
	s.Len(page, 2)
	s.Equal(3, total)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to store.LeadStatus
		want     bool
	}{
		{store.StatusNew, store.StatusValidated, true},
		{store.StatusNew, store.StatusSegmented, true},
		{store.StatusNew, store.StatusContacted, false},
		{store.StatusValidated, store.StatusContacted, true},
		{store.StatusSegmented, store.StatusContacted, true},
		{store.StatusContacted, store.StatusResponded, true},
		{store.StatusResponded, store.StatusConverted, true},
		{store.StatusConverted, store.StatusNew, false},
		{store.StatusConverted, store.StatusUnsubscribed, true},
		{store.StatusUnsubscribed, store.StatusNew, false},
		{store.StatusUnsubscribed, store.StatusUnsubscribed, false},
	}
	for _, c := range cases {
		if got := leads.CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
