package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/segmentation"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/fortuna/kitscout/internal/validation"
	"go.uber.org/zap"
)

// Store is the lead persistence the service needs.
type Store interface {
	GetByID(ctx context.Context, id int64) (*store.Lead, error)
	List(ctx context.Context, filter store.LeadFilter, limit, offset int) ([]*store.Lead, error)
	ListAll(ctx context.Context, filter store.LeadFilter) ([]*store.Lead, error)
	Count(ctx context.Context, filter store.LeadFilter) (int, error)
	Update(ctx context.Context, id int64, u store.LeadUpdate) (*store.Lead, error)
}

// EmailValidator scores an address.
type EmailValidator interface {
	Validate(ctx context.Context, email string) validation.Result
}

// Classifier segments a team.
type Classifier interface {
	Classify(ctx context.Context, in segmentation.Input) segmentation.Result
}

// Service runs the lead lifecycle: validation, segmentation, contact
// tracking and operator edits.
type Service struct {
	store      Store
	validator  EmailValidator
	classifier Classifier
	log        *zap.Logger
}

// NewService creates a lead service.
func NewService(st Store, validator EmailValidator, classifier Classifier, log *zap.Logger) *Service {
	return &Service{
		store:      st,
		validator:  validator,
		classifier: classifier,
		log:        logger.OrNop(log).Named("leads"),
	}
}

// ValidationReport summarizes a ValidateEmails run.
type ValidationReport struct {
	Checked       int `json:"checked"`
	Deliverable   int `json:"deliverable"`
	Undeliverable int `json:"undeliverable"`
	Promoted      int `json:"promoted"`
}

// SegmentReport summarizes a Segment run.
type SegmentReport struct {
	Segmented int            `json:"segmented"`
	ByType    map[string]int `json:"by_type"`
	ByMethod  map[string]int `json:"by_method"`
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, id int64) (*store.Lead, error) {
	return s.store.GetByID(ctx, id)
}

// List returns a page of leads and the total matching filter.
func (s *Service) List(ctx context.Context, filter store.LeadFilter, limit, offset int) ([]*store.Lead, int, error) {
	list, err := s.store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ValidateEmails scores every lead with an email that matches filter, one
// at a time, storing the deliverable flag and bounce risk. New leads become
// validated.
func (s *Service) ValidateEmails(ctx context.Context, filter store.LeadFilter) (ValidationReport, error) {
	if s.validator == nil {
		return ValidationReport{}, apperrors.Configuration("validate emails", "no email validator configured")
	}
	filter.HasEmail = true
	leads, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("loading leads: %w", err)
	}

	var report ValidationReport
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.validator.Validate(ctx, lead.ContactEmail)
		deliverable := res.Deliverable()
		risk := res.BounceRisk
		update := store.LeadUpdate{EmailValid: &deliverable, EmailBounceRisk: &risk}
		if lead.Status == store.StatusNew {
			validated := store.StatusValidated
			update.Status = &validated
			report.Promoted++
		}
		if _, err := s.store.Update(ctx, lead.ID, update); err != nil {
			return report, fmt.Errorf("storing validation for lead %d: %w", lead.ID, err)
		}

		report.Checked++
		if deliverable {
			report.Deliverable++
		} else {
			report.Undeliverable++
		}
	}

	s.log.Info("validated lead emails",
		zap.Int("checked", report.Checked), zap.Int("deliverable", report.Deliverable))
	return report, nil
}

// Segment classifies new and validated leads matching filter and marks them
// segmented.
func (s *Service) Segment(ctx context.Context, filter store.LeadFilter) (SegmentReport, error) {
	report := SegmentReport{ByType: map[string]int{}, ByMethod: map[string]int{}}
	if s.classifier == nil {
		return report, apperrors.Configuration("segment leads", "no classifier configured")
	}
	if filter.Status != "" && !contains(Segmentable, filter.Status) {
		return report, nil
	}
	if filter.Status == "" {
		filter.Statuses = Segmentable
	}

	leads, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return report, fmt.Errorf("loading leads: %w", err)
	}

	segmented := store.StatusSegmented
	for _, lead := range leads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.classifier.Classify(ctx, segmentation.Input{
			TeamName:   lead.TeamName,
			League:     lead.League,
			Location:   lead.Location,
			Additional: additional(lead),
		})
		likelihood := res.KitLikelihood
		notes := res.Reasoning
		_, err := s.store.Update(ctx, lead.ID, store.LeadUpdate{
			Status:           &segmented,
			TeamType:         &res.TeamType,
			CompetitiveLevel: &res.CompetitiveLevel,
			BuyingPotential:  &res.BuyingPotential,
			KitLikelihood:    &likelihood,
			Notes:            &notes,
		})
		if err != nil {
			return report, fmt.Errorf("storing segment for lead %d: %w", lead.ID, err)
		}
		report.Segmented++
		report.ByType[res.TeamType]++
		report.ByMethod[res.Method]++
	}

	s.log.Info("segmented leads", zap.Int("segmented", report.Segmented))
	return report, nil
}

// MarkContacted moves every validated, enriched or segmented lead matching
// filter to contacted and returns how many moved.
func (s *Service) MarkContacted(ctx context.Context, filter store.LeadFilter) (int, error) {
	if filter.Status != "" && !CanContact(filter.Status) {
		return 0, nil
	}
	if filter.Status == "" {
		filter.Statuses = Contactable
	}
	leads, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("loading leads: %w", err)
	}

	contacted := store.StatusContacted
	n := 0
	for _, lead := range leads {
		if _, err := s.store.Update(ctx, lead.ID, store.LeadUpdate{Status: &contacted}); err != nil {
			return n, fmt.Errorf("marking lead %d contacted: %w", lead.ID, err)
		}
		n++
	}
	s.log.Info("marked leads contacted", zap.Int("count", n))
	return n, nil
}

// Update applies operator edits. Any known status may be set except that an
// unsubscribed lead stays unsubscribed.
func (s *Service) Update(ctx context.Context, id int64, u store.LeadUpdate) (*store.Lead, error) {
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, apperrors.Invalid("update lead", fmt.Sprintf("unknown status %q", *u.Status))
		}
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == store.StatusUnsubscribed && *u.Status != store.StatusUnsubscribed {
			return nil, apperrors.Conflict("update lead", fmt.Sprintf("lead %d is unsubscribed", id))
		}
	}
	if u.ContactEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*u.ContactEmail))
		u.ContactEmail = &email
	}
	return s.store.Update(ctx, id, u)
}

// SetStatus is Update for the status alone.
func (s *Service) SetStatus(ctx context.Context, id int64, status store.LeadStatus) (*store.Lead, error) {
	return s.Update(ctx, id, store.LeadUpdate{Status: &status})
}

func additional(lead *store.Lead) string {
	var parts []string
	if lead.ContactRole != "" {
		parts = append(parts, "Contact role: "+lead.ContactRole)
	}
	if lead.ContactEmail != "" {
		parts = append(parts, "Has email contact")
	}
	if lead.ContactPhone != "" {
		parts = append(parts, "Has phone contact")
	}
	return strings.Join(parts, "; ")
}
