package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/store"
)

const leadColumns = `id, team_id, team_name, league, location, contact_name, contact_email,
	contact_phone, contact_role, team_type, competitive_level, buying_potential,
	custom_kit_likelihood, status, email_valid, email_bounce_risk, notes, created_at, updated_at`

// LeadRepository handles lead data access
type LeadRepository struct {
	db *store.Database
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *store.Database) *LeadRepository {
	return &LeadRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*store.Lead, error) {
	lead := &store.Lead{}
	err := row.Scan(
		&lead.ID, &lead.TeamID, &lead.TeamName, &lead.League, &lead.Location, &lead.ContactName, &lead.ContactEmail,
		&lead.ContactPhone, &lead.ContactRole, &lead.TeamType, &lead.CompetitiveLevel, &lead.BuyingPotential,
		&lead.KitLikelihood, &lead.Status, &lead.EmailValid, &lead.EmailBounceRisk, &lead.Notes,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

// Create inserts lead, defaulting its status to new, and sets its ID.
func (r *LeadRepository) Create(ctx context.Context, lead *store.Lead) error {
	query := `
		INSERT INTO leads (team_id, team_name, league, location, contact_name, contact_email,
			contact_phone, contact_role, team_type, competitive_level, buying_potential,
			custom_kit_likelihood, status, email_valid, email_bounce_risk, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`
	if lead.Status == "" {
		lead.Status = store.StatusNew
	}
	ts := now()
	lead.CreatedAt, lead.UpdatedAt = ts, ts

	err := r.db.QueryRowContext(ctx, query,
		lead.TeamID, lead.TeamName, lead.League, lead.Location, lead.ContactName, lead.ContactEmail,
		lead.ContactPhone, lead.ContactRole, lead.TeamType, lead.CompetitiveLevel, lead.BuyingPotential,
		lead.KitLikelihood, string(lead.Status), lead.EmailValid, lead.EmailBounceRisk, lead.Notes,
		lead.CreatedAt, lead.UpdatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

// GetByID finds a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id int64) (*store.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("get lead", fmt.Sprintf("lead %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying lead: %w", err)
	}
	return lead, nil
}

// List returns leads matching filter, newest first.
func (r *LeadRepository) List(ctx context.Context, filter store.LeadFilter, limit, offset int) ([]*store.Lead, error) {
	c := leadConditions(filter)
	query := `SELECT ` + leadColumns + ` FROM leads` + c.where() +
		` ORDER BY created_at DESC, id DESC LIMIT ` + c.next()
	args := append(c.args, limitOrDefault(limit))
	query += ` OFFSET ` + fmt.Sprintf("$%d", len(args)+1)
	args = append(args, max(offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	defer rows.Close()

	var leads []*store.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListAll pages through every lead matching filter.
func (r *LeadRepository) ListAll(ctx context.Context, filter store.LeadFilter) ([]*store.Lead, error) {
	var all []*store.Lead
	for offset := 0; ; offset += MaxLimit {
		page, err := r.List(ctx, filter, MaxLimit, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < MaxLimit {
			return all, nil
		}
	}
}

// Count returns the number of leads matching filter.
func (r *LeadRepository) Count(ctx context.Context, filter store.LeadFilter) (int, error) {
	c := leadConditions(filter)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+c.where(), c.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	return n, nil
}

// Update applies the non-nil fields of u and returns the stored lead.
func (r *LeadRepository) Update(ctx context.Context, id int64, u store.LeadUpdate) (*store.Lead, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Status != nil {
		set("status", string(*u.Status))
	}
	if u.ContactName != nil {
		set("contact_name", *u.ContactName)
	}
	if u.ContactEmail != nil {
		set("contact_email", *u.ContactEmail)
	}
	if u.ContactPhone != nil {
		set("contact_phone", *u.ContactPhone)
	}
	if u.ContactRole != nil {
		set("contact_role", *u.ContactRole)
	}
	if u.TeamType != nil {
		set("team_type", *u.TeamType)
	}
	if u.CompetitiveLevel != nil {
		set("competitive_level", *u.CompetitiveLevel)
	}
	if u.BuyingPotential != nil {
		set("buying_potential", *u.BuyingPotential)
	}
	if u.KitLikelihood != nil {
		set("custom_kit_likelihood", *u.KitLikelihood)
	}
	if u.EmailValid != nil {
		set("email_valid", *u.EmailValid)
	}
	if u.EmailBounceRisk != nil {
		set("email_bounce_risk", *u.EmailBounceRisk)
	}
	if u.Notes != nil {
		set("notes", *u.Notes)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	set("updated_at", now())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating lead: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, apperrors.NotFound("update lead", fmt.Sprintf("lead %d not found", id))
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus moves a lead to status.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id int64, status store.LeadStatus) (*store.Lead, error) {
	return r.Update(ctx, id, store.LeadUpdate{Status: &status})
}
