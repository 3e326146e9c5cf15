package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/store"
)

const campaignColumns = `id, name, channel, status, template_subject, template_body, segment_filter,
	total_recipients, sent_count, open_count, reply_count, bounce_count, created_at, updated_at, completed_at`

// CampaignRepository handles campaign data access
type CampaignRepository struct {
	db *store.Database
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *store.Database) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func scanCampaign(row rowScanner) (*store.Campaign, error) {
	c := &store.Campaign{}
	var filter string
	err := row.Scan(
		&c.ID, &c.Name, &c.Channel, &c.Status, &c.TemplateSubject, &c.TemplateBody, &filter,
		&c.TotalRecipients, &c.SentCount, &c.OpenCount, &c.ReplyCount, &c.BounceCount,
		&c.CreatedAt, &c.UpdatedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		if err := json.Unmarshal([]byte(filter), &c.SegmentFilter); err != nil {
			return nil, fmt.Errorf("decoding segment filter of campaign %d: %w", c.ID, err)
		}
	}
	return c, nil
}

// Create inserts a campaign and sets its ID. Names are unique.
func (r *CampaignRepository) Create(ctx context.Context, c *store.Campaign) error {
	query := `
		INSERT INTO campaigns (name, channel, status, template_subject, template_body, segment_filter,
			total_recipients, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	filter, err := json.Marshal(c.SegmentFilter)
	if err != nil {
		return fmt.Errorf("encoding segment filter: %w", err)
	}
	if c.Status == "" {
		c.Status = store.CampaignDraft
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	err = r.db.QueryRowContext(ctx, query,
		c.Name, c.Channel, string(c.Status), c.TemplateSubject, c.TemplateBody, string(filter),
		c.TotalRecipients, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if store.IsUniqueViolation(err) {
		return apperrors.Conflict("create campaign", fmt.Sprintf("campaign %q already exists", c.Name))
	}
	if err != nil {
		return fmt.Errorf("inserting campaign: %w", err)
	}
	return nil
}

// GetByID finds a campaign by ID
func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*store.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("get campaign", fmt.Sprintf("campaign %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying campaign: %w", err)
	}
	return c, nil
}

// List returns campaigns newest first.
func (r *CampaignRepository) List(ctx context.Context, limit int) ([]*store.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("querying campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*store.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// Transition moves a campaign to status `to` only if its current status is
// one of from. It returns a conflict error otherwise.
func (r *CampaignRepository) Transition(ctx context.Context, id int64, to store.CampaignStatus, from ...store.CampaignStatus) error {
	args := []any{string(to), now(), id}
	marks := make([]string, len(from))
	for i, s := range from {
		args = append(args, string(s))
		marks[i] = fmt.Sprintf("$%d", len(args))
	}
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`
	if len(from) > 0 {
		query += ` AND status IN (` + strings.Join(marks, ", ") + `)`
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.Conflict("campaign status",
		fmt.Sprintf("campaign %d is %s, cannot move to %s", id, current.Status, to))
}

// RecordResults stores a run's counters and its final status. completed_at
// is set only when status is completed, and only an active campaign can be
// completed: if it was paused meanwhile, a Conflict error is returned and
// nothing is written.
func (r *CampaignRepository) RecordResults(ctx context.Context, id int64, status store.CampaignStatus,
	recipients, sent, bounced int) (*store.Campaign, error) {
	ts := now()
	var completedAt *time.Time
	query := `
		UPDATE campaigns
		SET status = $1, total_recipients = $2, sent_count = $3, bounce_count = $4,
			updated_at = $5, completed_at = $6
		WHERE id = $7
	`
	if status == store.CampaignCompleted {
		completedAt = &ts
		query += ` AND status = 'active'`
	}
	res, err := r.db.ExecContext(ctx, query, string(status), recipients, sent, bounced, ts, completedAt, id)
	if err != nil {
		return nil, fmt.Errorf("recording campaign results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("recording campaign results: %w", err)
	}
	if n == 0 {
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Conflict("record campaign results",
			fmt.Sprintf("campaign %d is %s, cannot move to %s", id, current.Status, status))
	}
	return r.GetByID(ctx, id)
}

// Count returns the number of campaigns, optionally with a given status.
func (r *CampaignRepository) Count(ctx context.Context, status store.CampaignStatus) (int, error) {
	query := `SELECT COUNT(*) FROM campaigns`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting campaigns: %w", err)
	}
	return n, nil
}
