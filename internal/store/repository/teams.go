package repository

import (
	"context"
	"fmt"

	"github.com/fortuna/kitscout/internal/store"
)

const teamColumns = `id, name, league, location, website, email, phone,
	social_facebook, social_instagram, social_twitter, team_type, competitive_level,
	source_url, source_type, scrape_job_id, scraped_at`

// TeamRepository handles team data access
type TeamRepository struct {
	db *store.Database
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *store.Database) *TeamRepository {
	return &TeamRepository{db: db}
}

// Create inserts team and sets its ID.
func (r *TeamRepository) Create(ctx context.Context, team *store.Team) error {
	query := `
		INSERT INTO teams (name, league, location, website, email, phone,
			social_facebook, social_instagram, social_twitter, team_type, competitive_level,
			source_url, source_type, scrape_job_id, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	if team.ScrapedAt.IsZero() {
		team.ScrapedAt = now()
	}

	err := r.db.QueryRowContext(ctx, query,
		team.Name, team.League, team.Location, team.Website, team.Email, team.Phone,
		team.SocialFacebook, team.SocialInstagram, team.SocialTwitter, team.TeamType, team.CompetitiveLevel,
		team.SourceURL, team.SourceType, team.ScrapeJobID, team.ScrapedAt,
	).Scan(&team.ID)
	if err != nil {
		return fmt.Errorf("inserting team: %w", err)
	}
	return nil
}

// List returns teams in insertion order.
func (r *TeamRepository) List(ctx context.Context, limit, offset int) ([]*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limitOrDefault(limit), max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*store.Team
	for rows.Next() {
		team := &store.Team{}
		err := rows.Scan(
			&team.ID, &team.Name, &team.League, &team.Location, &team.Website, &team.Email, &team.Phone,
			&team.SocialFacebook, &team.SocialInstagram, &team.SocialTwitter, &team.TeamType, &team.CompetitiveLevel,
			&team.SourceURL, &team.SourceType, &team.ScrapeJobID, &team.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// Names returns every stored team name keyed by ID.
func (r *TeamRepository) Names(ctx context.Context) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM teams`)
	if err != nil {
		return nil, fmt.Errorf("querying team names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning team name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// Count returns the number of stored teams.
func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting teams: %w", err)
	}
	return n, nil
}
