package leads

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fortuna/kitscout/internal/store"
)

// ExportHeader is the first row of a lead export.
var ExportHeader = []string{
	"id", "team_name", "league", "location", "contact_name", "contact_email", "contact_phone",
	"contact_role", "team_type", "competitive_level", "buying_potential", "custom_kit_likelihood",
	"status", "email_valid", "email_bounce_risk", "notes", "created_at",
}

// Export writes every lead matching filter as CSV and returns the row count.
func (s *Service) Export(ctx context.Context, w io.Writer, filter store.LeadFilter) (int, error) {
	leads, err := s.store.ListAll(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("loading leads: %w", err)
	}
	if err := WriteCSV(w, leads); err != nil {
		return 0, err
	}
	return len(leads), nil
}

// WriteCSV writes leads with ExportHeader.
func WriteCSV(w io.Writer, leads []*store.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, l := range leads {
		row := []string{
			strconv.FormatInt(l.ID, 10),
			l.TeamName,
			l.League,
			l.Location,
			l.ContactName,
			l.ContactEmail,
			l.ContactPhone,
			l.ContactRole,
			l.TeamType,
			l.CompetitiveLevel,
			l.BuyingPotential,
			formatFloat(l.KitLikelihood),
			string(l.Status),
			formatBool(l.EmailValid),
			formatFloat(l.EmailBounceRisk),
			l.Notes,
			l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for lead %d: %w", l.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
