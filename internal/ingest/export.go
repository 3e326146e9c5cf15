package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fortuna/kitscout/internal/reconciliation"
	"github.com/fortuna/kitscout/internal/validation"
)

// EmailValidator checks a single address.
type EmailValidator interface {
	Validate(ctx context.Context, email string) validation.Result
}

// TeamExportHeader is the first row of ExportTeams output.
var TeamExportHeader = []string{"name", "league", "location", "email", "email_status", "phone", "website", "source"}

// Email status values in a team export.
const (
	EmailStatusValid = "valid"
	EmailStatusRisky = "risky"
)

// riskyAbove is the bounce risk from which a well-formed address is flagged.
const riskyAbove = 0.5

// ExportTeams writes scraped teams as CSV. Teams with an email get an
// email_status of valid or risky; a nil validator leaves the column empty.
func ExportTeams(ctx context.Context, w io.Writer, teams []reconciliation.CanonicalTeam, v EmailValidator) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TeamExportHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, ct := range teams {
		t := ct.Team
		row := []string{
			t.Name,
			t.League,
			t.Location,
			t.Email,
			emailStatus(ctx, v, t.Email),
			t.Phone,
			t.Website,
			string(t.SourceType),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", t.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func emailStatus(ctx context.Context, v EmailValidator, email string) string {
	if email == "" || v == nil {
		return ""
	}
	res := v.Validate(ctx, email)
	if res.FormatValid && res.BounceRisk < riskyAbove {
		return EmailStatusValid
	}
	return EmailStatusRisky
}
