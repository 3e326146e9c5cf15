package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/fortuna/kitscout/internal/store"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

func now() time.Time {
	return time.Now().UTC()
}

func limitOrDefault(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// conditions accumulates WHERE clauses with numbered placeholders.
type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, args ...any) {
	for _, a := range args {
		c.args = append(c.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(c.args)), 1)
	}
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) next() string {
	return fmt.Sprintf("$%d", len(c.args)+1)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func leadConditions(f store.LeadFilter) *conditions {
	c := &conditions{}
	if f.Status != "" {
		c.add("status = ?", string(f.Status))
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		args := make([]any, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args[i] = string(s)
		}
		c.add("status IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if f.ExcludeStatus != "" {
		c.add("status <> ?", string(f.ExcludeStatus))
	}
	if f.TeamType != "" {
		c.add("team_type = ?", f.TeamType)
	}
	if f.CompetitiveLevel != "" {
		c.add("competitive_level = ?", f.CompetitiveLevel)
	}
	if f.BuyingPotential != "" {
		c.add("buying_potential = ?", f.BuyingPotential)
	}
	if f.HasEmail {
		c.add("contact_email <> ''")
	}
	if f.HasPhone {
		c.add("contact_phone <> ''")
	}
	return c
}
