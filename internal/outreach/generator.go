package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/kitscout/internal/ai"
	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
)

const generatorPrompt = `You are an outreach copywriter for Kitscout, a custom soccer/football kit brand.
Kitscout lets teams design their own kits online and handles production and delivery.

Write a short, personal first-contact message to a team. Keep it friendly, specific to the team,
and end with a single clear call to action (a free kit mockup). Never invent facts about the team.

Respond with ONLY valid JSON (no markdown):
{"subject": "email subject line, empty for SMS", "body": "message body"}`

// Tones rotated across variants.
var tones = []string{"friendly", "professional", "casual"}

// GenerateRequest describes the lead a message is written for.
type GenerateRequest struct {
	Channel      Channel `json:"channel"`
	TeamName     string  `json:"team_name"`
	ContactName  string  `json:"contact_name"`
	League       string  `json:"league"`
	Location     string  `json:"location"`
	TeamType     string  `json:"team_type"`
	Instructions string  `json:"instructions"`
}

// Vars returns the placeholder values for req.
func (r GenerateRequest) Vars() map[string]string {
	return map[string]string{
		"team_name":    r.TeamName,
		"contact_name": r.ContactName,
		"league":       r.League,
		"location":     r.Location,
	}
}

// Variant is one labelled candidate message.
type Variant struct {
	Template
	Label string `json:"label"`
}

// Generator writes outreach copy with an AI model and falls back to the
// template catalog.
type Generator struct {
	model   ai.Model
	catalog *Catalog
	log     *zap.Logger
}

// NewGenerator creates a generator. A nil model always uses the catalog.
func NewGenerator(model ai.Model, log *zap.Logger) *Generator {
	return &Generator{model: model, catalog: DefaultCatalog(), log: logger.OrNop(log).Named("generator")}
}

// Generate returns personalized copy for req. It never fails.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) Template {
	return g.generate(ctx, req, "")
}

// Variants returns n messages, each written in the next tone.
func (g *Generator) Variants(ctx context.Context, req GenerateRequest, n int) []Variant {
	out := make([]Variant, 0, max(n, 0))
	for i := 0; i < n; i++ {
		tone := tones[i%len(tones)]
		out = append(out, Variant{
			Template: g.generate(ctx, req, tone),
			Label:    fmt.Sprintf("Variant %d (%s)", i+1, tone),
		})
	}
	return out
}

func (g *Generator) generate(ctx context.Context, req GenerateRequest, tone string) Template {
	if req.Channel == "" {
		req.Channel = ChannelEmail
	}
	if g.model == nil {
		return g.fallback(req)
	}

	text, err := g.model.Complete(ctx, ai.Prompt{
		System:      generatorPrompt,
		User:        generatorMessage(req, tone),
		Temperature: 0.7,
		MaxTokens:   500,
		JSON:        true,
	})
	if err != nil {
		g.log.Warn("copy generation failed, using template", zap.String("team", req.TeamName), zap.Error(err))
		return g.fallback(req)
	}

	var t Template
	if err := ai.DecodeJSON(text, &t); err != nil || strings.TrimSpace(t.Body) == "" {
		g.log.Warn("unusable generated copy, using template", zap.String("team", req.TeamName), zap.Error(err))
		return g.fallback(req)
	}
	if req.Channel != ChannelEmail {
		t.Subject = ""
	}
	return t
}

func (g *Generator) fallback(req GenerateRequest) Template {
	return g.catalog.Lookup(req.Channel, req.TeamType).Render(req.Vars())
}

func generatorMessage(req GenerateRequest, tone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\n", req.Channel)
	fmt.Fprintf(&b, "Team: %s\n", req.TeamName)
	fmt.Fprintf(&b, "Contact: %s\n", orDefault(req.ContactName, "Unknown"))
	fmt.Fprintf(&b, "League: %s\n", orDefault(req.League, "Unknown"))
	fmt.Fprintf(&b, "Location: %s\n", orDefault(req.Location, "Unknown"))
	fmt.Fprintf(&b, "Team type: %s\n", orDefault(req.TeamType, "unknown"))
	if req.Channel != ChannelEmail {
		b.WriteString("Keep the body under 160 characters and leave the subject empty.\n")
	}
	if tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", tone)
	}
	if req.Instructions != "" {
		fmt.Fprintf(&b, "Extra instructions: %s\n", req.Instructions)
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
