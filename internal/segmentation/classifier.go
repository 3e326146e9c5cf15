package segmentation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/kitscout/internal/ai"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/metrics"
	"go.uber.org/zap"
)

// Team types.
const (
	TypeYouth        = "youth"
	TypeAmateur      = "amateur"
	TypeAdult        = "adult"
	TypeAcademy      = "academy"
	TypeSemiPro      = "semi_pro"
	TypeSundayLeague = "sunday_league"
)

// Competitive levels.
const (
	LevelRecreational = "recreational"
	LevelCompetitive  = "competitive"
	LevelSemiPro      = "semi_pro"
	LevelElite        = "elite"
)

// Buying potential.
const (
	PotentialLow    = "low"
	PotentialMedium = "medium"
	PotentialHigh   = "high"
)

const (
	MethodAI    = "ai"
	MethodRules = "rules"
)

var (
	teamTypes  = set(TypeYouth, TypeAmateur, TypeAdult, TypeAcademy, TypeSemiPro, TypeSundayLeague)
	levels     = set(LevelRecreational, LevelCompetitive, LevelSemiPro, LevelElite)
	potentials = set(PotentialLow, PotentialMedium, PotentialHigh)
)

const systemPrompt = `You are a lead scoring assistant for Kitscout, a custom soccer/football kit brand.
Given information about a team or club, classify it with the following attributes.

Respond with ONLY valid JSON (no markdown, no explanation):
{
    "team_type": "youth" | "amateur" | "adult" | "academy" | "semi_pro" | "sunday_league",
    "competitive_level": "recreational" | "competitive" | "semi_pro" | "elite",
    "buying_potential": "low" | "medium" | "high",
    "custom_kit_likelihood": 0.0-1.0,
    "reasoning": "brief explanation"
}

Scoring guidelines:
- Academies and competitive youth teams = high buying potential (regular kit orders)
- Sunday league / amateur adult teams = medium potential (occasional orders)
- Single individuals or unrelated orgs = low potential
- Teams with websites/social presence = higher custom kit likelihood
- Teams in organized leagues = higher buying potential`

// Input describes the team to classify.
type Input struct {
	TeamName   string `json:"team_name"`
	League     string `json:"league,omitempty"`
	Location   string `json:"location,omitempty"`
	Website    string `json:"website,omitempty"`
	Additional string `json:"additional,omitempty"`
}

// Result is a lead's segment.
type Result struct {
	TeamType         string  `json:"team_type"`
	CompetitiveLevel string  `json:"competitive_level"`
	BuyingPotential  string  `json:"buying_potential"`
	KitLikelihood    float64 `json:"custom_kit_likelihood"`
	Reasoning        string  `json:"reasoning"`
	Method           string  `json:"method"`
}

// Classifier segments leads with an AI model, falling back to keyword rules.
type Classifier struct {
	model ai.Model
	log   *zap.Logger
}

// NewClassifier creates a classifier. A nil model means rules only.
func NewClassifier(model ai.Model, log *zap.Logger) *Classifier {
	return &Classifier{model: model, log: logger.OrNop(log).Named("classifier")}
}

// Classify never fails: any model problem yields the rule-based result.
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	if c.model == nil {
		return c.fallback(in, "AI unavailable")
	}

	text, err := c.model.Complete(ctx, ai.Prompt{
		System:      systemPrompt,
		User:        userMessage(in),
		Temperature: 0.3,
		MaxTokens:   200,
		JSON:        true,
	})
	if err != nil {
		c.log.Warn("classification model failed, using rules", zap.String("team", in.TeamName), zap.Error(err))
		return c.fallback(in, "AI unavailable")
	}

	var res Result
	if err := ai.DecodeJSON(text, &res); err != nil {
		c.log.Warn("unparseable classification, using rules", zap.String("team", in.TeamName), zap.Error(err))
		return c.fallback(in, "AI response unparseable")
	}
	if !teamTypes[res.TeamType] || !levels[res.CompetitiveLevel] || !potentials[res.BuyingPotential] {
		c.log.Warn("classification outside vocabulary, using rules",
			zap.String("team", in.TeamName), zap.String("team_type", res.TeamType))
		return c.fallback(in, "AI response unparseable")
	}

	res.KitLikelihood = clamp(res.KitLikelihood)
	res.Method = MethodAI
	metrics.RecordClassification(MethodAI)
	return res
}

// ClassifyBatch classifies each input in order.
func (c *Classifier) ClassifyBatch(ctx context.Context, inputs []Input) []Result {
	out := make([]Result, len(inputs))
	for i, in := range inputs {
		out[i] = c.Classify(ctx, in)
	}
	return out
}

func (c *Classifier) fallback(in Input, why string) Result {
	res := Classify(in.TeamName, in.League)
	res.Reasoning = fmt.Sprintf("Rule-based classification (%s). Detected type: %s", why, res.TeamType)
	metrics.RecordClassification(MethodRules)
	return res
}

// Classify applies the keyword rules to a team name and league.
func Classify(teamName, league string) Result {
	name := strings.ToLower(teamName)
	lg := strings.ToLower(league)

	teamType := TypeAmateur
	switch {
	case containsAny(name, "academy", "development", "school"):
		teamType = TypeAcademy
	case containsAny(name, "youth", "junior", "u12", "u14", "u16", "u18", "u21", "boys", "girls"):
		teamType = TypeYouth
	case containsAny(name, "sunday", "recreational", "social") || containsAny(lg, "sunday", "recreational", "social"):
		teamType = TypeSundayLeague
	case containsAny(name, "semi-pro", "semipro", "semi pro"):
		teamType = TypeSemiPro
	}

	level := LevelRecreational
	switch {
	case teamType == TypeAcademy || teamType == TypeSemiPro || teamType == TypeYouth:
		level = LevelCompetitive
	case containsAny(lg, "premier", "championship", "division 1", "elite"):
		level = LevelCompetitive
	}

	potential := PotentialMedium
	if teamType == TypeAcademy || teamType == TypeSemiPro {
		potential = PotentialHigh
	}

	likelihood := 0.5
	switch teamType {
	case TypeAcademy:
		likelihood = 0.8
	case TypeYouth:
		likelihood = 0.7
	case TypeSundayLeague:
		likelihood = 0.4
	}

	return Result{
		TeamType:         teamType,
		CompetitiveLevel: level,
		BuyingPotential:  potential,
		KitLikelihood:    likelihood,
		Reasoning:        "Rule-based classification. Detected type: " + teamType,
		Method:           MethodRules,
	}
}

func userMessage(in Input) string {
	return fmt.Sprintf("Team: %s\nLeague: %s\nLocation: %s\nWebsite: %s\nAdditional: %s",
		in.TeamName,
		orDefault(in.League, "Unknown"),
		orDefault(in.Location, "Unknown"),
		orDefault(in.Website, "None"),
		orDefault(in.Additional, "None"))
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
