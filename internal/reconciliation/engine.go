package reconciliation

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/fortuna/kitscout/internal/ingest/source"
	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
)

// Strategy decides which record of a duplicate group becomes canonical.
type Strategy string

const (
	// PreferSourcePriority orders the batch by source before merging, so the
	// most structured source supplies the canonical record. Input order is
	// kept within a source. This is the default.
	PreferSourcePriority Strategy = "prefer_source_priority"

	// PreserveInputOrder makes the first record in the batch canonical.
	PreserveInputOrder Strategy = "preserve_input_order"
)

var sourcePriority = map[source.SourceType]int{
	source.SourceManual:     0,
	source.SourceMapSearch:  1,
	source.SourceDirectory:  2,
	source.SourceSinglePage: 3,
}

// CanonicalTeam is the surviving record for one name key.
type CanonicalTeam struct {
	Key        string              `json:"key"`
	Team       source.RawTeam      `json:"team"`
	Duplicates int                 `json:"duplicates"`
	Sources    []source.SourceType `json:"sources"`
}

// Metrics tracks cleaning statistics across batches.
type Metrics struct {
	Batches          int
	InputRecords     int
	CanonicalRecords int
	MergedDuplicates int
	Dropped          int
	LastRun          time.Time
}

// Engine normalizes and deduplicates scraped batches.
type Engine struct {
	strategy Strategy
	log      *zap.Logger

	mu      sync.Mutex
	metrics Metrics
}

// NewEngine creates an engine; an empty strategy means PreferSourcePriority.
func NewEngine(strategy Strategy, log *zap.Logger) *Engine {
	if strategy == "" {
		strategy = PreferSourcePriority
	}
	return &Engine{
		strategy: strategy,
		log:      logger.OrNop(log).Named("reconciliation"),
	}
}

// Clean normalizes every record and collapses records sharing a name key.
// The first record seen for a key is canonical; later duplicates only fill
// its empty fields. Records whose key is empty are dropped.
func (e *Engine) Clean(batch []source.RawTeam) []CanonicalTeam {
	ordered := make([]source.RawTeam, len(batch))
	copy(ordered, batch)
	if e.strategy == PreferSourcePriority {
		sort.SliceStable(ordered, func(i, j int) bool {
			return priority(ordered[i].SourceType) < priority(ordered[j].SourceType)
		})
	}

	index := make(map[string]int)
	var out []CanonicalTeam
	dropped, merged := 0, 0

	for _, raw := range ordered {
		team := Normalize(raw)
		key := NameKey(team.Name)
		if key == "" {
			dropped++
			continue
		}

		if i, ok := index[key]; ok {
			c := &out[i]
			mergeInto(&c.Team, team)
			c.Duplicates++
			if !hasSource(c.Sources, team.SourceType) {
				c.Sources = append(c.Sources, team.SourceType)
			}
			merged++
			continue
		}

		team.Raw = maps.Clone(team.Raw)
		index[key] = len(out)
		out = append(out, CanonicalTeam{
			Key:     key,
			Team:    team,
			Sources: []source.SourceType{team.SourceType},
		})
	}

	e.mu.Lock()
	e.metrics.Batches++
	e.metrics.InputRecords += len(batch)
	e.metrics.CanonicalRecords += len(out)
	e.metrics.MergedDuplicates += merged
	e.metrics.Dropped += dropped
	e.metrics.LastRun = time.Now()
	e.mu.Unlock()

	e.log.Debug("batch cleaned",
		zap.Int("input", len(batch)),
		zap.Int("canonical", len(out)),
		zap.Int("merged", merged),
		zap.Int("dropped", dropped))

	return out
}

// Metrics returns a snapshot of the engine's counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

// Teams extracts the canonical records.
func Teams(cs []CanonicalTeam) []source.RawTeam {
	out := make([]source.RawTeam, len(cs))
	for i, c := range cs {
		out[i] = c.Team
	}
	return out
}

// mergeInto fills every empty field of dst from src. Non-empty fields of
// dst are never overwritten.
func mergeInto(dst *source.RawTeam, src source.RawTeam) {
	fill(&dst.League, src.League)
	fill(&dst.Location, src.Location)
	fill(&dst.Website, src.Website)
	fill(&dst.Email, src.Email)
	fill(&dst.Phone, src.Phone)
	fill(&dst.SocialFacebook, src.SocialFacebook)
	fill(&dst.SocialInstagram, src.SocialInstagram)
	fill(&dst.SocialTwitter, src.SocialTwitter)
	fill(&dst.ContactName, src.ContactName)
	fill(&dst.ContactRole, src.ContactRole)
	fill(&dst.SourceURL, src.SourceURL)

	for k, v := range src.Raw {
		if dst.Raw == nil {
			dst.Raw = make(map[string]any)
		}
		if _, ok := dst.Raw[k]; !ok {
			dst.Raw[k] = v
		}
	}
}

func fill(dst *string, value string) {
	if *dst == "" && value != "" {
		*dst = value
	}
}

func priority(t source.SourceType) int {
	if p, ok := sourcePriority[t]; ok {
		return p
	}
	return len(sourcePriority)
}

func hasSource(list []source.SourceType, t source.SourceType) bool {
	for _, s := range list {
		if s == t {
			return true
		}
	}
	return false
}
