package reconciliation

// Matcher finds teams already known to the store by name key, so a new
// scrape can link to existing records instead of creating duplicates.
type Matcher struct {
	byKey map[string]int64
}

// NewMatcher indexes existing team names by their key. When two stored
// names share a key the lowest id wins.
func NewMatcher(names map[int64]string) *Matcher {
	m := &Matcher{byKey: make(map[string]int64, len(names))}
	for id, name := range names {
		key := NameKey(name)
		if key == "" {
			continue
		}
		if existing, ok := m.byKey[key]; !ok || id < existing {
			m.byKey[key] = id
		}
	}
	return m
}

// Match returns the stored team id for name, if any.
func (m *Matcher) Match(name string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.byKey[NameKey(name)]
	return id, ok
}

// Add records a newly stored team.
func (m *Matcher) Add(id int64, name string) {
	if key := NameKey(name); key != "" {
		if _, ok := m.byKey[key]; !ok {
			m.byKey[key] = id
		}
	}
}
