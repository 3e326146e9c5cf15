package reconciliation

import (
	"regexp"
	"strings"

	"github.com/fortuna/kitscout/internal/ingest/source"
)

var (
	whitespace   = regexp.MustCompile(`\s+`)
	clubSuffixes = regexp.MustCompile(`(?i)\b(?:FC|SC|AFC|CF|United|City|Town|Athletic)\b`)
)

// NameKey is the matching key for a team name: club suffixes stripped,
// whitespace collapsed, lowercased. "Oak FC", "oak fc" and "Oak" share a key.
func NameKey(name string) string {
	key := collapse(name)
	key = clubSuffixes.ReplaceAllString(key, "")
	return strings.ToLower(collapse(key))
}

// Normalize returns a copy of team with every contact field in canonical
// form. Applying it twice changes nothing.
func Normalize(team source.RawTeam) source.RawTeam {
	team.Name = collapse(team.Name)
	team.Email = NormalizeEmail(team.Email)
	team.Phone = NormalizePhone(team.Phone)
	team.Website = NormalizeURL(team.Website)
	team.Location = strings.TrimSpace(team.Location)
	team.League = strings.TrimSpace(team.League)
	team.ContactName = strings.TrimSpace(team.ContactName)
	team.ContactRole = strings.TrimSpace(team.ContactRole)
	team.SocialFacebook = strings.TrimSpace(team.SocialFacebook)
	team.SocialInstagram = strings.TrimSpace(team.SocialInstagram)
	team.SocialTwitter = strings.TrimSpace(team.SocialTwitter)
	team.SourceURL = strings.TrimSpace(team.SourceURL)
	return team
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps a leading plus and the digits.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// NormalizeURL adds https:// when no http(s) scheme is present and drops
// trailing slashes and whitespace.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/ \t\r\n")
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	return u
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
