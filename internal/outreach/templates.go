package outreach

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Channel is an outreach medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelWhatsApp
}

// Template is a subject and body with {placeholder} variables. SMS
// templates have an empty subject.
type Template struct {
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

// Catalog holds the default templates per channel and team type.
type Catalog struct {
	Email map[string]Template `yaml:"email"`
	SMS   map[string]string   `yaml:"sms"`
}

//go:embed templates.yaml
var defaultCatalogYAML []byte

var defaultCatalog = mustParseCatalog(defaultCatalogYAML)

var placeholder = regexp.MustCompile(`\{[^{}]+\}`)

// ParseCatalog reads a catalog; it must define a "default" entry for both channels.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing template catalog: %w", err)
	}
	if _, ok := c.Email["default"]; !ok {
		return nil, fmt.Errorf("template catalog has no default email template")
	}
	if _, ok := c.SMS["default"]; !ok {
		return nil, fmt.Errorf("template catalog has no default sms template")
	}
	return &c, nil
}

func mustParseCatalog(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCatalog returns the built-in templates.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// Lookup returns the template for channel and team type, falling back to
// the channel's default for unknown types.
func (c *Catalog) Lookup(channel Channel, teamType string) Template {
	if channel == ChannelSMS || channel == ChannelWhatsApp {
		body, ok := c.SMS[teamType]
		if !ok {
			body = c.SMS["default"]
		}
		return Template{Body: body}
	}
	t, ok := c.Email[teamType]
	if !ok {
		t = c.Email["default"]
	}
	return t
}

// DefaultTemplate looks up the built-in template.
func DefaultTemplate(channel Channel, teamType string) Template {
	return defaultCatalog.Lookup(channel, teamType)
}

// placeholderDefaults fill placeholders whose variable is missing or empty.
var placeholderDefaults = map[string]string{
	"contact_name": "there",
	"team_name":    "your team",
}

// Fill replaces each {key} whose variable is non-empty in one pass, so
// placeholders inside substituted values are left as they are. Placeholders
// without a value become "there" for contact_name, "your team" for
// team_name, and are removed otherwise.
func Fill(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v := vars[key]; v != "" {
			return v
		}
		return placeholderDefaults[key]
	})
}

// Render fills both parts of t.
func (t Template) Render(vars map[string]string) Template {
	return Template{Subject: Fill(t.Subject, vars), Body: Fill(t.Body, vars)}
}
