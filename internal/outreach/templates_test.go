package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFill(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{"all provided", "Hi {contact_name} of {team_name}", map[string]string{"contact_name": "Sam", "team_name": "Oak FC"}, "Hi Sam of Oak FC"},
		{"contact default", "Hi {contact_name}!", nil, "Hi there!"},
		{"team default", "Kits for {team_name}", map[string]string{}, "Kits for your team"},
		{"empty value counts as missing", "Hi {contact_name}", map[string]string{"contact_name": ""}, "Hi there"},
		{"unknown removed", "In {location}, {league}.", map[string]string{"league": "Metro"}, "In , Metro."},
		{"repeated", "{team_name} / {team_name}", map[string]string{"team_name": "Pine"}, "Pine / Pine"},
		{"no placeholders", "Plain text", map[string]string{"team_name": "Pine"}, "Plain text"},
		{"value containing a placeholder", "{team_name} / {contact_name}",
			map[string]string{"team_name": "{contact_name} XI", "contact_name": "Sam"}, "{contact_name} XI / Sam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fill(tt.template, tt.vars))
		})
	}
}

func TestFillIsStable(t *testing.T) {
	vars := map[string]string{"team_name": "{contact_name} XI", "contact_name": "Sam", "league": "{team_name}"}
	want := Fill("{team_name} / {contact_name} / {league}", vars)
	for i := 0; i < 100; i++ {
		require.Equal(t, want, Fill("{team_name} / {contact_name} / {league}", vars))
	}
}

func TestDefaultTemplate(t *testing.T) {
	youth := DefaultTemplate(ChannelEmail, "youth")
	assert.Contains(t, youth.Subject, "{team_name}")
	assert.Contains(t, youth.Body, "youth teams")

	assert.Equal(t, DefaultTemplate(ChannelEmail, "default"), DefaultTemplate(ChannelEmail, "sunday_league"))

	sms := DefaultTemplate(ChannelSMS, "academy")
	assert.Empty(t, sms.Subject)
	assert.Contains(t, sms.Body, "academies")

	assert.Equal(t, DefaultTemplate(ChannelSMS, "default"), DefaultTemplate(ChannelSMS, "amateur"))
	assert.Equal(t, DefaultTemplate(ChannelSMS, "youth"), DefaultTemplate(ChannelWhatsApp, "youth"))
}

func TestDefaultSMSFitsOneMessage(t *testing.T) {
	for teamType := range DefaultCatalog().SMS {
		filled := Fill(DefaultTemplate(ChannelSMS, teamType).Body, map[string]string{"team_name": "Oak FC", "contact_name": "Sam"})
		assert.LessOrEqual(t, len(filled), 160, teamType)
	}
}

func TestParseCatalogRequiresDefaults(t *testing.T) {
	_, err := ParseCatalog([]byte("email:\n  youth:\n    subject: x\n    body: y\nsms:\n  default: z\n"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("email:\n  default:\n    subject: x\n    body: y\n"))
	require.Error(t, err)

	c, err := ParseCatalog([]byte("email:\n  default:\n    subject: s\n    body: b\nsms:\n  default: t\n"))
	require.NoError(t, err)
	assert.Equal(t, Template{Subject: "s", Body: "b"}, c.Lookup(ChannelEmail, "youth"))
}
