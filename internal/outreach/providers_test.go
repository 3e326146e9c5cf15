package outreach

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/config"
	"github.com/fortuna/kitscout/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

var testSender = Sender{
	Email:          "hello@kitscout.io",
	Name:           "Kitscout Team",
	UnsubscribeURL: "https://kitscout.io/unsubscribe",
	CompanyAddress: "Kitscout | 1 Pitch Lane",
}

func testClient(srv *httptest.Server) *transport.Client {
	return transport.NewClient(transport.Options{HTTPClient: srv.Client(), MaxRetries: -1})
}

func TestSendGridProviderSend(t *testing.T) {
	var got sgMail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-Message-Id", "sg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSendGridProvider("sg-key", testSender, testClient(srv)).WithEndpoint(srv.URL)
	id, err := p.Send(context.Background(), Message{To: "coach@oakfc.org", ToName: "Sam", Subject: "Kits", Body: "Hi Sam"})

	require.NoError(t, err)
	assert.Equal(t, "sg-123", id)
	assert.Equal(t, "coach@oakfc.org", got.Personalizations[0].To[0].Email)
	assert.Equal(t, "hello@kitscout.io", got.From.Email)
	assert.Equal(t, "Kits", got.Subject)
	assert.Contains(t, got.Content[0].Value, "Hi Sam")
	assert.Contains(t, got.Content[0].Value, "Kitscout | 1 Pitch Lane")
	assert.Contains(t, got.Content[0].Value, "Unsubscribe: https://kitscout.io/unsubscribe")
	assert.Equal(t, "<https://kitscout.io/unsubscribe>", got.Headers["List-Unsubscribe"])
}

func TestSendGridProviderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	_, err := NewSendGridProvider("sg-key", testSender, testClient(srv)).WithEndpoint(srv.URL).
		Send(context.Background(), Message{To: "a@b.org"})

	require.Error(t, err)
	assert.True(t, apperrors.IsProvider(err))
	assert.Contains(t, err.Error(), "bad key")
}

func TestSendGridConfigured(t *testing.T) {
	assert.False(t, NewSendGridProvider("", testSender, nil).Configured())
	assert.True(t, NewSendGridProvider("k", testSender, nil).Configured())
}

func TestTwilioProviderSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC1/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC1", user)
		assert.Equal(t, "token", pass)

		body, _ := io.ReadAll(r.Body)
		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, "+15550100", form.Get("To"))
		assert.Equal(t, "+15559999", form.Get("From"))
		assert.Equal(t, "Hi", form.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	p := NewTwilioProvider("AC1", "token", "+15559999", testClient(srv)).WithBaseURL(srv.URL)
	require.True(t, p.Configured())

	id, err := p.Send(context.Background(), Message{To: "+15550100", Body: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "SM42", id)
}

func TestTwilioNotConfigured(t *testing.T) {
	assert.False(t, NewTwilioProvider("AC1", "", "+15559999", nil).Configured())
}

func TestSMTPProviderBuildsMessage(t *testing.T) {
	p := NewSMTPProvider("smtp.example.org", 587, "user", "pass", testSender)
	var sent *gomail.Message
	p.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	id, err := p.Send(context.Background(), Message{To: "coach@oakfc.org", Subject: "Kits", Body: "Hi"})

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NotNil(t, sent)
	assert.Equal(t, []string{"Kits"}, sent.GetHeader("Subject"))
	assert.Equal(t, []string{"coach@oakfc.org"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"<" + id + "@kitscout.io>"}, sent.GetHeader("Message-ID"))
}

func TestProvidersFromConfig(t *testing.T) {
	cfg := &config.Config{Email: config.EmailConfig{Provider: "smtp", SMTPHost: "smtp.example.org"}}
	providers := ProvidersFromConfig(cfg, transport.NewClient(transport.Options{}))

	require.Len(t, providers, 2)
	assert.Equal(t, "smtp", providers[0].Name())
	assert.True(t, providers[0].Configured())
	assert.Equal(t, "twilio", providers[1].Name())
	assert.False(t, providers[1].Configured())

	cfg.Email.Provider = "sendgrid"
	assert.Equal(t, "sendgrid", ProvidersFromConfig(cfg, nil)[0].Name())
}
