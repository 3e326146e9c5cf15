package outreach

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/config"
	"github.com/fortuna/kitscout/internal/transport"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

const (
	SendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"
	TwilioBaseURL    = "https://api.twilio.com/2010-04-01"
)

// Message is one personalized outbound message.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Provider delivers messages on one channel.
type Provider interface {
	Channel() Channel
	Name() string
	// Configured reports whether credentials are present. Unconfigured
	// providers are never called.
	Configured() bool
	// Send returns the provider's reference id for the message.
	Send(ctx context.Context, msg Message) (string, error)
}

// Sender identifies the From address and the compliance details appended
// to every email.
type Sender struct {
	Email          string
	Name           string
	UnsubscribeURL string
	CompanyAddress string
}

// Footer returns the compliance footer for outbound email.
func (s Sender) Footer() string {
	var b strings.Builder
	b.WriteString("\n\n---\n")
	b.WriteString(s.CompanyAddress)
	b.WriteString("\n")
	if s.UnsubscribeURL != "" {
		b.WriteString("Unsubscribe: " + s.UnsubscribeURL)
	} else {
		b.WriteString("Reply STOP to unsubscribe.")
	}
	return b.String()
}

// SenderFromConfig builds the sender from email settings.
func SenderFromConfig(cfg config.EmailConfig) Sender {
	return Sender{
		Email:          cfg.FromEmail,
		Name:           cfg.FromName,
		UnsubscribeURL: cfg.UnsubscribeURL,
		CompanyAddress: cfg.CompanyAddress,
	}
}

// SendGridProvider sends email through the SendGrid v3 API.
type SendGridProvider struct {
	apiKey   string
	sender   Sender
	client   *transport.Client
	endpoint string
}

// NewSendGridProvider creates a SendGrid provider.
func NewSendGridProvider(apiKey string, sender Sender, client *transport.Client) *SendGridProvider {
	return &SendGridProvider{apiKey: apiKey, sender: sender, client: client, endpoint: SendGridEndpoint}
}

// WithEndpoint overrides the API URL.
func (p *SendGridProvider) WithEndpoint(endpoint string) *SendGridProvider {
	p.endpoint = endpoint
	return p
}

func (p *SendGridProvider) Channel() Channel { return ChannelEmail }
func (p *SendGridProvider) Name() string     { return "sendgrid" }
func (p *SendGridProvider) Configured() bool { return p.apiKey != "" }

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgMail struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
	Headers          map[string]string   `json:"headers,omitempty"`
}

func (p *SendGridProvider) Send(ctx context.Context, msg Message) (string, error) {
	mail := sgMail{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             sgAddress{Email: p.sender.Email, Name: p.sender.Name},
		Subject:          msg.Subject,
		Content:          []sgContent{{Type: "text/plain", Value: msg.Body + p.sender.Footer()}},
	}
	if p.sender.UnsubscribeURL != "" {
		mail.Headers = map[string]string{"List-Unsubscribe": "<" + p.sender.UnsubscribeURL + ">"}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.PostJSON(ctx, p.endpoint, header, mail)
	if err != nil {
		return "", err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return resp.Header.Get("X-Message-Id"), nil
	default:
		return "", resp.Check("sendgrid send")
	}
}

// SMTPProvider sends email through an SMTP relay.
type SMTPProvider struct {
	host     string
	port     int
	user     string
	password string
	sender   Sender
	send     func(*gomail.Message) error
}

// NewSMTPProvider creates an SMTP provider.
func NewSMTPProvider(host string, port int, user, password string, sender Sender) *SMTPProvider {
	p := &SMTPProvider{host: host, port: port, user: user, password: password, sender: sender}
	p.send = func(m *gomail.Message) error {
		return gomail.NewDialer(p.host, p.port, p.user, p.password).DialAndSend(m)
	}
	return p
}

func (p *SMTPProvider) Channel() Channel { return ChannelEmail }
func (p *SMTPProvider) Name() string     { return "smtp" }
func (p *SMTPProvider) Configured() bool { return p.host != "" }

func (p *SMTPProvider) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.sender.Email, p.sender.Name)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", "<"+id+"@"+domainOf(p.sender.Email)+">")
	if p.sender.UnsubscribeURL != "" {
		m.SetHeader("List-Unsubscribe", "<"+p.sender.UnsubscribeURL+">")
	}
	m.SetBody("text/plain", msg.Body+p.sender.Footer())

	if err := p.send(m); err != nil {
		return "", apperrors.Provider("smtp send", err)
	}
	return id, nil
}

// TwilioProvider sends SMS through the Twilio Messages API.
type TwilioProvider struct {
	accountSID string
	authToken  string
	from       string
	client     *transport.Client
	baseURL    string
}

// NewTwilioProvider creates a Twilio provider.
func NewTwilioProvider(accountSID, authToken, from string, client *transport.Client) *TwilioProvider {
	return &TwilioProvider{accountSID: accountSID, authToken: authToken, from: from, client: client, baseURL: TwilioBaseURL}
}

// WithBaseURL overrides the API root.
func (p *TwilioProvider) WithBaseURL(base string) *TwilioProvider {
	p.baseURL = strings.TrimRight(base, "/")
	return p
}

func (p *TwilioProvider) Channel() Channel { return ChannelSMS }
func (p *TwilioProvider) Name() string     { return "twilio" }

func (p *TwilioProvider) Configured() bool {
	return p.accountSID != "" && p.authToken != "" && p.from != ""
}

func (p *TwilioProvider) Send(ctx context.Context, msg Message) (string, error) {
	form := url.Values{}
	form.Set("To", msg.To)
	form.Set("From", p.from)
	form.Set("Body", msg.Body)

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	resp, err := p.client.Do(ctx, transport.Request{
		Method:   http.MethodPost,
		URL:      fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, p.accountSID),
		Header:   header,
		Body:     []byte(form.Encode()),
		Username: p.accountSID,
		Password: p.authToken,
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", resp.Check("twilio send")
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", apperrors.Parse("twilio send", err)
	}
	return out.SID, nil
}

// ProvidersFromConfig builds the email provider named by cfg.Email.Provider
// and the Twilio SMS provider.
func ProvidersFromConfig(cfg *config.Config, client *transport.Client) []Provider {
	sender := SenderFromConfig(cfg.Email)

	var email Provider
	if strings.EqualFold(cfg.Email.Provider, "smtp") {
		email = NewSMTPProvider(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPassword, sender)
	} else {
		email = NewSendGridProvider(cfg.Email.SendGridAPIKey, sender, client)
	}
	return []Provider{
		email,
		NewTwilioProvider(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.PhoneNumber, client),
	}
}

func domainOf(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 && i < len(email)-1 {
		return email[i+1:]
	}
	return "localhost"
}
