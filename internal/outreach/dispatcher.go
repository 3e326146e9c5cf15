package outreach

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/metrics"
	"github.com/fortuna/kitscout/internal/transport"
	"go.uber.org/zap"
)

const maxSMSLength = 1600

// DispatchResult.Error values set by the dispatcher itself.
const (
	ErrorMissingAddress = "missing address"
	ErrorCancelled      = "cancelled"
)

// Recipient is one lead to contact.
type Recipient struct {
	LeadID int64
	Name   string
	Email  string
	Phone  string
	// Vars are the lead's placeholder values (team_name, contact_name, ...).
	Vars map[string]string
}

// Address returns the recipient's address on channel.
func (r Recipient) Address(channel Channel) string {
	if channel == ChannelEmail {
		return r.Email
	}
	return r.Phone
}

// Fields is the variable map used to personalize the template.
func (r Recipient) Fields() map[string]string {
	fields := make(map[string]string, len(r.Vars)+3)
	for k, v := range r.Vars {
		fields[k] = v
	}
	if _, ok := fields["email"]; !ok {
		fields["email"] = r.Email
	}
	if _, ok := fields["phone"]; !ok {
		fields["phone"] = r.Phone
	}
	if _, ok := fields["contact_name"]; !ok {
		fields["contact_name"] = r.Name
	}
	return fields
}

// DispatchResult is the outcome for one recipient.
type DispatchResult struct {
	LeadID     int64  `json:"lead_id"`
	Address    string `json:"address"`
	Success    bool   `json:"success"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ProgressFunc is called after each recipient with the number completed so
// far, the total and the latest result.
type ProgressFunc func(completed, total int, last DispatchResult)

// Dispatcher sends templated messages through the provider for each channel.
type Dispatcher struct {
	providers map[Channel]Provider
	log       *zap.Logger
}

// NewDispatcher creates a dispatcher. A later provider for the same channel
// replaces an earlier one.
func NewDispatcher(log *zap.Logger, providers ...Provider) *Dispatcher {
	d := &Dispatcher{providers: make(map[Channel]Provider), log: logger.OrNop(log).Named("dispatcher")}
	for _, p := range providers {
		if p != nil {
			d.providers[p.Channel()] = p
		}
	}
	return d
}

// Provider returns the provider registered for channel.
func (d *Dispatcher) Provider(channel Channel) (Provider, bool) {
	p, ok := d.providers[channel]
	return p, ok
}

// SendBatch sends tmpl to every recipient in order and returns one result
// per recipient. Consecutive attempts are at least rateLimit apart, whether
// or not a provider is usable; recipients without an address are skipped
// without waiting.
// Once ctx is done the remaining recipients are recorded as cancelled.
func (d *Dispatcher) SendBatch(ctx context.Context, channel Channel, recipients []Recipient, tmpl Template,
	rateLimit time.Duration, onProgress ProgressFunc) []DispatchResult {

	results := make([]DispatchResult, 0, len(recipients))
	total := len(recipients)

	provider, ok := d.providers[channel]
	configErr := ""
	switch {
	case !ok:
		configErr = "no provider for channel " + string(channel)
	case !provider.Configured():
		configErr = provider.Name() + " credentials not configured"
	}
	if configErr != "" && total > 0 {
		d.log.Warn("dispatch without a usable provider", zap.String("channel", string(channel)), zap.String("reason", configErr))
	}

	var lastAttempt time.Time
	for i, r := range recipients {
		res := DispatchResult{LeadID: r.LeadID, Address: r.Address(channel)}

		if ctx.Err() != nil {
			return d.cancelRest(results, recipients[i:], channel)
		}

		if res.Address == "" {
			res.Error = ErrorMissingAddress
		} else {
			if !lastAttempt.IsZero() {
				if err := transport.Sleep(ctx, rateLimit-time.Since(lastAttempt)); err != nil {
					return d.cancelRest(results, recipients[i:], channel)
				}
			}
			lastAttempt = time.Now()
			if configErr != "" {
				res.Error = configErr
			} else {
				d.send(ctx, provider, channel, r, tmpl, &res)
			}
		}

		if res.Success {
			d.log.Debug("message sent", zap.Int64("lead_id", r.LeadID), zap.String("provider_id", res.ProviderID))
		} else {
			d.log.Info("message not sent", zap.Int64("lead_id", r.LeadID), zap.String("error", res.Error))
		}
		metrics.RecordDispatch(string(channel), res.Success)
		results = append(results, res)
		if onProgress != nil {
			onProgress(len(results), total, res)
		}
	}
	return results
}

func (d *Dispatcher) send(ctx context.Context, p Provider, channel Channel, r Recipient, tmpl Template, res *DispatchResult) {
	msg := tmpl.Render(r.Fields())
	if channel != ChannelEmail {
		msg.Subject = ""
		msg.Body = truncateSMS(msg.Body)
	}

	id, err := p.Send(ctx, Message{To: res.Address, ToName: r.Name, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		res.Error = err.Error()
		return
	}
	res.Success = true
	res.ProviderID = id
}

func (d *Dispatcher) cancelRest(results []DispatchResult, rest []Recipient, channel Channel) []DispatchResult {
	d.log.Info("dispatch cancelled", zap.Int("remaining", len(rest)))
	for _, r := range rest {
		results = append(results, DispatchResult{LeadID: r.LeadID, Address: r.Address(channel), Error: ErrorCancelled})
		metrics.RecordDispatch(string(channel), false)
	}
	return results
}

func truncateSMS(body string) string {
	if utf8.RuneCountInString(body) <= maxSMSLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxSMSLength-3]) + "..."
}
