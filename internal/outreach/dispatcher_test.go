package outreach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The genai dependency pulls in opencensus, whose init starts a worker
	// that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeProvider struct {
	channel    Channel
	configured bool
	err        error

	mu   sync.Mutex
	sent []Message
}

func (f *fakeProvider) Channel() Channel { return f.channel }
func (f *fakeProvider) Name() string     { return "fake" }
func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return "msg-" + msg.To, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var welcome = Template{Subject: "Kits for {team_name}", Body: "Hi {contact_name}, {team_name} looks great."}

func TestSendBatchEmpty(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true}
	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail, nil, welcome, time.Second, nil)

	assert.Len(t, results, 0)
	assert.Zero(t, p.calls())
}

func TestSendBatchPersonalizesInOrder(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true}
	recipients := []Recipient{
		{LeadID: 1, Email: "coach@oakfc.org", Vars: map[string]string{"team_name": "Oak FC", "contact_name": "Sam"}},
		{LeadID: 2, Email: "info@pine.org", Vars: map[string]string{"team_name": "Pine United"}},
	}

	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail, recipients, welcome, 0, nil)

	require.Len(t, results, 2)
	assert.Equal(t, DispatchResult{LeadID: 1, Address: "coach@oakfc.org", Success: true, ProviderID: "msg-coach@oakfc.org"}, results[0])
	assert.Equal(t, int64(2), results[1].LeadID)
	require.Len(t, p.sent, 2)
	assert.Equal(t, "Kits for Oak FC", p.sent[0].Subject)
	assert.Equal(t, "Hi Sam, Oak FC looks great.", p.sent[0].Body)
	assert.Equal(t, "Hi there, Pine United looks great.", p.sent[1].Body)
}

func TestSendBatchMissingAddress(t *testing.T) {
	p := &fakeProvider{channel: ChannelSMS, configured: true}
	recipients := []Recipient{{LeadID: 7, Email: "only@email.org"}}

	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelSMS, recipients, welcome, time.Second, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "missing address", results[0].Error)
	assert.Zero(t, p.calls())
}

func TestSendBatchUnconfiguredProvider(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail}
	recipients := []Recipient{{LeadID: 1, Email: "a@oak.org"}, {LeadID: 2, Email: "b@oak.org"}, {LeadID: 3}}

	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail, recipients, welcome, 0, nil)

	require.Len(t, results, 3)
	assert.Equal(t, "fake credentials not configured", results[0].Error)
	assert.Equal(t, "fake credentials not configured", results[1].Error)
	assert.Equal(t, "missing address", results[2].Error)
	assert.Zero(t, p.calls())
}

func TestSendBatchPacesFailedAttempts(t *testing.T) {
	const rate = 100 * time.Millisecond
	recipients := []Recipient{
		{LeadID: 1, Email: "a@oak.org"},
		{LeadID: 2, Email: "b@oak.org"},
		{LeadID: 3},
		{LeadID: 4, Email: "d@oak.org"},
	}

	start := time.Now()
	results := NewDispatcher(nil, &fakeProvider{channel: ChannelEmail}).
		SendBatch(context.Background(), ChannelEmail, recipients, welcome, rate, nil)
	elapsed := time.Since(start)

	require.Len(t, results, 4)
	// Three attempts with an address; the missing address does not wait.
	assert.GreaterOrEqual(t, elapsed, 2*rate)
	assert.Less(t, elapsed, 3*rate+500*time.Millisecond)
}

func TestSendBatchNoProviderForChannel(t *testing.T) {
	results := NewDispatcher(nil).SendBatch(context.Background(), ChannelWhatsApp,
		[]Recipient{{LeadID: 1, Phone: "+15550100"}}, welcome, 0, nil)

	require.Len(t, results, 1)
	assert.Equal(t, "no provider for channel whatsapp", results[0].Error)
}

func TestSendBatchRecordsProviderError(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true, err: errors.New("provider: sendgrid send: status 401")}
	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail,
		[]Recipient{{LeadID: 1, Email: "a@oak.org"}}, welcome, 0, nil)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "provider: sendgrid send: status 401", results[0].Error)
	assert.Empty(t, results[0].ProviderID)
}

func TestSendBatchRespectsRateLimit(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true}
	recipients := []Recipient{{LeadID: 1, Email: "a@oak.org"}, {LeadID: 2, Email: "b@oak.org"}, {LeadID: 3, Email: "c@oak.org"}}
	rate := 50 * time.Millisecond

	start := time.Now()
	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail, recipients, welcome, rate, nil)
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.GreaterOrEqual(t, elapsed, 2*rate)
	// no pause after the last recipient
	assert.Less(t, elapsed, 3*rate+500*time.Millisecond)
}

func TestSendBatchTruncatesLongSMS(t *testing.T) {
	p := &fakeProvider{channel: ChannelSMS, configured: true}
	long := Template{Subject: "ignored", Body: strings.Repeat("a", 1700)}

	results := NewDispatcher(nil, p).SendBatch(context.Background(), ChannelSMS,
		[]Recipient{{LeadID: 1, Phone: "+15550100"}}, long, 0, nil)

	require.Len(t, results, 1)
	require.Len(t, p.sent, 1)
	assert.Len(t, p.sent[0].Body, 1600)
	assert.True(t, strings.HasSuffix(p.sent[0].Body, "..."))
	assert.Empty(t, p.sent[0].Subject)
}

func TestSendBatchReportsProgress(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true}
	recipients := []Recipient{{LeadID: 1, Email: "a@oak.org"}, {LeadID: 2}}

	var completed []int
	var lastIDs []int64
	NewDispatcher(nil, p).SendBatch(context.Background(), ChannelEmail, recipients, welcome, 0,
		func(done, total int, last DispatchResult) {
			assert.Equal(t, 2, total)
			completed = append(completed, done)
			lastIDs = append(lastIDs, last.LeadID)
		})

	assert.Equal(t, []int{1, 2}, completed)
	assert.Equal(t, []int64{1, 2}, lastIDs)
}

func TestSendBatchCancelled(t *testing.T) {
	p := &fakeProvider{channel: ChannelEmail, configured: true}
	recipients := []Recipient{{LeadID: 1, Email: "a@oak.org"}, {LeadID: 2, Email: "b@oak.org"}, {LeadID: 3, Email: "c@oak.org"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := NewDispatcher(nil, p).SendBatch(ctx, ChannelEmail, recipients, welcome, time.Hour,
		func(done, _ int, _ DispatchResult) {
			if done == 1 {
				cancel()
			}
		})

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "cancelled", results[1].Error)
	assert.Equal(t, "cancelled", results[2].Error)
	assert.Equal(t, int64(3), results[2].LeadID)
	assert.Equal(t, 1, p.calls())
}
