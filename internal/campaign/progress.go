package campaign

import (
	"context"

	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/publisher"
	"github.com/fortuna/kitscout/internal/store"
	"go.uber.org/zap"
)

// Progress is emitted after every recipient of a run and once more when the
// run ends (Done set, Status holding the campaign's final status).
type Progress struct {
	RunID      string                   `json:"run_id"`
	CampaignID int64                    `json:"campaign_id"`
	Completed  int                      `json:"completed"`
	Total      int                      `json:"total"`
	Sent       int                      `json:"sent"`
	Failed     int                      `json:"failed"`
	Last       *outreach.DispatchResult `json:"last,omitempty"`
	Done       bool                     `json:"done"`
	Status     store.CampaignStatus     `json:"status,omitempty"`
}

// Observer receives run progress. Implementations must not block for long:
// they are called inline between sends.
type Observer interface {
	CampaignProgress(ctx context.Context, p Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, p Progress)

func (f ObserverFunc) CampaignProgress(ctx context.Context, p Progress) { f(ctx, p) }

// PublishTo forwards progress to the campaign event stream. Publish failures
// are logged and otherwise ignored.
func PublishTo(pub publisher.Publisher, log *zap.Logger) Observer {
	log = logger.OrNop(log).Named("campaign-events")
	return ObserverFunc(func(ctx context.Context, p Progress) {
		event := publisher.EventCampaignProgress
		if p.Done {
			event = publisher.EventCampaignCompleted
		}
		if err := pub.Publish(ctx, publisher.StreamCampaigns, event, p); err != nil {
			log.Warn("failed to publish campaign event",
				zap.Int64("campaign_id", p.CampaignID),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	})
}
