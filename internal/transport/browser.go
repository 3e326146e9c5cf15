package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fortuna/kitscout/internal/apperrors"
	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in headless Chrome, for directories that
// build their listings client-side.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	settle   time.Duration
	interval time.Duration
	log      *zap.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

// NewBrowserFetcher starts a Chrome allocator. Call Close when done.
func NewBrowserFetcher(requestsPerSecond float64, timeout time.Duration, log *zap.Logger) *BrowserFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &BrowserFetcher{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		settle:   time.Second,
		log:      logger.OrNop(log).Named("browser"),
	}
	if requestsPerSecond > 0 {
		b.interval = time.Duration(float64(time.Second) / requestsPerSecond)
	}
	return b
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Fetch navigates to url and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	if !b.lastRequest.IsZero() && b.interval > 0 {
		if elapsed := time.Since(b.lastRequest); elapsed < b.interval {
			wait := b.interval - elapsed
			b.log.Debug("rate limiting", zap.Duration("wait", wait))
			if err := Sleep(ctx, wait); err != nil {
				b.mu.Unlock()
				return "", err
			}
		}
	}
	b.lastRequest = time.Now()
	b.mu.Unlock()

	browserCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
	defer cancel()

	// Stop the tab if the caller gives up first.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML(`html`, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", apperrors.Provider("render "+url, err)
	}
	if html == "" {
		return "", fmt.Errorf("rendering %s: empty document", url)
	}
	return html, nil
}
