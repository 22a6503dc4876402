package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

type BrowserOptions struct {
	Timeout   time.Duration
	UserAgent string
	ExecPath  string
}

// BrowserSource renders a page in headless Chrome before extracting the
// price, for listings whose price is filled in by JavaScript.
type BrowserSource struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

func NewBrowserSource(opts BrowserOptions) *BrowserSource {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &BrowserSource{allocCtx: allocCtx, cancel: cancel, timeout: timeout}
}

func (b *BrowserSource) FetchPrice(ctx context.Context, target models.SiteTarget) (Quote, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(target.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: failed to render %s: %v", ErrFetch, target.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: failed to parse rendered HTML of %s: %v", ErrFetch, target.URL, err)
	}
	return extractQuote(doc, target)
}

// Close shuts down the browser process.
func (b *BrowserSource) Close() {
	b.cancel()
}
