package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// HTTPOptions configures the plain GET price source. MaxHeaderBytes is passed
// to the transport so sites sending oversized header blocks can be tolerated
// without touching process-wide state.
type HTTPOptions struct {
	Timeout        time.Duration
	MaxHeaderBytes int64
	UserAgent      string
	RatePerSecond  float64
}

type HTTPSource struct {
	httpClient *http.Client
	headers    http.Header
	limiter    *hostLimiter
}

func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxHeaderBytes > 0 {
		transport.MaxResponseHeaderBytes = opts.MaxHeaderBytes
	}

	headers := make(http.Header)
	headers.Set("User-Agent", opts.UserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "en-IN,en;q=0.9")

	return &HTTPSource{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		headers: headers,
		limiter: newHostLimiter(opts.RatePerSecond),
	}
}

// FetchPrice performs exactly one GET for target and extracts its price.
func (s *HTTPSource) FetchPrice(ctx context.Context, target models.SiteTarget) (Quote, error) {
	doc, err := s.fetchHTMLContent(ctx, target.URL)
	if err != nil {
		return Quote{}, err
	}
	return extractQuote(doc, target)
}

func (s *HTTPSource) fetchHTMLContent(ctx context.Context, urlStr string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse URL %s: %v", ErrFetch, urlStr, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: invalid URL scheme %q: only http and https allowed", ErrFetch, parsedURL.Scheme)
	}

	if err := s.limiter.Wait(ctx, parsedURL.Hostname()); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request for URL %s: %v", ErrFetch, urlStr, err)
	}
	req.Header = s.headers.Clone()

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch URL %s: %v", ErrFetch, urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w: failed to fetch URL %s: status code %d", ErrFetch, urlStr, res.StatusCode)
	}

	body, err := charset.NewReader(res.Body, res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode body of %s: %v", ErrFetch, urlStr, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse HTML of %s: %v", ErrFetch, urlStr, err)
	}
	return doc, nil
}

// hostLimiter keeps one token bucket per host so parallel fetches stay polite.
type hostLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	limiters map[string]*rate.Limiter
}

func newHostLimiter(perSecond float64) *hostLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &hostLimiter{
		limit:    limit,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, 1)
		h.limiters[host] = l
	}
	h.mu.Unlock()
	return l.Wait(ctx)
}
