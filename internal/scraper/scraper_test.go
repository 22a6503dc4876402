package scraper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/util"
)

const testUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) pricewatch-test"

func newTestSource() *HTTPSource {
	return NewHTTPSource(HTTPOptions{
		Timeout:        5 * time.Second,
		MaxHeaderBytes: 1 << 20,
		UserAgent:      testUserAgent,
		RatePerSecond:  1000,
	})
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_FetchPrice(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body>
			<div class="pdp"><span class="price">₹1,299.50</span><span class="rating">4.4</span></div>
		</body></html>`)
	}))
	defer srv.Close()

	quote, err := newTestSource().FetchPrice(context.Background(), models.SiteTarget{
		URL:            srv.URL + "/p/1",
		Site:           "Nykaa",
		PriceSelector:  "div.pdp span.price",
		RatingSelector: ".rating",
	})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("1299.50")) {
		t.Errorf("Price = %s, want 1299.50", quote.Price)
	}
	if !quote.Rating.Valid || !quote.Rating.Decimal.Equal(decimal.RequireFromString("4.4")) {
		t.Errorf("Rating = %+v, want 4.4", quote.Rating)
	}
	if gotUA != testUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, testUserAgent)
	}
}

func TestHTTPSource_FetchPrice_Extras(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<span class="price">Rs. 499</span>
			<span class="count">(12,345 ratings)</span>
			<p class="review">  Lasts all day,
				no transfer.  </p>
		</body></html>`)
	}))
	defer srv.Close()

	quote, err := newTestSource().FetchPrice(context.Background(), models.SiteTarget{
		URL:            srv.URL + "/p/2",
		Site:           "Myntra",
		PriceSelector:  ".price",
		RatingSelector: ".count",
		ReviewSelector: ".review",
	})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v, want price despite an unusable rating", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("499")) {
		t.Errorf("Price = %s, want 499", quote.Price)
	}
	if quote.Rating.Valid {
		t.Errorf("Rating = %s, want none for a review count", quote.Rating.Decimal)
	}
	if quote.Review != "Lasts all day, no transfer." {
		t.Errorf("Review = %q", quote.Review)
	}
}

func TestHTTPSource_FetchPrice_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
		case "/no-digits":
			fmt.Fprint(w, `<span class="price">Currently unavailable</span>`)
		default:
			fmt.Fprint(w, `<span class="amount">₹499</span>`)
		}
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		target  models.SiteTarget
		wantErr error
	}{
		{
			name:    "404 is a fetch failure",
			target:  models.SiteTarget{URL: srv.URL + "/missing", Site: "A", PriceSelector: ".price"},
			wantErr: ErrFetch,
		},
		{
			name:    "403 is a fetch failure",
			target:  models.SiteTarget{URL: srv.URL + "/blocked", Site: "A", PriceSelector: ".price"},
			wantErr: ErrFetch,
		},
		{
			name:    "selector miss",
			target:  models.SiteTarget{URL: srv.URL + "/page", Site: "A", PriceSelector: ".price"},
			wantErr: ErrSelectorNotFound,
		},
		{
			name:    "invalid selector fails soft",
			target:  models.SiteTarget{URL: srv.URL + "/page", Site: "A", PriceSelector: "span[["},
			wantErr: ErrSelectorNotFound,
		},
		{
			name:    "no digits in price node",
			target:  models.SiteTarget{URL: srv.URL + "/no-digits", Site: "A", PriceSelector: ".price"},
			wantErr: util.ErrNoPrice,
		},
		{
			name:    "unsupported scheme",
			target:  models.SiteTarget{URL: "ftp://example.com/p", Site: "A", PriceSelector: ".price"},
			wantErr: ErrFetch,
		},
	}

	src := newTestSource()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.FetchPrice(context.Background(), tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchPrice() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPSource_ManyHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 250; i++ {
			w.Header().Set(fmt.Sprintf("X-Tracking-%d", i), "v")
		}
		fmt.Fprint(w, `<span class="price">₹899</span>`)
	}))
	defer srv.Close()

	quote, err := newTestSource().FetchPrice(context.Background(), models.SiteTarget{
		URL: srv.URL, Site: "Noisy", PriceSelector: ".price",
	})
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(899)) {
		t.Errorf("Price = %s, want 899", quote.Price)
	}
}

func TestHTTPSource_HeaderLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Huge", strings.Repeat("a", 8<<10))
		fmt.Fprint(w, `<span class="price">₹899</span>`)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPOptions{
		Timeout:        5 * time.Second,
		MaxHeaderBytes: 1 << 10,
		UserAgent:      testUserAgent,
		RatePerSecond:  1000,
	})
	_, err := src.FetchPrice(context.Background(), models.SiteTarget{
		URL: srv.URL, Site: "Huge", PriceSelector: ".price",
	})
	if !errors.Is(err, ErrFetch) {
		t.Errorf("FetchPrice() error = %v, want ErrFetch for oversized headers", err)
	}
}

func TestHTTPSource_StructuredDataFallback(t *testing.T) {
	srv := serveHTML(t, `<html><head>
		<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList"}</script>
		<script type="application/ld+json">
		{"@context":"https://schema.org","@type":"Product","name":"Serum",
		 "offers":{"@type":"Offer","price":"749.00","priceCurrency":"INR"}}
		</script></head><body><div id="app"></div></body></html>`)

	target := models.SiteTarget{URL: srv.URL, Site: "SPA", PriceSelector: ".price", StructuredData: true}
	quote, err := newTestSource().FetchPrice(context.Background(), target)
	if err != nil {
		t.Fatalf("FetchPrice() error = %v", err)
	}
	if !quote.Price.Equal(decimal.NewFromInt(749)) {
		t.Errorf("Price = %s, want 749", quote.Price)
	}

	target.StructuredData = false
	if _, err := newTestSource().FetchPrice(context.Background(), target); !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("FetchPrice() without fallback error = %v, want ErrSelectorNotFound", err)
	}
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	srv := serveHTML(t, `<span class="price">₹1</span>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSource().FetchPrice(ctx, models.SiteTarget{URL: srv.URL, Site: "A", PriceSelector: ".price"})
	if !errors.Is(err, ErrFetch) {
		t.Errorf("FetchPrice() error = %v, want ErrFetch", err)
	}
}

type stubSource struct {
	name  string
	calls int
}

func (s *stubSource) FetchPrice(_ context.Context, _ models.SiteTarget) (Quote, error) {
	s.calls++
	return Quote{Price: decimal.NewFromInt(1)}, nil
}

func TestRegistry_SourceFor(t *testing.T) {
	def := &stubSource{name: "http"}
	browser := &stubSource{name: "browser"}
	custom := &stubSource{name: "custom"}

	r := NewRegistry(def, browser)
	r.Register("www.sephora.in", custom)

	tests := []struct {
		name   string
		target models.SiteTarget
		want   *stubSource
	}{
		{name: "default", target: models.SiteTarget{URL: "https://www.nykaa.com/p/1"}, want: def},
		{name: "render", target: models.SiteTarget{URL: "https://www.myntra.com/p/1", Render: true}, want: browser},
		{name: "host override wins", target: models.SiteTarget{URL: "https://www.sephora.in/p/1", Render: true}, want: custom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.SourceFor(tt.target); got != tt.want {
				t.Errorf("SourceFor() = %s, want %s", got.(*stubSource).name, tt.want.name)
			}
		})
	}

	noBrowser := NewRegistry(def, nil)
	if got := noBrowser.SourceFor(models.SiteTarget{URL: "https://x.test", Render: true}); got != def {
		t.Error("render target without a browser should fall back to the default source")
	}
}

func TestParseJSONLDPrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "numeric price", input: `{"@type":"Product","offers":{"price":1299.5}}`, want: "1299.50", wantOK: true},
		{name: "offers array", input: `{"@type":"Product","offers":[{"price":""},{"price":"₹999"}]}`, want: "999", wantOK: true},
		{name: "aggregate offer", input: `{"@type":"Product","offers":{"@type":"AggregateOffer","lowPrice":"450"}}`, want: "450", wantOK: true},
		{name: "graph", input: `{"@graph":[{"@type":"WebPage"},{"@type":["Product","Thing"],"offers":{"price":"10"}}]}`, want: "10", wantOK: true},
		{name: "top-level array", input: `[{"@type":"Organization"},{"@type":"Product","offers":{"price":"5"}}]`, want: "5", wantOK: true},
		{name: "not a product", input: `{"@type":"Organization","offers":{"price":"5"}}`, wantOK: false},
		{name: "zero price", input: `{"@type":"Product","offers":{"price":0}}`, wantOK: false},
		{name: "malformed", input: `{"@type":`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseJSONLDPrice([]byte(tt.input))
			if ok != tt.wantOK {
				t.Fatalf("parseJSONLDPrice() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("parseJSONLDPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products_to_scrape.json")
	data := `[
		{"name":"Lakme 9to5 Primer","brand":"Lakme","category":"Makeup","image":"https://cdn.test/l.jpg",
		 "urls":[
			{"url":"https://www.nykaa.com/p/1","site":"Nykaa","price_selector":"span.css-1jczs19"},
			{"url":"https://www.myntra.com/p/2","site":"Myntra","price_selector":".pdp-price strong","render":true}
		 ]}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	targets, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets() error = %v", err)
	}
	if len(targets) != 1 || len(targets[0].URLs) != 2 {
		t.Fatalf("LoadTargets() = %+v, want 1 product with 2 URLs", targets)
	}
	if !targets[0].URLs[1].Render {
		t.Error("expected the Myntra target to request rendering")
	}
	if targets[0].URLs[0].PriceSelector != "span.css-1jczs19" {
		t.Errorf("PriceSelector = %q", targets[0].URLs[0].PriceSelector)
	}
}

func TestLoadTargets_MissingFile(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadTargets() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadTargetsFromBytes_Invalid(t *testing.T) {
	if _, err := LoadTargetsFromBytes([]byte(`{"name":`)); err == nil {
		t.Error("LoadTargetsFromBytes() should fail on malformed JSON")
	}
}
