package scraper

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/util"
)

var (
	// ErrFetch covers network failures, disallowed URLs and non-2xx responses.
	ErrFetch = errors.New("fetch failed")

	// ErrSelectorNotFound means the configured price selector matched nothing.
	ErrSelectorNotFound = errors.New("price element not found")
)

// Quote is what a PriceSource read from one listing.
type Quote struct {
	Price  decimal.Decimal
	Rating decimal.NullDecimal
	Review string
}

// PriceSource fetches a listing and extracts its price. Errors wrap ErrFetch,
// ErrSelectorNotFound or util.ErrNoPrice so callers can pick a log level.
type PriceSource interface {
	FetchPrice(ctx context.Context, target models.SiteTarget) (Quote, error)
}

// Registry routes each target to a PriceSource: a host override first,
// then the browser for render targets, then the default HTTP source.
type Registry struct {
	defaultSource PriceSource
	browser       PriceSource
	hosts         map[string]PriceSource
}

// NewRegistry builds a registry. browser may be nil, in which case render
// targets fall back to the default source.
func NewRegistry(defaultSource, browser PriceSource) *Registry {
	return &Registry{
		defaultSource: defaultSource,
		browser:       browser,
		hosts:         make(map[string]PriceSource),
	}
}

// Register makes src handle every target whose URL host equals host.
func (r *Registry) Register(host string, src PriceSource) {
	r.hosts[host] = src
}

func (r *Registry) SourceFor(target models.SiteTarget) PriceSource {
	if src, ok := r.hosts[util.Hostname(target.URL)]; ok {
		return src
	}
	if target.Render && r.browser != nil {
		return r.browser
	}
	return r.defaultSource
}

func (r *Registry) FetchPrice(ctx context.Context, target models.SiteTarget) (Quote, error) {
	return r.SourceFor(target).FetchPrice(ctx, target)
}
