package scraper

import (
	"bytes"
	"encoding/json"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/util"
)

// jsonLDNode is the subset of a schema.org JSON-LD block needed to find a
// Product price. Graph holds nested nodes when the page wraps them in @graph.
type jsonLDNode struct {
	Type   any               `json:"@type"`
	Offers json.RawMessage   `json:"offers"`
	Graph  []json.RawMessage `json:"@graph"`
}

// jsonLDOffer covers both Offer (price) and AggregateOffer (lowPrice).
type jsonLDOffer struct {
	Type          string `json:"@type"`
	Price         any    `json:"price"`
	LowPrice      any    `json:"lowPrice"`
	PriceCurrency string `json:"priceCurrency"`
}

func priceFromJSONLD(doc *goquery.Document) (decimal.Decimal, bool) {
	var price decimal.Decimal
	var found bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		price, found = parseJSONLDPrice([]byte(s.Text()))
		return !found
	})
	return price, found
}

func parseJSONLDPrice(data []byte) (decimal.Decimal, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return decimal.Zero, false
	}

	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return decimal.Zero, false
		}
		for _, item := range items {
			if price, ok := parseJSONLDPrice(item); ok {
				return price, true
			}
		}
		return decimal.Zero, false
	}

	var node jsonLDNode
	if err := json.Unmarshal(data, &node); err != nil {
		return decimal.Zero, false
	}
	for _, child := range node.Graph {
		if price, ok := parseJSONLDPrice(child); ok {
			return price, true
		}
	}
	if !hasType(node.Type, "Product") {
		return decimal.Zero, false
	}
	return offerPrice(node.Offers)
}

func offerPrice(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.Zero, false
	}

	var offers []jsonLDOffer
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &offers); err != nil {
			return decimal.Zero, false
		}
	} else {
		var offer jsonLDOffer
		if err := json.Unmarshal(raw, &offer); err != nil {
			return decimal.Zero, false
		}
		offers = append(offers, offer)
	}

	for _, offer := range offers {
		if price, ok := jsonLDNumber(offer.Price); ok {
			return price, true
		}
		if price, ok := jsonLDNumber(offer.LowPrice); ok {
			return price, true
		}
	}
	return decimal.Zero, false
}

func jsonLDNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		price := decimal.NewFromFloat(n).Round(2)
		return price, price.IsPositive()
	case string:
		price, err := util.ExtractPrice(n)
		return price, err == nil
	default:
		return decimal.Zero, false
	}
}

func hasType(t any, want string) bool {
	switch v := t.(type) {
	case string:
		return v == want
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}
