package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Amitrawat12/daily-glam/internal/models"
	"github.com/Amitrawat12/daily-glam/internal/util"
)

// extractQuote reads the price node chosen by the target's selector. An invalid
// selector matches nothing in goquery, so broken markup contracts fail soft.
func extractQuote(doc *goquery.Document, target models.SiteTarget) (Quote, error) {
	var quote Quote

	priceSelection := doc.Find(target.PriceSelector).First()
	if priceSelection.Length() == 0 {
		if target.StructuredData {
			if price, ok := priceFromJSONLD(doc); ok {
				quote.Price = price
				addExtras(doc, target, &quote)
				return quote, nil
			}
		}
		return quote, fmt.Errorf("%w: selector %q on %s", ErrSelectorNotFound, target.PriceSelector, target.Site)
	}

	price, err := util.ExtractPrice(strings.TrimSpace(priceSelection.Text()))
	if err != nil {
		return quote, err
	}
	quote.Price = price
	addExtras(doc, target, &quote)
	return quote, nil
}

// maxReviewLen caps stored review snippets; listings sometimes match a whole reviews section.
const maxReviewLen = 500

// addExtras fills the optional rating and review. Neither can fail a quote.
func addExtras(doc *goquery.Document, target models.SiteTarget, quote *Quote) {
	quote.Rating = extractRating(doc, target)
	quote.Review = extractReview(doc, target)
}

func extractRating(doc *goquery.Document, target models.SiteTarget) decimal.NullDecimal {
	if target.RatingSelector == "" {
		return decimal.NullDecimal{}
	}
	return util.ExtractRating(doc.Find(target.RatingSelector).First().Text())
}

func extractReview(doc *goquery.Document, target models.SiteTarget) string {
	if target.ReviewSelector == "" {
		return ""
	}
	review := strings.Join(strings.Fields(doc.Find(target.ReviewSelector).First().Text()), " ")
	if runes := []rune(review); len(runes) > maxReviewLen {
		review = string(runes[:maxReviewLen])
	}
	return review
}
