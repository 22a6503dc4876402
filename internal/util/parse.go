package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a text holds no usable positive price.
var ErrNoPrice = errors.New("no price in text")

// First run of digits, thousands separators allowed, at most one decimal part.
// Covers both 1,299.50 and lakh grouping such as 1,29,999.
var priceRegex = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ExtractPrice pulls the first numeric token out of text such as "₹1,299.50"
// or "MRP: Rs. 499 (incl. taxes)" and returns it rounded to two places.
func ExtractPrice(text string) (decimal.Decimal, error) {
	match := priceRegex.FindString(text)
	if match == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNoPrice, strings.TrimSpace(text))
	}

	cleaned := strings.ReplaceAll(match, ",", "")
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrNoPrice, match, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive value %q", ErrNoPrice, match)
	}
	return price.Round(2), nil
}

// maxRating is the top of the five-star scale every supported site uses.
var maxRating = decimal.NewFromInt(5)

// ExtractRating parses a rating such as "4.3 out of 5". Missing ratings are
// not an error, and anything off the 0-5 scale (review counts, "9/10") is
// treated as missing.
func ExtractRating(text string) decimal.NullDecimal {
	match := priceRegex.FindString(text)
	if match == "" {
		return decimal.NullDecimal{}
	}
	r, err := decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
	if err != nil || r.IsNegative() || r.GreaterThan(maxRating) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(r.Round(2))
}
