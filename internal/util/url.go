package util

import (
	"net/url"
	"strings"
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "ref", "ref_",
}

// NormalizeOfferURL strips tracking parameters and fragments so the same
// listing is stored under one URL across runs. Unparseable input is returned as is.
func NormalizeOfferURL(rawURL string) string {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsedURL.Host == "" {
		return rawURL
	}

	parsedURL.Fragment = ""
	parsedURL.RawFragment = ""
	queryParams := parsedURL.Query()
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsedURL.RawQuery = queryParams.Encode()
	return parsedURL.String()
}

// Hostname returns the lowercased host of rawURL, or "" when it cannot be parsed.
func Hostname(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsedURL.Hostname())
}
