package models

// SiteTarget is one (site, URL) listing to scrape for a product. It is
// validated on its own so a bad entry only loses that listing. Render asks
// for a headless browser instead of a plain GET; StructuredData allows a
// JSON-LD price when the selector finds nothing.
type SiteTarget struct {
	URL            string `json:"url" validate:"required,url"`
	Site           string `json:"site" validate:"required"`
	PriceSelector  string `json:"price_selector" validate:"required"`
	RatingSelector string `json:"rating_selector,omitempty"`
	ReviewSelector string `json:"review_selector,omitempty"`
	Render         bool   `json:"render,omitempty"`
	StructuredData bool   `json:"structured_data,omitempty"`
}

// ProductTarget is one record of the scrape input file. Only the product
// identity is required at this level; Image and URLs entries are checked
// where they are used.
type ProductTarget struct {
	Name        string       `json:"name" validate:"required"`
	Brand       string       `json:"brand" validate:"required"`
	Category    string       `json:"category,omitempty"`
	Subcategory string       `json:"subcategory,omitempty"`
	Description string       `json:"description,omitempty"`
	Image       string       `json:"image"`
	URLs        []SiteTarget `json:"urls" validate:"required,min=1"`
}

// EmailMessage is an outbound notification, sent directly or queued for the mailer.
type EmailMessage struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
}
