package models

import "errors"

var (
	// ErrNoUsers is returned when a scrape run has no seed user to own the products.
	ErrNoUsers = errors.New("no users in the system")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrRunInProgress is returned when another scrape or alert run holds the offers lock.
	ErrRunInProgress = errors.New("another run is in progress")

	// ErrInvalidPrice is returned when a desired alert price is not positive.
	ErrInvalidPrice = errors.New("price must be greater than zero")
)
