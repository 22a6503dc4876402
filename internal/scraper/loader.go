package scraper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Amitrawat12/daily-glam/internal/models"
)

// LoadTargets reads the scrape input file. A missing file is returned as an
// error wrapping fs.ErrNotExist so callers can abort the run.
func LoadTargets(path string) ([]models.ProductTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape targets file: %w", err)
	}
	return LoadTargetsFromBytes(data)
}

// LoadTargetsFromBytes parses scrape targets from raw JSON bytes.
func LoadTargetsFromBytes(data []byte) ([]models.ProductTarget, error) {
	var targets []models.ProductTarget
	if err := json.Unmarshal(data, &targets); err != nil {
		return nil, fmt.Errorf("failed to parse scrape targets JSON: %w", err)
	}
	return targets, nil
}
