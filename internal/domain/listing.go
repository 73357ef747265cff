package domain

import (
	"fmt"
	"time"
)

// MinModelYear is the earliest plausible manufacturing year for a listed vehicle.
const MinModelYear = 1886

type ListingStatus string

const (
	StatusPending ListingStatus = "pending"
	StatusFlagged ListingStatus = "flagged"
)

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type CanonicalListing struct {
	ID              int64           `json:"id,omitempty"`
	SourceID        string          `json:"source_id"`
	SourceListingID string          `json:"source_listing_id,omitempty"`
	SourceURL       string          `json:"source_url,omitempty"`
	Title           string          `json:"title"`
	Make            string          `json:"make"`
	Model           string          `json:"model"`
	Year            int             `json:"year"`
	Price           Price           `json:"price"`
	City            string          `json:"city"`
	VIN             *string         `json:"vin,omitempty"`
	Registration    *string         `json:"registration,omitempty"`
	Mileage         *int            `json:"mileage,omitempty"`
	FuelType        *string         `json:"fuel_type,omitempty"`
	Transmission    *string         `json:"transmission,omitempty"`
	OwnerCount      *int            `json:"owner_count,omitempty"`
	ImageURLs       []string        `json:"image_urls,omitempty"`
	Description     *string         `json:"description,omitempty"`
	SellerType      *string         `json:"seller_type,omitempty"`
	Verification    map[string]bool `json:"verification,omitempty"`
	Fingerprint     string          `json:"fingerprint,omitempty"`
	Confidence      float64         `json:"confidence"`
	RiskScore       float64         `json:"risk_score"`
	Status          ListingStatus   `json:"status,omitempty"`
	FirstSeenAt     time.Time       `json:"first_seen_at,omitempty"`
	LastSeenAt      time.Time       `json:"last_seen_at,omitempty"`
}

// Validate checks the invariants every persisted listing must satisfy.
func (l CanonicalListing) Validate(now time.Time) error {
	if l.Year == 0 {
		return fmt.Errorf("%w: year missing", ErrInvalidListing)
	}
	if l.Year < MinModelYear || l.Year > now.Year()+1 {
		return fmt.Errorf("%w: implausible year %d", ErrInvalidListing, l.Year)
	}
	if l.Price.Amount < 0 {
		return fmt.Errorf("%w: negative price %.2f", ErrInvalidListing, l.Price.Amount)
	}
	return nil
}

// WithFingerprint returns a copy carrying the given identity key.
func (l CanonicalListing) WithFingerprint(fp string) CanonicalListing {
	l.Fingerprint = fp
	return l
}

// WithRisk returns a copy carrying the aggregated risk classification.
func (l CanonicalListing) WithRisk(score float64, status ListingStatus) CanonicalListing {
	l.RiskScore = score
	l.Status = status
	return l
}
