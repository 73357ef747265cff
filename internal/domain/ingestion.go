package domain

import "time"

type IngestionResult struct {
	Success       bool               `json:"success"`
	ListingID     int64              `json:"listing_id,omitempty"`
	Fingerprint   string             `json:"fingerprint,omitempty"`
	IsDuplicate   bool               `json:"is_duplicate"`
	Status        ListingStatus      `json:"status,omitempty"`
	RiskScore     float64            `json:"risk_score"`
	Reports       []ComplianceReport `json:"reports,omitempty"`
	Failures      []CheckFailure     `json:"failures,omitempty"`
	EstimatedCost float64            `json:"estimated_cost"`
	Errors        []string           `json:"errors,omitempty"`
}

// BatchResult aggregates per-record outcomes. A failed record never aborts the batch.
type BatchResult struct {
	SourceID         string            `json:"source_id"`
	NewListings      int               `json:"new_listings"`
	UpdatedListings  int               `json:"updated_listings"`
	RejectedListings int               `json:"rejected_listings"`
	Cancelled        int               `json:"cancelled"`
	Errors           []string          `json:"errors,omitempty"`
	Results          []IngestionResult `json:"results,omitempty"`
	Duration         time.Duration     `json:"duration"`
}

// SweepStats holds statistics about one scheduled pass over configured sources.
type SweepStats struct {
	Sources  int
	URLs     int
	New      int
	Updated  int
	Rejected int
	Errors   int
	Duration time.Duration
}

type SweepState struct {
	ID           int64     `db:"id"`
	SourceID     string    `db:"source_id"`
	LastSweptAt  time.Time `db:"last_swept_at"`
	LastNew      int       `db:"last_new"`
	LastUpdated  int       `db:"last_updated"`
	LastRejected int       `db:"last_rejected"`
	LastErrors   int       `db:"last_errors"`
	TotalNew     int64     `db:"total_new"`
}
