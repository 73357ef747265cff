package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"listing_ingest/internal/compliance"
	"listing_ingest/internal/domain"
	"listing_ingest/internal/extraction"
	"listing_ingest/internal/normalize"
)

type ListingStore interface {
	FindIDByFingerprint(ctx context.Context, fingerprint string) (int64, bool, error)
	Insert(ctx context.Context, listing *domain.CanonicalListing) (int64, error)
	TouchLastSeen(ctx context.Context, id int64, seenAt time.Time) error
}

type ReportStore interface {
	InsertBatch(ctx context.Context, listingID int64, reports []domain.ComplianceReport, failures []domain.CheckFailure) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, listing *domain.CanonicalListing, isNew bool) error
	Close() error
}

type Normalizer interface {
	Resolve(ctx context.Context, payload domain.RawPayload, src domain.SourceConfig) (normalize.Outcome, error)
}

type Assessor interface {
	Assess(ctx context.Context, subject compliance.Subject) compliance.Assessment
}

type Extractor interface {
	Route(ctx context.Context, url string, sourceType domain.SourceType, schema domain.ExtractionSchema) (*extraction.Extraction, error)
}
