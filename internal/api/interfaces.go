package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/extraction"
)

type Ingestor interface {
	IngestOne(ctx context.Context, sourceID string, payload domain.RawPayload, src domain.SourceConfig) (domain.IngestionResult, error)
	IngestBatch(ctx context.Context, sourceID string, payloads []domain.RawPayload, src domain.SourceConfig) domain.BatchResult
	IngestFromURL(ctx context.Context, sourceID, url string, src domain.SourceConfig) (domain.BatchResult, error)
}

type SourceRegistry interface {
	Source(id string) (domain.SourceConfig, error)
}

type ExtractionStats interface {
	Stats() extraction.Stats
}

type ListingCounter interface {
	CountByStatus(ctx context.Context) (map[domain.ListingStatus]int, error)
}
