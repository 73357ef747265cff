package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"listing_ingest/internal/compliance"
	"listing_ingest/internal/config"
	"listing_ingest/internal/domain"
	"listing_ingest/internal/fingerprint"
	"listing_ingest/internal/normalize"
)

// IngestService sequences one record through normalization, the locale
// filter, fingerprinting, duplicate detection, compliance and persistence.
type IngestService struct {
	normalizer Normalizer
	detector   *fingerprint.Detector
	assessor   Assessor
	extractor  Extractor
	listings   ListingStore
	reports    ReportStore
	txManager  TransactionManager
	publisher  Publisher
	now        func() time.Time
	logger     *slog.Logger
	config     config.IngestConfig
}

func NewIngestService(
	normalizer Normalizer,
	assessor Assessor,
	extractor Extractor,
	listings ListingStore,
	reports ReportStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.IngestConfig,
) *IngestService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &IngestService{
		normalizer: normalizer,
		detector:   fingerprint.NewDetector(listings),
		assessor:   assessor,
		extractor:  extractor,
		listings:   listings,
		reports:    reports,
		txManager:  txManager,
		publisher:  publisher,
		now:        time.Now,
		logger:     logger.With("component", "ingest"),
		config:     cfg,
	}
}

func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	s.now = now
	return s
}

// IngestOne runs a single raw record through the pipeline. The returned
// result is always populated; err is non-nil when the record was rejected.
func (s *IngestService) IngestOne(ctx context.Context, sourceID string, payload domain.RawPayload, src domain.SourceConfig) (domain.IngestionResult, error) {
	if s.config.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RecordTimeout)
		defer cancel()
	}

	src.ID = sourceID
	logger := s.logger.With("source", sourceID)

	var result domain.IngestionResult
	reject := func(err error) (domain.IngestionResult, error) {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		logger.Info("listing rejected", "fingerprint", result.Fingerprint, "reason", err)
		return result, err
	}

	if err := ctx.Err(); err != nil {
		return reject(fmt.Errorf("ingest: %w", err))
	}

	outcome, err := s.normalizer.Resolve(ctx, payload, src)
	result.EstimatedCost += outcome.Cost
	if err != nil {
		return reject(fmt.Errorf("normalize: %w", err))
	}
	listing := outcome.Listing

	if !normalize.InLocales(listing.City, src.AllowedLocales) {
		return reject(fmt.Errorf("%w: %q", domain.ErrOutsideLocale, listing.City))
	}

	listing = listing.WithFingerprint(fingerprint.Compute(listing))
	result.Fingerprint = listing.Fingerprint

	existingID, found, err := s.detector.CheckDuplicate(ctx, listing.Fingerprint)
	if err != nil {
		return reject(fmt.Errorf("check duplicate: %w", err))
	}
	if found {
		return s.seenAgain(ctx, logger, result, existingID, listing)
	}

	assessment := s.assessor.Assess(ctx, compliance.Subject{
		Listing: listing,
		Content: payload.Content,
		URL:     firstNonEmpty(payload.URL, listing.SourceURL),
	})
	result.EstimatedCost += assessment.EstimatedCost
	if err := ctx.Err(); err != nil {
		return reject(fmt.Errorf("assess compliance: %w", err))
	}

	now := s.now().UTC()
	listing = listing.WithRisk(assessment.RiskScore, assessment.Status)
	listing.FirstSeenAt = now
	listing.LastSeenAt = now

	var id int64
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		id, err = s.listings.Insert(txCtx, &listing)
		if err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		if err := s.reports.InsertBatch(txCtx, id, assessment.Reports, assessment.Failures); err != nil {
			return fmt.Errorf("insert reports: %w", err)
		}
		return nil
	})
	if errors.Is(err, domain.ErrPersistenceConflict) {
		existingID, found, findErr := s.detector.CheckDuplicate(ctx, listing.Fingerprint)
		if findErr != nil {
			return reject(fmt.Errorf("resolve conflict: %w", findErr))
		}
		if !found {
			return reject(err)
		}
		logger.Info("fingerprint raced a concurrent insert", "fingerprint", listing.Fingerprint)
		return s.seenAgain(ctx, logger, result, existingID, listing)
	}
	if err != nil {
		return reject(fmt.Errorf("persist listing: %w", err))
	}
	listing.ID = id

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, &listing, true); err != nil {
			logger.Error("failed to publish listing", "listing_id", id, "error", err)
		}
	}

	result.Success = true
	result.ListingID = id
	result.Status = listing.Status
	result.RiskScore = listing.RiskScore
	result.Reports = assessment.Reports
	result.Failures = assessment.Failures

	logger.Info("listing ingested",
		"listing_id", id,
		"fingerprint", listing.Fingerprint,
		"status", listing.Status,
		"risk_score", listing.RiskScore,
		"failed_checks", len(assessment.Failures),
	)

	return result, nil
}

func (s *IngestService) seenAgain(ctx context.Context, logger *slog.Logger, result domain.IngestionResult, id int64, listing domain.CanonicalListing) (domain.IngestionResult, error) {
	seenAt := s.now().UTC()
	if err := s.listings.TouchLastSeen(ctx, id, seenAt); err != nil {
		logger.Warn("failed to update last seen", "listing_id", id, "error", err)
	}

	listing.ID = id
	listing.LastSeenAt = seenAt
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, &listing, false); err != nil {
			logger.Error("failed to publish listing", "listing_id", id, "error", err)
		}
	}

	logger.Info("duplicate listing", "listing_id", id, "fingerprint", listing.Fingerprint)

	result.Success = true
	result.IsDuplicate = true
	result.ListingID = id
	return result, nil
}

// IngestBatch ingests records concurrently on a bounded pool. Records not yet
// started when ctx is cancelled are counted as cancelled; finished ones stand.
func (s *IngestService) IngestBatch(ctx context.Context, sourceID string, payloads []domain.RawPayload, src domain.SourceConfig) domain.BatchResult {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With("source", sourceID, "run_id", runID)
	logger.Info("starting batch", "records", len(payloads), "workers", s.config.Workers)

	results := make([]domain.IngestionResult, len(payloads))
	errs := make([]error, len(payloads))
	started := make([]bool, len(payloads))

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for i, payload := range payloads {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			results[i], errs[i] = s.IngestOne(ctx, sourceID, payload, src)
			return nil
		})
	}
	_ = g.Wait()

	batch := domain.BatchResult{SourceID: sourceID}
	for i := range payloads {
		if !started[i] {
			batch.Cancelled++
			continue
		}
		res := results[i]
		batch.Results = append(batch.Results, res)
		switch {
		case errs[i] != nil:
			batch.RejectedListings++
			batch.Errors = append(batch.Errors, fmt.Sprintf("record %d: %v", i, errs[i]))
		case res.IsDuplicate:
			batch.UpdatedListings++
		default:
			batch.NewListings++
		}
	}
	batch.Duration = time.Since(startTime)

	logger.Info("batch completed",
		"new", batch.NewListings,
		"updated", batch.UpdatedListings,
		"rejected", batch.RejectedListings,
		"cancelled", batch.Cancelled,
		"duration", batch.Duration,
	)

	return batch
}

// IngestFromURL extracts listing records from url through the extraction
// router and ingests each of them as one batch.
func (s *IngestService) IngestFromURL(ctx context.Context, sourceID, url string, src domain.SourceConfig) (domain.BatchResult, error) {
	logger := s.logger.With("source", sourceID, "url", url)

	ext, err := s.extractor.Route(ctx, url, src.Type, src.Schema)
	if err != nil {
		err = fmt.Errorf("extract listings: %w", err)
		logger.Warn("extraction failed", "error", err)
		return domain.BatchResult{SourceID: sourceID, Errors: []string{err.Error()}}, err
	}

	if ext.Skipped || len(ext.Records) == 0 {
		logger.Info("no listings extracted", "skipped", ext.Skipped, "tier", ext.Tier)
		return domain.BatchResult{SourceID: sourceID}, nil
	}

	logger.Info("listings extracted",
		"tier", ext.Tier,
		"records", len(ext.Records),
		"from_cache", ext.FromCache,
		"has_content", ext.Content != "",
	)

	payloads := make([]domain.RawPayload, len(ext.Records))
	for i, rec := range ext.Records {
		payloads[i] = domain.RawPayload{Fields: rec, URL: url, Content: ext.Content}
	}

	return s.IngestBatch(ctx, sourceID, payloads, src), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
