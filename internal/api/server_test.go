package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"listing_ingest/internal/api/mocks"
	"listing_ingest/internal/domain"
	"listing_ingest/internal/extraction"
)

type ServerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	ingestor *mocks.MockIngestor
	sources  *mocks.MockSourceRegistry
	stats    *mocks.MockExtractionStats
	listings *mocks.MockListingCounter

	handler http.Handler
	src     domain.SourceConfig
}

func (s *ServerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.ingestor = mocks.NewMockIngestor(s.ctrl)
	s.sources = mocks.NewMockSourceRegistry(s.ctrl)
	s.stats = mocks.NewMockExtractionStats(s.ctrl)
	s.listings = mocks.NewMockListingCounter(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.handler = New(s.ingestor, s.sources, s.stats, s.listings, logger).Routes()

	s.src = domain.SourceConfig{ID: "olx", Type: domain.SourceUnstructured}
	s.sources.EXPECT().Source("olx").Return(s.src, nil).AnyTimes()
	s.sources.EXPECT().Source(gomock.Not("olx")).DoAndReturn(func(id string) (domain.SourceConfig, error) {
		return domain.SourceConfig{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, id)
	}).AnyTimes()
}

func (s *ServerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *ServerTestSuite) TestPostListing_Created() {
	s.ingestor.EXPECT().IngestOne(gomock.Any(), "olx", gomock.Any(), s.src).DoAndReturn(
		func(_ context.Context, _ string, payload domain.RawPayload, _ domain.SourceConfig) (domain.IngestionResult, error) {
			s.Equal("Toyota", payload.Fields["make"])
			s.Equal(json.Number("2019"), payload.Fields["year"])
			return domain.IngestionResult{Success: true, ListingID: 42, Fingerprint: "VIN:X", Status: domain.StatusPending}, nil
		},
	)

	rec := s.do(http.MethodPost, "/v1/sources/olx/listings", `{"fields":{"make":"Toyota","model":"Corolla","year":2019}}`)

	s.Equal(http.StatusCreated, rec.Code)
	var result domain.IngestionResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.Equal(int64(42), result.ListingID)
	s.Equal("VIN:X", result.Fingerprint)
}

func (s *ServerTestSuite) TestPostListing_Duplicate() {
	s.ingestor.EXPECT().IngestOne(gomock.Any(), "olx", gomock.Any(), s.src).
		Return(domain.IngestionResult{Success: true, IsDuplicate: true, ListingID: 42}, nil)

	rec := s.do(http.MethodPost, "/v1/sources/olx/listings", `{"fields":{"vin":"X"}}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"is_duplicate":true`)
}

func (s *ServerTestSuite) TestPostListing_Rejected() {
	err := fmt.Errorf("normalize: %w", &domain.MissingFieldsError{Fields: []string{"make", "model"}})
	s.ingestor.EXPECT().IngestOne(gomock.Any(), "olx", gomock.Any(), s.src).
		Return(domain.IngestionResult{Errors: []string{err.Error()}}, err)

	rec := s.do(http.MethodPost, "/v1/sources/olx/listings", `{"fields":{"price":"5 lakh"}}`)

	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), "make")
}

func (s *ServerTestSuite) TestPostListing_BadRequests() {
	rec := s.do(http.MethodPost, "/v1/sources/olx/listings", `{not json`)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/sources/olx/listings", `{}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestPostListing_UnknownSource() {
	rec := s.do(http.MethodPost, "/v1/sources/nope/listings", `{"fields":{"make":"Toyota"}}`)

	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "unknown source")
}

func (s *ServerTestSuite) TestPostBatch() {
	s.ingestor.EXPECT().IngestBatch(gomock.Any(), "olx", gomock.Len(2), s.src).
		Return(domain.BatchResult{SourceID: "olx", NewListings: 1, RejectedListings: 1, Errors: []string{"record 1: missing"}})

	rec := s.do(http.MethodPost, "/v1/sources/olx/listings/batch", `{"records":[{"fields":{"make":"Toyota"}},{"fields":{}}]}`)

	s.Equal(http.StatusOK, rec.Code)
	var batch domain.BatchResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &batch))
	s.Equal(1, batch.NewListings)
	s.Equal(1, batch.RejectedListings)
}

func (s *ServerTestSuite) TestPostBatch_Empty() {
	rec := s.do(http.MethodPost, "/v1/sources/olx/listings/batch", `{"records":[]}`)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestPostURL() {
	s.ingestor.EXPECT().IngestFromURL(gomock.Any(), "olx", "https://olx.example/cars", s.src).
		Return(domain.BatchResult{SourceID: "olx", NewListings: 3}, nil)

	rec := s.do(http.MethodPost, "/v1/sources/olx/urls", `{"url":"https://olx.example/cars"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"new_listings":3`)
}

func (s *ServerTestSuite) TestPostURL_ExtractionFailure() {
	err := fmt.Errorf("extract listings: %w", domain.ErrExtractionFailure)
	s.ingestor.EXPECT().IngestFromURL(gomock.Any(), "olx", "https://olx.example/cars", s.src).
		Return(domain.BatchResult{SourceID: "olx", Errors: []string{err.Error()}}, err)

	rec := s.do(http.MethodPost, "/v1/sources/olx/urls", `{"url":"https://olx.example/cars"}`)

	s.Equal(http.StatusBadGateway, rec.Code)
	s.Contains(rec.Body.String(), "extraction failure")
}

func (s *ServerTestSuite) TestGetStats() {
	s.stats.EXPECT().Stats().Return(extraction.Stats{CacheHits: 3, CacheMisses: 1, CacheHitRate: 0.75})
	s.listings.EXPECT().CountByStatus(gomock.Any()).Return(map[domain.ListingStatus]int{
		domain.StatusPending: 4,
		domain.StatusFlagged: 1,
	}, nil)

	rec := s.do(http.MethodGet, "/v1/stats", "")

	s.Equal(http.StatusOK, rec.Code)
	var resp StatsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().NotNil(resp.Extraction)
	s.Equal(0.75, resp.Extraction.CacheHitRate)
	s.Equal(4, resp.Listings[domain.StatusPending])
	s.Equal(1, resp.Listings[domain.StatusFlagged])
}

func (s *ServerTestSuite) TestGetStats_StoreError() {
	s.stats.EXPECT().Stats().Return(extraction.Stats{})
	s.listings.EXPECT().CountByStatus(gomock.Any()).Return(nil, errors.New("db down"))

	rec := s.do(http.MethodGet, "/v1/stats", "")

	s.Equal(http.StatusInternalServerError, rec.Code)
}
