package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/extraction"
)

const maxBodyBytes = 10 << 20

// Server exposes the ingestion entry points over HTTP.
type Server struct {
	ingestor Ingestor
	sources  SourceRegistry
	stats    ExtractionStats
	listings ListingCounter
	logger   *slog.Logger
}

func New(ingestor Ingestor, sources SourceRegistry, stats ExtractionStats, listings ListingCounter, logger *slog.Logger) *Server {
	return &Server{
		ingestor: ingestor,
		sources:  sources,
		stats:    stats,
		listings: listings,
		logger:   logger.With("component", "api"),
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.getStats)
		r.Route("/sources/{sourceID}", func(r chi.Router) {
			r.Post("/listings", s.postListing)
			r.Post("/listings/batch", s.postBatch)
			r.Post("/urls", s.postURL)
		})
	})

	return r
}

type ListingRequest = domain.RawPayload

type BatchRequest struct {
	Records []domain.RawPayload `json:"records"`
}

type URLRequest struct {
	URL string `json:"url"`
}

type StatsResponse struct {
	Extraction *extraction.Stats            `json:"extraction,omitempty"`
	Listings   map[domain.ListingStatus]int `json:"listings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if s.stats != nil {
		stats := s.stats.Stats()
		resp.Extraction = &stats
	}
	if s.listings != nil {
		counts, err := s.listings.CountByStatus(r.Context())
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, fmt.Errorf("count listings: %w", err))
			return
		}
		resp.Listings = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postListing(w http.ResponseWriter, r *http.Request) {
	sourceID, src, ok := s.source(w, r)
	if !ok {
		return
	}

	var req ListingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Fields) == 0 && req.Content == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("fields or content required"))
		return
	}

	result, err := s.ingestor.IngestOne(r.Context(), sourceID, req, src)
	switch {
	case err != nil:
		writeJSON(w, statusFor(err), result)
	case result.IsDuplicate:
		writeJSON(w, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Server) postBatch(w http.ResponseWriter, r *http.Request) {
	sourceID, src, ok := s.source(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Records) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("records required"))
		return
	}

	writeJSON(w, http.StatusOK, s.ingestor.IngestBatch(r.Context(), sourceID, req.Records, src))
}

func (s *Server) postURL(w http.ResponseWriter, r *http.Request) {
	sourceID, src, ok := s.source(w, r)
	if !ok {
		return
	}

	var req URLRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("url required"))
		return
	}

	batch, err := s.ingestor.IngestFromURL(r.Context(), sourceID, req.URL, src)
	if err != nil {
		writeJSON(w, statusFor(err), batch)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) source(w http.ResponseWriter, r *http.Request) (string, domain.SourceConfig, bool) {
	sourceID := chi.URLParam(r, "sourceID")
	src, err := s.sources.Source(sourceID)
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return "", domain.SourceConfig{}, false
	}
	return sourceID, src, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingRequiredFields),
		errors.Is(err, domain.ErrInvalidListing),
		errors.Is(err, domain.ErrOutsideLocale):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExtractionFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
