package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/fetch"
	"listing_ingest/internal/reasoning"
	"listing_ingest/internal/resilience"
)

const DefaultCurrency = "INR"

// Outcome is a normalized listing plus what it cost to get there.
type Outcome struct {
	Listing      domain.CanonicalListing
	Confidence   float64
	UsedFallback bool
	Cost         float64
}

type Normalizer struct {
	reasoner  reasoning.Provider
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Normalizer. A nil reasoner disables the reasoning fallback.
func New(reasoner reasoning.Provider, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		reasoner: reasoner,
		now:      time.Now,
		logger:   logger.With("component", "normalizer"),
	}
}

// WithConfidenceThreshold sends records scoring below threshold to the
// reasoning fallback even when every required field resolved. Zero disables it.
func (n *Normalizer) WithConfidenceThreshold(threshold float64) *Normalizer {
	n.threshold = threshold
	return n
}

func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

func (n *Normalizer) Normalize(ctx context.Context, payload domain.RawPayload, src domain.SourceConfig) (domain.CanonicalListing, error) {
	out, err := n.Resolve(ctx, payload, src)
	if err != nil {
		return domain.CanonicalListing{}, err
	}
	return out.Listing, nil
}

// Resolve maps a raw payload onto the canonical shape: the source's field map
// when it has one, alias heuristics otherwise, then a reasoning pass if title,
// make, model or year is still unknown or the record scores low on confidence.
func (n *Normalizer) Resolve(ctx context.Context, payload domain.RawPayload, src domain.SourceConfig) (Outcome, error) {
	var out Outcome

	draft := NewDraft()
	if len(src.FieldMap) > 0 {
		draft = ApplyFieldMap(draft, payload.Fields, src.FieldMap)
	} else {
		draft = applyAliases(draft, payload.Fields)
	}
	draft = synthesize(draft)

	if n.reasoner != nil && n.needsFallback(draft) {
		fallback, err := n.fallback(ctx, payload, src)
		out.UsedFallback = true
		out.Cost += n.reasoner.CostPerCall()
		if err != nil {
			if ctx.Err() != nil {
				return out, fmt.Errorf("normalize fallback: %w", ctx.Err())
			}
			n.logger.Warn("reasoning normalization failed",
				"source", src.ID,
				"missing", draft.Missing(),
				"confidence", Confidence(draft),
				"error", err,
			)
		} else {
			draft = synthesize(draft.Fill(fallback))
		}
	}

	if missing := draft.Missing(); len(missing) > 0 {
		return out, &domain.MissingFieldsError{Fields: missing}
	}
	out.Confidence = Confidence(draft)

	if !draft.Has(FieldSourceListingID) && draft.Has(FieldURL) {
		if id := listingIDFromURL(draft.listing.SourceURL, payload.URL); id != "" {
			draft = draft.With(FieldSourceListingID, id)
		}
	}

	if !draft.Has(FieldURL) && payload.URL != "" {
		draft = draft.With(FieldURL, payload.URL)
	}
	if !draft.Has(FieldCity) && src.DefaultCity != "" {
		draft = draft.With(FieldCity, src.DefaultCity)
	}
	if !draft.Has(FieldCurrency) {
		currency := src.DefaultCurrency
		if currency == "" {
			currency = DefaultCurrency
		}
		draft = draft.With(FieldCurrency, currency)
	}

	listing := draft.Listing()
	listing.SourceID = src.ID
	listing.Confidence = out.Confidence
	if err := listing.Validate(n.now()); err != nil {
		return out, err
	}

	out.Listing = listing
	return out, nil
}

func (n *Normalizer) needsFallback(d Draft) bool {
	if len(d.Missing()) > 0 || !d.Has(FieldYear) {
		return true
	}
	return Confidence(d) < n.threshold
}

// Confidence scores how completely a record resolved, from 0 to 1. Price,
// images and location each lower the score when absent. Defaults applied
// afterwards do not count.
func Confidence(d Draft) float64 {
	score := 0.9
	if !d.Has(FieldPrice) {
		score -= 0.4
	}
	if !d.Has(FieldImages) {
		score -= 0.3
	}
	if !d.Has(FieldCity) {
		score -= 0.2
	}
	return math.Round(max(0, min(1, score))*100) / 100
}

// listingIDFromURL derives a source-local id from a record's own link. A link
// equal to the page the record was scraped from identifies nothing.
func listingIDFromURL(recordURL, pageURL string) string {
	id := resilience.NormalizeURL(recordURL)
	if id == "" || (pageURL != "" && id == resilience.NormalizeURL(pageURL)) {
		return ""
	}
	if i := strings.Index(id, "://"); i >= 0 {
		id = id[i+len("://"):]
	}
	return id
}

// ApplyFieldMap copies fields named by the source map onto their canonical
// names. Source names may use dots to reach into nested objects.
func ApplyFieldMap(d Draft, fields map[string]any, fieldMap map[string]string) Draft {
	names := make([]string, 0, len(fieldMap))
	for name := range fieldMap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if v, ok := lookupPath(fields, name); ok {
			d = d.With(fieldMap[name], v)
		}
	}
	return d
}

// synthesize derives fields that can be inferred from ones already resolved.
func synthesize(d Draft) Draft {
	l := d.listing

	if !d.Has(FieldYear) {
		if y, ok := YearFromText(l.Title); ok {
			d = d.With(FieldYear, y)
		} else if l.Description != nil {
			if y, ok := YearFromText(*l.Description); ok {
				d = d.With(FieldYear, y)
			}
		}
	}

	if !d.Has(FieldTitle) && d.Has(FieldMake) && d.Has(FieldModel) {
		parts := []string{l.Make, l.Model}
		if d.Has(FieldYear) {
			parts = append([]string{strconv.Itoa(d.listing.Year)}, parts...)
		}
		d = d.With(FieldTitle, strings.Join(parts, " "))
	}
	return d
}

func (n *Normalizer) fallback(ctx context.Context, payload domain.RawPayload, src domain.SourceConfig) (Draft, error) {
	raw, err := json.Marshal(payload.Fields)
	if err != nil {
		return Draft{}, fmt.Errorf("marshal payload: %w", err)
	}

	content := fetch.Truncate(payload.Content, 2000)

	prompt := fmt.Sprintf(`You normalize used vehicle listings scraped from a %s source.
Given the raw record below, return only a JSON object with these keys when they can be determined:
title, make, model, year, price, currency, city, vin, registration, mileage, fuel_type, transmission,
owner_count, images, description, seller_type, source_listing_id, url.
Use numbers for year, price, mileage and owner_count. Omit keys you cannot determine.

RAW RECORD:
%s
%s`, src.Type, raw, content)

	var fields map[string]any
	if err := reasoning.CompleteJSON(ctx, n.reasoner, prompt, &fields); err != nil {
		return Draft{}, err
	}

	return applyAliases(NewDraft(), fields), nil
}
