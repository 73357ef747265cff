package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/fetch"
	"listing_ingest/internal/reasoning"
)

var defaultFields = []string{
	"title", "make", "model", "variant", "year", "price", "currency", "city",
	"mileage", "fuel_type", "transmission", "owner_count", "vin", "registration",
	"images", "description", "seller_type", "listing_id", "url",
}

type listingsEnvelope struct {
	Listings []map[string]any `json:"listings"`
}

// decodeListings accepts either {"listings":[...]} or a single listing object.
func decodeListings(raw string) ([]map[string]any, error) {
	var env listingsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if env.Listings != nil {
		return env.Listings, nil
	}

	var single map[string]any
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	if _, ok := single["make"]; ok {
		return []map[string]any{single}, nil
	}
	if _, ok := single["title"]; ok {
		return []map[string]any{single}, nil
	}
	return nil, nil
}

func fieldList(schema domain.ExtractionSchema) string {
	if len(schema.Fields) == 0 {
		return strings.Join(defaultFields, ", ")
	}
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func completeListings(ctx context.Context, p reasoning.Provider, prompt string) Result {
	text, err := p.Complete(ctx, prompt)
	if err != nil {
		return Failed(err)
	}
	raw, err := reasoning.ExtractJSON(text)
	if err != nil {
		return Failed(err)
	}
	records, err := decodeListings(raw)
	if err != nil {
		return Failed(err)
	}
	return Success(records)
}

// URLExtractor is the direct tier: the reasoning provider reads the page itself.
type URLExtractor struct {
	reasoner reasoning.Provider
}

func NewURLExtractor(reasoner reasoning.Provider) *URLExtractor {
	return &URLExtractor{reasoner: reasoner}
}

func (e *URLExtractor) Name() string {
	return "direct"
}

func (e *URLExtractor) Extract(ctx context.Context, in Input) Result {
	prompt := fmt.Sprintf(`Extract every used vehicle listing published at %s.
Return only JSON of the form {"listings": [ {...}, ... ]} where each listing has these keys when known: %s.
Use numbers for year, price, mileage and owner_count. Return {"listings": []} when the page has no listings.`,
		in.URL, fieldList(in.Schema))

	return completeListings(ctx, e.reasoner, prompt)
}

// ContentExtractor is the last-resort tier: it fetches the page, keeps the
// readable text and asks the reasoning provider to extract from that.
type ContentExtractor struct {
	fetcher  Fetcher
	reasoner reasoning.Provider
	maxChars int
}

func NewContentExtractor(fetcher Fetcher, reasoner reasoning.Provider, maxChars int) *ContentExtractor {
	return &ContentExtractor{fetcher: fetcher, reasoner: reasoner, maxChars: maxChars}
}

func (e *ContentExtractor) Name() string {
	return "content"
}

func (e *ContentExtractor) Extract(ctx context.Context, in Input) Result {
	body := in.Content
	if body == "" {
		page, err := e.fetcher.Get(ctx, in.URL)
		if err != nil {
			return Failed(fmt.Errorf("fetch page: %w", err))
		}
		body = page.Body
	}

	article, err := fetch.MainContent(body, in.URL)
	if err != nil {
		return Failed(err)
	}
	if article.Text == "" {
		return Empty()
	}
	text := fetch.Truncate(article.Text, e.maxChars)

	prompt := fmt.Sprintf(`The following text was taken from a vehicle classifieds page (%s).
Extract every listing it describes. Return only JSON of the form {"listings": [ {...}, ... ]} where each
listing has these keys when known: %s. Use numbers for year, price, mileage and owner_count.

TEXT:
%s`, in.URL, fieldList(in.Schema), text)

	return completeListings(ctx, e.reasoner, prompt).WithContent(body)
}
