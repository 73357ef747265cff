package extraction

import (
	"context"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/fetch"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

type Input struct {
	URL     string
	Content string
	Schema  domain.ExtractionSchema
}

// Result is what one tier returns. Fallback to the next tier is an ordinary
// branch on Status, never an error path.
type Result struct {
	Status  Status
	Records []map[string]any
	// Content is the page markup the tier read, when it fetched one.
	Content string
	Err     error
}

func (r Result) WithContent(body string) Result {
	r.Content = body
	return r
}

func Success(records []map[string]any) Result {
	if len(records) == 0 {
		return Empty()
	}
	return Result{Status: StatusSuccess, Records: records}
}

func Empty() Result {
	return Result{Status: StatusEmpty}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Provider is one extraction backend.
type Provider interface {
	Name() string
	Extract(ctx context.Context, in Input) Result
}

// Fetcher downloads pages for the tiers that need raw markup.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

// Tier is a provider plus the router policies that apply to it.
type Tier struct {
	Provider Provider
	// Cached results are stored by (URL, schema) and served without calling the provider.
	Cached bool
	// Metered tiers count successful calls against the daily quota.
	Metered bool
}
