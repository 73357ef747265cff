package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/fetch"
)

var ErrNoSchema = errors.New("extraction schema required")

// SelectorScraper is the structured tier: it applies a CSS selector schema to
// the live page.
type SelectorScraper struct {
	fetcher Fetcher
}

func NewSelectorScraper(fetcher Fetcher) *SelectorScraper {
	return &SelectorScraper{fetcher: fetcher}
}

func (s *SelectorScraper) Name() string {
	return "structured"
}

func (s *SelectorScraper) Extract(ctx context.Context, in Input) Result {
	if len(in.Schema.Fields) == 0 {
		return Failed(ErrNoSchema)
	}

	body := in.Content
	if body == "" {
		page, err := s.fetcher.Get(ctx, in.URL)
		if err != nil {
			return Failed(fmt.Errorf("fetch page: %w", err))
		}
		body = page.Body
	}

	records, err := ApplySchema(body, in.URL, in.Schema)
	if err != nil {
		return Failed(err)
	}
	return Success(records).WithContent(body)
}

type fieldSpec struct {
	selector string
	attr     string
	multi    bool
}

func parseFieldSpec(raw string) fieldSpec {
	spec := fieldSpec{}
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "[]") {
		spec.multi = true
		raw = strings.TrimSuffix(raw, "[]")
	}
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		spec.attr = strings.TrimSpace(raw[i+1:])
		raw = raw[:i]
	}
	spec.selector = strings.TrimSpace(raw)
	return spec
}

// ApplySchema extracts one record per schema item found in rawHTML.
func ApplySchema(rawHTML, pageURL string, schema domain.ExtractionSchema) ([]map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	items := doc.Selection
	if schema.Item != "" {
		items = doc.Find(schema.Item)
	}

	specs := make(map[string]fieldSpec, len(schema.Fields))
	for field, raw := range schema.Fields {
		specs[field] = parseFieldSpec(raw)
	}

	var records []map[string]any
	items.Each(func(_ int, item *goquery.Selection) {
		record := make(map[string]any)
		for field, spec := range specs {
			if v, ok := extractField(item, spec, base); ok {
				record[field] = v
			}
		}
		if len(record) == 0 {
			return
		}
		if _, ok := record["url"]; !ok {
			if link := itemLink(item, base, schema.Item != ""); link != "" {
				record["url"] = link
			} else if pageURL != "" {
				record["url"] = pageURL
			}
		}
		records = append(records, record)
	})

	return records, nil
}

func extractField(item *goquery.Selection, spec fieldSpec, base *url.URL) (any, bool) {
	nodes := item
	if spec.selector != "" && spec.selector != "." {
		nodes = item.Find(spec.selector)
	}
	if nodes.Length() == 0 {
		return nil, false
	}

	read := func(sel *goquery.Selection) string {
		if spec.attr == "" {
			return fetch.NormalizeText(sel.Text())
		}
		v, _ := sel.Attr(spec.attr)
		v = strings.TrimSpace(v)
		if isURLAttr(spec.attr) {
			v = resolve(base, v)
		}
		return v
	}

	if !spec.multi {
		v := read(nodes.First())
		return v, v != ""
	}

	var values []any
	nodes.Each(func(_ int, sel *goquery.Selection) {
		if v := read(sel); v != "" {
			values = append(values, v)
		}
	})
	return values, len(values) > 0
}

// itemLink returns the first link inside a listing card, which is normally
// the listing's own detail page.
func itemLink(item *goquery.Selection, base *url.URL, isCard bool) string {
	if !isCard {
		return ""
	}
	link := item.Filter("a[href]")
	if link.Length() == 0 {
		link = item.Find("a[href]").First()
	}
	href, ok := link.Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	return resolve(base, href)
}

func isURLAttr(attr string) bool {
	switch attr {
	case "href", "src", "data-src", "srcset":
		return true
	}
	return false
}

func resolve(base *url.URL, ref string) string {
	if base == nil || ref == "" {
		return ref
	}
	if parts := strings.Fields(ref); len(parts) > 1 {
		ref = parts[0]
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
