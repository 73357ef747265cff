package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

type SourceType string

const (
	SourceStructured   SourceType = "structured"
	SourceUnstructured SourceType = "unstructured"
)

// ExtractionSchema drives schema-guided extraction. Item selects one element per
// listing; Fields maps canonical field names to a selector, optionally suffixed
// with @attr to read an attribute instead of text. A trailing [] collects every
// match instead of the first one (e.g. "img@src[]").
type ExtractionSchema struct {
	Item   string            `json:"item" yaml:"item"`
	Fields map[string]string `json:"fields" yaml:"fields"`
}

// Key is stable across map iteration order.
func (s ExtractionSchema) Key() string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(s.Item)
	for _, name := range names {
		sb.WriteString("\x00")
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(s.Fields[name])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:8])
}

func (s ExtractionSchema) IsZero() bool {
	return s.Item == "" && len(s.Fields) == 0
}

type SourceConfig struct {
	ID              string
	Type            SourceType
	URLs            []string
	FieldMap        map[string]string
	AllowedLocales  []string
	DefaultCity     string
	DefaultCurrency string
	Schema          ExtractionSchema
}

// RawPayload is the source-specific input of one ingestion call.
type RawPayload struct {
	Fields  map[string]any `json:"fields"`
	Content string         `json:"content,omitempty"`
	URL     string         `json:"url,omitempty"`
}
