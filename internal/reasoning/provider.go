package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var ErrNoJSON = errors.New("no json object in completion")

// Provider is a reasoning model that turns a prompt into text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
	CostPerCall() float64
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON returns the outermost {...} block of a free-form completion.
func ExtractJSON(text string) (string, error) {
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return "", ErrNoJSON
	}
	return match, nil
}

// CompleteJSON asks p for a completion and decodes the JSON object it contains into out.
func CompleteJSON(ctx context.Context, p Provider, prompt string, out any) error {
	text, err := p.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return fmt.Errorf("extract json from %s: %w", p.Name(), err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s response: %w", p.Name(), err)
	}
	return nil
}
