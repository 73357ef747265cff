package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	blockOpenRe  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])([\s>/])`)
)

// Article is the readable part of a page.
type Article struct {
	Title   string
	Text    string
	Excerpt string
}

// MainContent strips navigation and boilerplate from an HTML page and returns
// its readable text. When readability finds nothing, the whole body text is used.
func MainContent(rawHTML, pageURL string) (*Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err == nil && strings.TrimSpace(article.Content) != "" {
		text, err := Text(article.Content)
		if err != nil {
			return nil, err
		}
		if text != "" {
			return &Article{Title: article.Title, Text: text, Excerpt: article.Excerpt}, nil
		}
	}

	text, err := Text(rawHTML)
	if err != nil {
		return nil, err
	}
	return &Article{Text: text}, nil
}

// Text flattens HTML to whitespace-normalised text.
func Text(rawHTML string) (string, error) {
	spaced := blockOpenRe.ReplaceAllString(rawHTML, " <$1$2")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	return NormalizeText(doc.Text()), nil
}

func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Truncate cuts text to at most limit runes. A non-positive limit disables truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
