package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	yearRe    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	ordinalRe = regexp.MustCompile(`\b(\d+)\s*(?:st|nd|rd|th)?\b`)
	spaceRe   = regexp.MustCompile(`\s+`)
	rupeeRe   = regexp.MustCompile(`(?i)(₹|\brs\.?(?:\s|\d|$)|\binr\b)`)
	dollarRe  = regexp.MustCompile(`(?i)(\$|\busd\b)`)
	euroRe    = regexp.MustCompile(`(?i)(€|\beur\b)`)
	poundRe   = regexp.MustCompile(`(?i)(£|\bgbp\b)`)
	unitRe    = regexp.MustCompile(`(?i)^\s*(crores?|cr|lakhs?|lacs?|l|k)\b`)
)

var ordinalWords = map[string]int{
	"single": 1, "first": 1, "one": 1,
	"second": 2, "two": 2,
	"third": 3, "three": 3,
	"fourth": 4, "four": 4,
	"fifth": 5, "five": 5,
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func toString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		return s, s != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func optionalString(raw any) (*string, bool) {
	s, ok := toString(raw)
	if !ok {
		return nil, false
	}
	return &s, true
}

func optionalLower(raw any) (*string, bool) {
	s, ok := toString(raw)
	if !ok {
		return nil, false
	}
	s = strings.ToLower(collapseSpace(s))
	return &s, true
}

func toID(raw any) (string, bool) {
	return toString(raw)
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// firstAmount reads the first number in s, scaled by a crore, lakh or
// thousand suffix written directly after that number.
func firstAmount(s string) (float64, bool) {
	loc := numberRe.FindStringIndex(s)
	if loc == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s[loc[0]:loc[1]], ",", ""), 64)
	if err != nil {
		return 0, false
	}

	m := unitRe.FindStringSubmatch(s[loc[1]:])
	if m == nil {
		return f, true
	}
	switch strings.ToLower(m[1]) {
	case "crore", "crores", "cr":
		f *= 1e7
	case "lakh", "lakhs", "lac", "lacs", "l":
		f *= 1e5
	case "k":
		f *= 1e3
	}
	return f, true
}

// ParsePrice reads an amount and, when present, a currency code from values
// like 450000, "₹ 4,50,000", "Rs 9.5 lakh" or "$12,500".
func ParsePrice(raw any) (float64, string, bool) {
	if f, ok := toFloat(raw); ok {
		return f, "", true
	}

	s, ok := raw.(string)
	if !ok {
		return 0, "", false
	}
	amount, ok := firstAmount(s)
	if !ok {
		return 0, "", false
	}

	return math.Round(amount*100) / 100, DetectCurrency(s), true
}

// DetectCurrency maps a currency symbol or code to its ISO code, or "" if none is found.
func DetectCurrency(s string) string {
	switch {
	case rupeeRe.MatchString(s):
		return "INR"
	case dollarRe.MatchString(s):
		return "USD"
	case euroRe.MatchString(s):
		return "EUR"
	case poundRe.MatchString(s):
		return "GBP"
	}
	return ""
}

func ParseYear(raw any) (int, bool) {
	if f, ok := toFloat(raw); ok {
		return int(f), f > 0 && f == math.Trunc(f)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	return YearFromText(s)
}

// YearFromText finds the first 19xx or 20xx year in free text.
func YearFromText(s string) (int, bool) {
	match := yearRe.FindString(s)
	if match == "" {
		return 0, false
	}
	y, err := strconv.Atoi(match)
	return y, err == nil
}

// ParseMileage reads odometer values like 45000 or "45,000 km".
func ParseMileage(raw any) (int, bool) {
	if f, ok := toFloat(raw); ok {
		return int(math.Round(f)), f >= 0
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	f, ok := firstAmount(s)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

// ParseOwnerCount reads values like 2, "1st owner" or "second".
func ParseOwnerCount(raw any) (int, bool) {
	if f, ok := toFloat(raw); ok {
		return int(f), f >= 0
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	lower := strings.ToLower(s)
	if m := ordinalRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	for _, word := range strings.Fields(lower) {
		if n, ok := ordinalWords[strings.Trim(word, ".,;:")]; ok {
			return n, true
		}
	}
	return 0, false
}

func toStrings(raw any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			add(part)
		}
	case []string:
		for _, s := range v {
			add(s)
		}
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				add(it)
			case map[string]any:
				for _, key := range []string{"url", "src", "href"} {
					if s, ok := it[key].(string); ok {
						add(s)
						break
					}
				}
			}
		}
	}
	return out
}

func toFlags(raw any) map[string]bool {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	flags := make(map[string]bool, len(m))
	for k, v := range m {
		switch b := v.(type) {
		case bool:
			flags[k] = b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				flags[k] = parsed
			}
		}
	}
	return flags
}
