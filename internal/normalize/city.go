package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var cityAliases = map[string]string{
	"bangalore":    "Bengaluru",
	"bengaluru":    "Bengaluru",
	"blr":          "Bengaluru",
	"bombay":       "Mumbai",
	"mumbai":       "Mumbai",
	"navi mumbai":  "Navi Mumbai",
	"gurgaon":      "Gurugram",
	"gurugram":     "Gurugram",
	"hyd":          "Hyderabad",
	"hyderabad":    "Hyderabad",
	"secunderabad": "Hyderabad",
	"madras":       "Chennai",
	"chennai":      "Chennai",
	"calcutta":     "Kolkata",
	"kolkata":      "Kolkata",
	"new delhi":    "Delhi",
	"delhi":        "Delhi",
	"ncr":          "Delhi",
	"poona":        "Pune",
	"pune":         "Pune",
	"mysore":       "Mysuru",
	"trivandrum":   "Thiruvananthapuram",
	"cochin":       "Kochi",
	"vizag":        "Visakhapatnam",
	"baroda":       "Vadodara",
}

// CanonicalCity collapses whitespace, applies the alias table and title-cases
// anything unknown. For "Area, City" values a known city segment wins.
func CanonicalCity(raw string) string {
	city := collapseSpace(raw)
	if city == "" {
		return ""
	}

	if canonical, ok := cityAliases[strings.ToLower(city)]; ok {
		return canonical
	}

	segments := strings.Split(city, ",")
	for i := len(segments) - 1; i >= 0; i-- {
		if canonical, ok := cityAliases[strings.ToLower(strings.TrimSpace(segments[i]))]; ok {
			return canonical
		}
	}

	return cases.Title(language.English).String(strings.ToLower(city))
}

// InLocales reports whether city is one of allowed. An empty allow-list admits everything.
func InLocales(city string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(CanonicalCity(a), city) {
			return true
		}
	}
	return false
}
