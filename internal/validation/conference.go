// Package validation holds input rules shared by the API and the tooling.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	conferenceSlugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	conferenceYearRegex = regexp.MustCompile(`^[0-9]{4}$`)
	nonSlugChars        = regexp.MustCompile(`[^a-z0-9]+`)
)

const maxConferenceSlugLen = 255

// ConferenceSlug derives the URL slug of a conference from its city and year,
// e.g. "Amsterdam", "2019" -> "amsterdam-2019". Accents are folded to ASCII.
func ConferenceSlug(city, year string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, city+" "+year)
	if err != nil {
		folded = city + " " + year
	}
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(slug, "-")
}

// ValidateConferenceSlug checks the slug format used in conference URLs.
func ValidateConferenceSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("conference slug is required")
	}
	if len(slug) > maxConferenceSlugLen {
		return fmt.Errorf("conference slug must be at most %d characters", maxConferenceSlugLen)
	}
	if !conferenceSlugRegex.MatchString(slug) {
		return fmt.Errorf("conference slug must contain only lowercase letters, numbers, and single hyphens")
	}
	return nil
}

// ValidateConference checks the fields of a conference before it is stored.
func ValidateConference(city, year string) error {
	if strings.TrimSpace(city) == "" {
		return fmt.Errorf("city is required")
	}
	if !conferenceYearRegex.MatchString(year) {
		return fmt.Errorf("year must be four digits")
	}
	return nil
}
