package recognizer

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics strips diacritical marks (e.g. "José" -> "Jose").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// slugify lowercases a name and keeps only letters, digits and dashes,
// so it can be embedded in a public identifier.
func slugify(s string) string {
	s = removeDiacritics(strings.TrimSpace(s))
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// newPersonUID builds the public identifier for a newly enrolled person:
// a readable name slug plus a random suffix to keep it unique.
func newPersonUID(firstName, lastName string) string {
	slug := slugify(firstName + " " + lastName)
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
