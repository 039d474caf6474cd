package match

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/idsync/internal/doc"
)

// Normalize produces the canonical form of a free-text identity field:
//  1. TrimSpace
//  2. NFC composition, so "Trần" typed with combining marks equals the precomposed form
//  3. Unicode lower-casing
//
// Diacritics are kept: "Tran" and "Trần" are different names.
// Normalize is pure and total; "" yields "".
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	// cases.Caser is stateful, so one per call keeps Normalize safe for concurrent use
	return cases.Lower(language.Und).String(s)
}

// NormalizeValue normalizes a document value. Missing and null values yield "",
// numbers their decimal text (phone numbers are sometimes stored as numbers).
func NormalizeValue(v doc.Value) string {
	s, ok := doc.Text(v)
	if !ok {
		return ""
	}
	return Normalize(s)
}
