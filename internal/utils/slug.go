package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength caps generated slugs; longer titles are cut at a word break.
const MaxSlugLength = 96

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)
	SlugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// foldMarks decomposes accented letters and drops the combining marks, so
// "Yojanā" becomes "Yojana".
func foldMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify turns a scheme, state or category title into a URL slug.
func Slugify(input string) string {
	s := strings.ToLower(foldMarks(strings.TrimSpace(input)))
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "&", " and ")
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLength {
		s = s[:MaxSlugLength]
		if i := strings.LastIndexByte(s, '-'); i > 0 {
			s = s[:i]
		}
		s = strings.Trim(s, "-")
	}
	return s
}

// ValidSlug reports whether s is already in slug form.
func ValidSlug(s string) bool {
	return SlugPattern.MatchString(s)
}
