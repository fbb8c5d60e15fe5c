// Package slug derives URL-safe identifiers from business names.
package slug

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmpty is returned when a name has no letters or digits to keep.
var ErrEmpty = errors.New("could not generate valid slug from business name")

// fold strips combining marks after canonical decomposition, so "é" becomes "e".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Make lowercases name, folds diacritics and joins the remaining
// [a-z0-9] runs with single hyphens.
func Make(name string) (string, error) {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(fold(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return "", ErrEmpty
	}
	return b.String(), nil
}

// FileSafeName keeps a display name readable in a file name while removing
// path separators, control characters and surrounding dots or spaces.
func FileSafeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, name)
	return strings.Trim(cleaned, ". ")
}
