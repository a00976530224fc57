package slug

import (
	"strconv"
	"strings"

	gosimple "github.com/gosimple/slug"
)

// maxLength bounds generated slugs so they stay readable in URLs.
const maxLength = 80

// Generate creates a URL-safe slug from a store, product or category name.
// Spanish substitutions apply ("&" becomes "y") and accents are transliterated.
//
// Examples:
//   - "Córdoba Capital" → "cordoba-capital"
//   - "Mate & Bombilla" → "mate-y-bombilla"
//   - "Ñandú   Artesanal!" → "nandu-artesanal"
func Generate(name string) string {
	s := gosimple.MakeLang(strings.TrimSpace(name), "es")
	if len(s) > maxLength {
		s = strings.TrimRight(s[:maxLength], "-")
	}
	return s
}

// WithSuffix returns base with a numeric suffix, used to resolve collisions
// against the unique slug index. n <= 1 returns base unchanged.
func WithSuffix(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// IsValid reports whether s is already a well-formed slug.
func IsValid(s string) bool {
	return gosimple.IsSlug(s)
}
