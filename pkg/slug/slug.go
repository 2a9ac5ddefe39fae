package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly slug from the given name. Nordic characters
// are transliterated to ASCII equivalents.
//
// Examples:
//   - "Vinterjakke Blå" → "vinterjakke-bla"
//   - "Børn & Baby" → "born-baby"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))

	replacer := strings.NewReplacer(
		"å", "a",
		"ä", "a",
		"æ", "ae",
		"ö", "o",
		"ø", "o",
		"é", "e",
		"ü", "u",
		"ß", "ss",
	)
	slug = replacer.Replace(slug)

	slug = nonAlnum.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return slug
}
