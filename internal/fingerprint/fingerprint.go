// Package fingerprint derives the comparison keys used for content dedup.
//
// A fingerprint carries three keys: a hash of the canonical URL (exact
// duplicate detection), a hash of the normalized text (same content under a
// different URL), and the normalized title (near-duplicate lookup). All
// derivation is pure and deterministic; the package does no I/O.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"
)

// Fingerprint is the set of comparison keys derived from one item.
//
// ContentHash is empty when the item has neither body nor excerpt; callers
// must exclude empty content hashes from content-match lookups, otherwise
// every text-less item would alias to the hash of the empty string.
type Fingerprint struct {
	URLHash     string
	ContentHash string
	TitleKey    string
}

// New derives a Fingerprint from an item's URL, title, and text.
// Body is preferred over excerpt for the content key.
func New(url, title, body, excerpt string) Fingerprint {
	text := body
	if text == "" {
		text = excerpt
	}

	var contentHash string
	if norm := Normalize(text); norm != "" {
		contentHash = hashString(norm)
	}

	return Fingerprint{
		URLHash:     hashString(url),
		ContentHash: contentHash,
		TitleKey:    Normalize(title),
	}
}

// Normalize lowercases text, strips everything that is not a letter or digit,
// and collapses runs of whitespace into single spaces.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			// Whitespace and punctuation both act as separators.
			space = true
		}
	}
	return b.String()
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
