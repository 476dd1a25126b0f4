// Package query derives stable names and metadata from search expressions.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

const maxSlug = 40

// Key returns a filesystem-safe identifier for q: a readable slug followed
// by a short content hash, so distinct queries never share a key.
func Key(q string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(q)))
	hash := hex.EncodeToString(sum[:])[:8]

	slug := Slug(q)
	if slug == "" {
		return hash
	}
	return slug + "-" + hash
}

// Slug lowercases q and collapses every run of non-alphanumerics to one
// underscore, trimmed to a bounded length.
func Slug(q string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(q) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			if b.Len() >= maxSlug {
				break
			}
			continue
		}
		pendingSep = true
	}
	return b.String()
}

var sourcePattern = regexp.MustCompile(`(?i)\bSO=\((.*?)\)`)

// ExtractSource returns the publication name from the first SO=(...)
// clause of an advanced search expression, upper-cased. It returns "" when
// the query has no source clause.
func ExtractSource(q string) string {
	m := sourcePattern.FindStringSubmatch(q)
	if m == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(strings.Trim(m[1], `"`)))
}
