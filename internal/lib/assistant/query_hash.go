package assistant

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[.,;:!?()"'-]`)
)

// HashQuery returns a stable key for a query so that "Kyiv" and " kyiv? "
// share one cached answer
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(NormalizeQuery(query)))
	return fmt.Sprintf("%x", hash)
}

// NormalizeQuery lowercases, strips punctuation and collapses whitespace
func NormalizeQuery(query string) string {
	normalized := strings.ToLower(query)
	normalized = punctuation.ReplaceAllString(normalized, " ")
	normalized = whitespace.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}
