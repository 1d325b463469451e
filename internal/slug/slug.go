// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// TakenFunc reports whether a slug is already in use, excluding one row.
type TakenFunc func(ctx context.Context, slug, excludeID string) (bool, error)

// Make lowercases the name and collapses non-alphanumeric runs to hyphens.
func Make(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// Unique appends a counter to the base slug until taken reports it free.
func Unique(ctx context.Context, name, excludeID string, taken TakenFunc) (string, error) {
	base := Make(name)
	candidate := base
	for i := 2; ; i++ {
		inUse, err := taken(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
