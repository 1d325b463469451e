// Package moderation screens post content against a wordlist.
package moderation

import (
	"bufio"
	"os"
	"strings"
	"unicode"
)

// Checker holds the blocked words, lowercased.
type Checker struct {
	words map[string]struct{}
}

// NewChecker loads a wordlist file, one word per line, '#' for comments.
// An empty path yields an empty checker that approves everything.
func NewChecker(path string) (*Checker, error) {
	c := &Checker{words: make(map[string]struct{})}
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		c.words[strings.ToLower(word)] = struct{}{}
	}
	return c, scanner.Err()
}

// NewCheckerFromWords builds a checker from an in-memory list.
func NewCheckerFromWords(words []string) *Checker {
	c := &Checker{words: make(map[string]struct{}, len(words))}
	for _, word := range words {
		c.words[strings.ToLower(strings.TrimSpace(word))] = struct{}{}
	}
	return c
}

// Allowed reports whether the content is free of blocked words.
func (c *Checker) Allowed(content string) bool {
	if len(c.words) == 0 {
		return true
	}
	tokens := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		if _, blocked := c.words[token]; blocked {
			return false
		}
	}
	return true
}
