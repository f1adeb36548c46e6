// Package text provides token estimation and boundary-aware splitting for
// the ingestion pipeline.
package text

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the estimation heuristic: roughly four characters per
// token for mixed prose. Deliberately cheap; routing and chunking only
// need the right order of magnitude, not tokenizer-exact counts.
const charsPerToken = 4

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// Split cuts s into ordered chunks of at most targetTokens estimated
// tokens each, preferring natural boundaries. Within each window it
// tries, in order: paragraph breaks, sentence ends, single newlines,
// spaces; only when a window contains none of these does it cut mid-word.
//
// Whitespace-only input yields no chunks. Every returned chunk is
// non-empty after trimming.
func Split(s string, targetTokens int) []string {
	if targetTokens <= 0 {
		targetTokens = 1
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	maxRunes := targetTokens * charsPerToken

	var chunks []string
	for s != "" {
		if utf8.RuneCountInString(s) <= maxRunes {
			chunks = append(chunks, s)
			break
		}

		window := truncateRunes(s, maxRunes)
		cut := boundaryIndex(window)
		if chunk := strings.TrimSpace(window[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		s = strings.TrimSpace(s[cut:])
	}
	return chunks
}

// boundaryIndex finds the best cut position within a window, scanning
// from the end for progressively weaker boundaries.
func boundaryIndex(window string) int {
	// Paragraph break
	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return i + 2
	}
	// Sentence end followed by whitespace
	for i := len(window) - 2; i > 0; i-- {
		c := window[i]
		if (c == '.' || c == '!' || c == '?') && isSpaceByte(window[i+1]) {
			return i + 2
		}
	}
	// Line break
	if i := strings.LastIndexByte(window, '\n'); i > 0 {
		return i + 1
	}
	// Word break
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return i + 1
	}
	// No boundary at all; the window already ends at a rune edge
	return len(window)
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// truncateRunes returns the longest prefix of s holding at most n runes,
// never splitting a multi-byte sequence.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
