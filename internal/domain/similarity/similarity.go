// Package similarity provides string similarity scoring for matching
// payment data against customer and client records.
//
// Two scoring modes are exposed:
//   - Score, for free-text fields like names and company names
//   - AccountScore, for account-number-like fields, which normalizes
//     more aggressively and scores stricter
//
// All functions are pure and deterministic. Scores are always in [0, 1].
package similarity

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Scaling factors for the individual heuristics. Only an exact match
// after normalization can produce a full 1.0.
const (
	containsScale = 0.80
	tokenScale    = 0.85
	sequenceScale = 0.90

	// Account numbers should match more precisely than free text, so
	// the sequence heuristic is capped lower for them.
	accountSequenceScale = 0.80
)

var (
	punctRe      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Honorific prefixes stripped during normalization.
var honorifics = []string{"mr", "mrs", "ms", "dr", "prof"}

// Normalize lowercases a string, strips a leading honorific, removes
// punctuation and collapses runs of whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ToLower(text)

	for _, prefix := range honorifics {
		if strings.HasPrefix(text, prefix+" ") {
			text = text[len(prefix)+1:]
			break
		}
	}

	text = punctRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// NormalizeAccount strips everything except letters and digits. Account
// numbers keep no honorific handling; "xxx-1234" and "XXX1234" compare equal.
func NormalizeAccount(account string) string {
	if account == "" {
		return ""
	}
	return nonAlnumRe.ReplaceAllString(account, "")
}

// Score calculates similarity between two free-text strings.
//
// Both inputs are normalized, then four heuristics run independently and
// the best score wins (never an average): exact match, containment,
// token-set Jaccard, and edit-distance ratio.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	a = Normalize(a)
	b = Normalize(b)

	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	return max3(
		containsScore(a, b),
		tokenScore(a, b),
		sequenceScale*sequenceRatio(a, b),
	)
}

// AccountScore calculates similarity between two account numbers.
// Stricter than Score: only containment and a down-scaled sequence ratio
// are considered after the exact check.
func AccountScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	a = NormalizeAccount(a)
	b = NormalizeAccount(b)

	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	if strings.Contains(b, a) || strings.Contains(a, b) {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		// Longer overlaps are better; a 4-digit suffix inside a 12-digit
		// account is a weak signal.
		return containsScale * float64(minLen) / float64(maxLen)
	}

	return accountSequenceScale * sequenceRatio(a, b)
}

// containsScore scores substring containment, weighted by the length
// ratio so short fragments cannot dominate.
func containsScore(a, b string) float64 {
	switch {
	case strings.Contains(b, a):
		return containsScale * float64(len(a)) / float64(len(b))
	case strings.Contains(a, b):
		return containsScale * float64(len(b)) / float64(len(a))
	default:
		return 0.0
	}
}

// tokenScore computes Jaccard similarity over whitespace-split token sets.
func tokenScore(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0.0
	}

	return tokenScale * float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(s) {
		set[token] = true
	}
	return set
}

// sequenceRatio returns an edit-distance ratio in [0, 1]: identical
// strings score 1.0, entirely different strings score 0.0.
func sequenceRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func max3(a, b, c float64) float64 {
	result := a
	if b > result {
		result = b
	}
	if c > result {
		result = c
	}
	return result
}
