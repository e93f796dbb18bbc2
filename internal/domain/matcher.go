package domain

import (
	"strings"
	"unicode"
)

const (
	// MatchThreshold is the score a candidate must exceed to be accepted.
	MatchThreshold = 40.0

	yearMatchBonus      = 30.0
	yearMismatchPenalty = 50.0
)

// NormalizeTitle lower-cases s, maps "&" to "and", drops every character that
// is not a letter, digit or whitespace, and collapses whitespace runs.
// NormalizeTitle(NormalizeTitle(s)) == NormalizeTitle(s).
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}

// TitleSimilarity computes the Jaccard index of the normalized word sets of
// a and b, scaled to 0-100.
//
// Formula:
//
//	similarity = |words(a) ∩ words(b)| / |words(a) ∪ words(b)| * 100
//
// Two titles without any words score 0.
func TitleSimilarity(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)

	union := len(wa)
	intersection := 0
	for w := range wb {
		if _, ok := wa[w]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union) * 100
}

// ScoreCandidate scores c against the target title and year.
//
// Year adjustment (only when both years are known):
//   - exact match: +30
//   - any mismatch: -50, no partial credit for adjacent years
func ScoreCandidate(c SearchCandidate, targetTitle string, targetYear int) float64 {
	score := TitleSimilarity(c.Title, targetTitle)

	if targetYear > 0 && c.Year > 0 {
		if c.Year == targetYear {
			score += yearMatchBonus
		} else {
			score -= yearMismatchPenalty
		}
	}

	return score
}

// FindBestMatch returns the highest scoring candidate if its score exceeds
// MatchThreshold. On equal scores the first candidate seen wins, so callers
// must pass candidates in a stable order (queries in declared order, results
// in page order).
func FindBestMatch(candidates []SearchCandidate, targetTitle string, targetYear int) (*MatchCandidate, bool) {
	var best *MatchCandidate

	for _, c := range candidates {
		score := ScoreCandidate(c, targetTitle, targetYear)
		if best != nil && score <= best.Score {
			continue
		}
		best = &MatchCandidate{
			Title: c.Title,
			URL:   c.URL,
			Year:  c.Year,
			Score: score,
		}
	}

	if best == nil || best.Score <= MatchThreshold {
		return nil, false
	}

	return best, true
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(NormalizeTitle(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	return set
}
