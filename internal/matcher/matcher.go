// Package matcher finds the candidate string a free-text answer refers to.
//
// Matching runs on textnorm.Fold keys. A literal or folded exact match always
// wins with confidence 1.0; otherwise the candidate with the best Levenshtein
// similarity is returned if it clears the threshold. A threshold of 0 accepts
// only exact matches, 1 accepts anything.
package matcher

import (
	"strings"

	"github.com/hbollon/go-edlib"
	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/textnorm"
)

// DefaultThreshold is the tolerance used for typed track-name answers.
const DefaultThreshold = 0.3

// Result is the best candidate found for a query.
type Result struct {
	Match      string
	Confidence float64
	Index      int
}

// FindBestMatch returns the candidate closest to query, or false when none
// clears the threshold.
func FindBestMatch(query string, candidates []string, threshold float64) (Result, bool) {
	if len(candidates) == 0 {
		return Result{}, false
	}
	threshold = clamp(threshold)

	for i, c := range candidates {
		if c == query {
			return Result{Match: c, Confidence: 1, Index: i}, true
		}
	}

	q := textnorm.Fold(query)
	if q == "" {
		return Result{}, false
	}
	folded := make([]string, len(candidates))
	for i, c := range candidates {
		folded[i] = textnorm.Fold(c)
		if folded[i] == q {
			return Result{Match: c, Confidence: 1, Index: i}, true
		}
	}

	best := Result{Index: -1}
	for i, c := range folded {
		if c == "" {
			continue
		}
		sim, err := edlib.StringsSimilarity(q, c, edlib.Levenshtein)
		if err != nil {
			continue
		}
		score := float64(sim)
		if score > 0.7 {
			log.WithFields(log.Fields{
				"query":     q,
				"candidate": c,
				"score":     score,
			}).Debug("fuzzy match candidate")
		}
		if score > best.Confidence || best.Index < 0 {
			best = Result{Match: candidates[i], Confidence: score, Index: i}
		}
	}
	if best.Index < 0 || best.Confidence < 1-threshold {
		return Result{}, false
	}
	return best, true
}

// FindBestMatchAny evaluates each alternative transcription on its own and
// returns the most confident result. Ties keep the earlier alternative.
func FindBestMatchAny(queries []string, candidates []string, threshold float64) (Result, bool) {
	var (
		best  Result
		found bool
	)
	for _, q := range queries {
		res, ok := FindBestMatch(q, candidates, threshold)
		if !ok {
			continue
		}
		if !found || res.Confidence > best.Confidence {
			best, found = res, true
		}
	}
	return best, found
}

// IsMatch reports whether query matches target within threshold.
func IsMatch(query, target string, threshold float64) bool {
	res, ok := FindBestMatch(query, []string{target}, threshold)
	return ok && res.Confidence >= 1-clamp(threshold)
}

// MatchesAny reports whether query matches any of targets within threshold.
func MatchesAny(query string, targets []string, threshold float64) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	for _, t := range targets {
		if IsMatch(query, t, threshold) {
			return true
		}
	}
	return false
}

func clamp(threshold float64) float64 {
	switch {
	case threshold < 0:
		return 0
	case threshold > 1:
		return 1
	}
	return threshold
}
