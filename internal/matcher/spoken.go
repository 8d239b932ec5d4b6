package matcher

import (
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/hbollon/go-edlib"

	"music-trivia-service/internal/textnorm"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFallbackThreshold = 0.85
)

// SpokenOption configures a SpokenResolver.
type SpokenOption func(*SpokenResolver)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a candidate
// that shares a Double Metaphone code with the transcript. Default: 0.70.
func WithPhoneticThreshold(threshold float64) SpokenOption {
	return func(r *SpokenResolver) {
		r.phoneticThreshold = threshold
	}
}

// WithFallbackThreshold sets the minimum Jaro-Winkler score for a candidate
// with no phonetic overlap. Default: 0.85.
func WithFallbackThreshold(threshold float64) SpokenOption {
	return func(r *SpokenResolver) {
		r.fallbackThreshold = threshold
	}
}

// SpokenResolver maps speech-recognition hypotheses onto one of a fixed set of
// options. Speech engines often hear "Beyonsay" for "Beyoncé", which edit
// distance punishes but phonetic codes do not. It is read-only after
// construction and safe for concurrent use.
type SpokenResolver struct {
	phoneticThreshold float64
	fallbackThreshold float64
}

// NewSpokenResolver returns a resolver with the supplied options applied.
func NewSpokenResolver(opts ...SpokenOption) *SpokenResolver {
	r := &SpokenResolver{
		phoneticThreshold: defaultPhoneticThreshold,
		fallbackThreshold: defaultFallbackThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the option best matching any of the alternatives.
// Phonetic candidates beat non-phonetic ones regardless of score.
func (r *SpokenResolver) Resolve(alternatives []string, options []string) (Result, bool) {
	type candidate struct {
		Result
		phonetic bool
	}
	best := candidate{Result: Result{Index: -1}}

	for _, alt := range alternatives {
		altKey := textnorm.Fold(alt)
		if altKey == "" {
			continue
		}
		altCodes := codesFor(strings.Fields(altKey))
		for i, opt := range options {
			optKey := textnorm.Fold(opt)
			if optKey == "" {
				continue
			}
			score := float64(edlib.JaroWinklerSimilarity(altKey, optKey))
			phonetic := overlaps(altCodes, codesFor(strings.Fields(optKey)))
			switch {
			case phonetic && score >= r.phoneticThreshold:
				if !best.phonetic || score > best.Confidence {
					best = candidate{Result: Result{Match: opt, Confidence: score, Index: i}, phonetic: true}
				}
			case !phonetic && !best.phonetic && score >= r.fallbackThreshold:
				if score > best.Confidence {
					best = candidate{Result: Result{Match: opt, Confidence: score, Index: i}}
				}
			}
		}
	}
	if best.Index < 0 {
		return Result{}, false
	}
	return best.Result, true
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
