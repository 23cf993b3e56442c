// Package transcript fixes recognition errors in ASR output before the text
// reaches the guardrails and the language model. Speech recognizers garble
// domain vocabulary ("coober netties" for "kubernetes"); the corrector aligns
// such spans with a known term list using Double Metaphone phonetic codes and
// Jaro-Winkler similarity.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption is a functional option for a Matcher.
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score accepted for a
// phonetically aligned term. Default 0.70.
func WithPhoneticThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score accepted when no
// phonetic alignment exists. Default 0.85.
func WithFuzzyThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.fuzzyThreshold = t }
}

// Matcher scores a spoken span against the term list. Read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher creates a Matcher with default thresholds.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the term most similar to span. Terms sharing a Double
// Metaphone code with the span qualify at the phonetic threshold; terms with
// no phonetic overlap need the stricter fuzzy threshold. When matched is
// false, corrected equals span and confidence is 0.
func (m *Matcher) Match(span string, terms []string) (corrected string, confidence float64, matched bool) {
	spanLower := strings.ToLower(strings.TrimSpace(span))
	if spanLower == "" || len(terms) == 0 {
		return span, 0, false
	}
	spanTokens := strings.Fields(spanLower)
	spanCodes := metaphoneCodes(spanTokens)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		termTokens := strings.Fields(termLower)
		phonetic := codesOverlap(spanCodes, metaphoneCodes(termTokens))
		score := similarity(spanTokens, termTokens, spanLower, termLower, phonetic)

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestTerm, bestScore, bestPhonetic = term, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			bestTerm, bestScore = term, score
		}
	}

	if bestTerm == "" {
		return span, 0, false
	}
	return bestTerm, bestScore, true
}

// metaphoneCodes returns the union of Double Metaphone codes of the tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, 2*len(tokens))
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		if primary != "" {
			codes[primary] = struct{}{}
		}
		if secondary != "" {
			codes[secondary] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score across several views of the
// pair: the full strings, the space-stripped strings (catches word-split
// errors like "data base"), and — for phonetic candidates only — the best
// token pair. Token-pair scoring on non-phonetic candidates rewrites too
// eagerly: "data" alone scores 0.9 against "database".
func similarity(spanTokens, termTokens []string, spanFull, termFull string, phonetic bool) float64 {
	score := matchr.JaroWinkler(spanFull, termFull, false)

	if len(spanTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(spanTokens, ""), strings.Join(termTokens, ""), false)
		if joined > score {
			score = joined
		}
	}

	if phonetic {
		for _, st := range spanTokens {
			for _, tt := range termTokens {
				if s := matchr.JaroWinkler(st, tt, false); s > score {
					score = s
				}
			}
		}
	}
	return score
}
