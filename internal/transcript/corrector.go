package transcript

import "strings"

// Correction records one replaced span.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Corrector rewrites transcripts against a fixed term list. Construction
// computes the maximum term width once; correction is then a single pass
// over the token stream.
type Corrector struct {
	matcher  *Matcher
	terms    []string
	maxWords int

	// exact holds lowercased terms for the skip check: a span that already
	// is a known term is never rewritten.
	exact map[string]struct{}
}

// NewCorrector creates a Corrector over terms. A nil or empty term list
// yields a pass-through corrector.
func NewCorrector(terms []string, opts ...MatcherOption) *Corrector {
	c := &Corrector{
		matcher: NewMatcher(opts...),
		terms:   terms,
		exact:   make(map[string]struct{}, len(terms)),
	}
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > c.maxWords {
			c.maxWords = n
		}
		c.exact[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return c
}

// WithTerms returns a Corrector whose term list is the union of c's and
// extra, sharing c's matcher. When extra adds nothing new, c itself is
// returned.
func (c *Corrector) WithTerms(extra []string) *Corrector {
	var fresh []string
	for _, t := range extra {
		if _, known := c.exact[strings.ToLower(strings.TrimSpace(t))]; !known {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		return c
	}

	merged := &Corrector{
		matcher:  c.matcher,
		terms:    append(append([]string(nil), c.terms...), fresh...),
		maxWords: c.maxWords,
		exact:    make(map[string]struct{}, len(c.exact)+len(fresh)),
	}
	for k := range c.exact {
		merged.exact[k] = struct{}{}
	}
	for _, t := range fresh {
		if n := len(strings.Fields(t)); n > merged.maxWords {
			merged.maxWords = n
		}
		merged.exact[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return merged
}

// Correct aligns the transcript's token n-grams with the term list, longest
// window first, and returns the rewritten text plus the applied corrections.
// Unmatched tokens pass through byte-for-byte.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if c.maxWords == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var out []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		width := c.maxWords
		if i+width > len(tokens) {
			width = len(tokens) - i
		}

		matched := false
		for n := width; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			if _, known := c.exact[strings.ToLower(window)]; known {
				out = append(out, tokens[i:i+n]...)
				i += n
				matched = true
				break
			}
			term, conf, ok := c.matcher.Match(window, c.terms)
			if !ok || strings.EqualFold(term, window) {
				continue
			}
			out = append(out, strings.Fields(term)...)
			corrections = append(corrections, Correction{
				Original:   window,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " "), corrections
}
