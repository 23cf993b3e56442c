package translate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Domain glossaries. Terms are matched case-insensitively on word boundaries;
// longer terms are extracted first so "machine learning" wins over "machine".
var domainTerms = map[Domain][]string{
	DomainTech: {
		"API", "machine learning", "cloud", "server", "database", "kubernetes",
		"deployment", "frontend", "backend", "webhook", "latency", "endpoint",
	},
	DomainBusiness: {
		"invoice", "purchase order", "quarterly report", "stakeholder", "ROI",
		"KPI", "revenue", "procurement", "compliance", "onboarding",
	},
	DomainMedical: {
		"prescription", "diagnosis", "blood pressure", "insulin", "dosage",
		"hypertension", "cardiology", "pathology", "radiology",
	},
}

// Glossary returns the combined term list of the requested domains. Unknown
// domains contribute nothing.
func Glossary(domains []Domain) []string {
	var terms []string
	for _, d := range domains {
		terms = append(terms, domainTerms[d]...)
	}
	return terms
}

// placeholderFmt is the stable opaque token substituted for a preserved term.
// Translators pass unknown uppercase tokens through untouched.
const placeholderFmt = "__VAANI_TERM_%d__"

// Extraction is the reversible result of replacing preserved domain terms
// with placeholders. Restore applies the inverse mapping; the round trip is
// exact-string idempotent.
type Extraction struct {
	// Text is the input with every matched term replaced by a placeholder.
	Text string

	// terms maps placeholder → original term, in extraction order.
	terms map[string]string
}

// ExtractTerms replaces every glossary term of the requested domains found in
// text with a stable opaque placeholder. Matching is case-insensitive on word
// boundaries; the original casing of each occurrence is preserved for
// restoration.
func ExtractTerms(text string, domains []Domain) Extraction {
	ex := Extraction{Text: text, terms: map[string]string{}}
	if text == "" || len(domains) == 0 {
		return ex
	}

	var glossary []string
	for _, d := range domains {
		glossary = append(glossary, domainTerms[d]...)
	}
	// Longest-first so multi-word terms are captured whole.
	sort.Slice(glossary, func(i, j int) bool { return len(glossary[i]) > len(glossary[j]) })

	n := 0
	for _, term := range glossary {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		ex.Text = re.ReplaceAllStringFunc(ex.Text, func(match string) string {
			ph := fmt.Sprintf(placeholderFmt, n)
			n++
			ex.terms[ph] = match
			return ph
		})
	}
	return ex
}

// Restore replaces every placeholder in translated with its original term.
// Restoring text that contains no placeholders returns it unchanged, so the
// operation is idempotent.
func (ex Extraction) Restore(translated string) string {
	out := translated
	for ph, term := range ex.terms {
		out = strings.ReplaceAll(out, ph, term)
	}
	return out
}

// HasTerms reports whether the extraction replaced anything.
func (ex Extraction) HasTerms() bool { return len(ex.terms) > 0 }
