package guardrail

import (
	"regexp"

	"github.com/vaani-ai/vaani/pkg/types"
)

// Category names a class of blocked input.
type Category string

const (
	CategoryMedical        Category = "medical_advice"
	CategoryLegal          Category = "legal_advice"
	CategoryFinancial      Category = "financial_advice"
	CategoryHarmful        Category = "harmful_content"
	CategoryPIIElicitation Category = "pii_elicitation"
	CategoryInjection      Category = "prompt_injection"
)

// keywordRule matches input on a compiled pattern and grades the violation.
type keywordRule struct {
	id       string
	category Category
	severity types.Severity
	pattern  *regexp.Regexp
}

// inputRules are the layer-1 keyword and injection rules. Patterns are
// case-insensitive and anchored on word boundaries where that matters.
var inputRules = []keywordRule{
	{
		id:       "medical-treatment",
		category: CategoryMedical,
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)\b(diagnose|prescri(be|ption)|dosage|what (medicine|medication|drug) should I)\b`),
	},
	{
		id:       "legal-counsel",
		category: CategoryLegal,
		severity: types.SeverityMedium,
		pattern:  regexp.MustCompile(`(?i)\b(should I sue|legal advice|is it legal to|can I get arrested for)\b`),
	},
	{
		id:       "financial-advice",
		category: CategoryFinancial,
		severity: types.SeverityMedium,
		pattern:  regexp.MustCompile(`(?i)\b(which (stock|share|crypto) should I buy|guaranteed returns?|double (my|your) money)\b`),
	},
	{
		id:       "harmful-weapons",
		category: CategoryHarmful,
		severity: types.SeverityCritical,
		pattern:  regexp.MustCompile(`(?i)\b(how to (make|build) (a |an )?(weapon|bomb|explosive|gun)|hurt (someone|myself))\b`),
	},
	{
		id:       "pii-elicitation",
		category: CategoryPIIElicitation,
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)\b(tell me (your|the) (password|api key|secret)|share (your|the) credentials)\b`),
	},
	{
		id:       "injection-ignore-instructions",
		category: CategoryInjection,
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)(ignore (all |your |the )?(previous |prior |above )?instructions|disregard (your|the) system prompt)`),
	},
	{
		id:       "injection-role-override",
		category: CategoryInjection,
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)(you are now|pretend (to be|you are)|act as if you (are|have) no (rules|restrictions))`),
	},
}

// safeResponses maps each category to the canned reply served in place of a
// blocked turn.
var safeResponses = map[Category]string{
	CategoryMedical:        "I can't offer medical advice. For health concerns, please consult a qualified doctor.",
	CategoryLegal:          "I can't offer legal advice. For legal matters, please consult a qualified lawyer.",
	CategoryFinancial:      "I can't offer financial or investment advice. Please consult a certified financial advisor.",
	CategoryHarmful:        "I can't help with that request.",
	CategoryPIIElicitation: "I can't share credentials or other sensitive information.",
	CategoryInjection:      "I can't follow that instruction, but I'm happy to help with something else.",
}

// genericSafeResponse is used when the category has no dedicated reply or a
// layer-3 rule trips.
const genericSafeResponse = "I'm sorry, I can't help with that. Is there something else I can do for you?"

// outputRule matches generated text that must not reach the caller.
type outputRule struct {
	id       string
	severity types.Severity
	pattern  *regexp.Regexp
}

// outputRules are the layer-3 leakage rules: payment card numbers, identity
// numbers, contact details, and prohibited phrasing.
var outputRules = []outputRule{
	{
		id:       "leak-card-number",
		severity: types.SeverityCritical,
		pattern:  regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
	},
	{
		id:       "leak-identity-number",
		severity: types.SeverityCritical,
		// Aadhaar (4-4-4) and PAN (AAAAA9999A) shapes.
		pattern: regexp.MustCompile(`\b(\d{4}[ -]\d{4}[ -]\d{4}|[A-Z]{5}\d{4}[A-Z])\b`),
	},
	{
		id:       "leak-email",
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		id:       "leak-phone",
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`\b(\+\d{1,3}[ -]?)?\d{10}\b`),
	},
	{
		id:       "prohibited-content",
		severity: types.SeverityHigh,
		pattern:  regexp.MustCompile(`(?i)\b(here is how to (make|build) (a |an )?(weapon|bomb|explosive))\b`),
	},
}
