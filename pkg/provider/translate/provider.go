// Package translate defines the Provider interface for text translation
// backends, plus the formality mapping and domain-term preservation helpers
// shared by every adapter.
package translate

import "context"

// Mode is the speech register requested from the translator.
type Mode string

const (
	ModeFormal         Mode = "formal"
	ModeConversational Mode = "modern-colloquial"
	ModeInformal       Mode = "classic-colloquial"
)

// Domain names a preserved terminology domain.
type Domain string

const (
	DomainTech     Domain = "tech"
	DomainBusiness Domain = "business"
	DomainMedical  Domain = "medical"
)

// Config carries the client-tunable translation behaviour.
type Config struct {
	// FormalityLevel in [0,100] maps to three bands: <34 formal, 34–66
	// conversational, >66 informal.
	FormalityLevel int

	// CodeMixing allows the translator to mix English into the target
	// language, weighted by EnglishRatio in [0,100].
	CodeMixing   bool
	EnglishRatio int

	// PreserveDomains lists terminology domains whose terms must survive
	// translation byte-for-byte.
	PreserveDomains []Domain
}

// FormalityMode maps a formality level to its band. Levels below 34 are
// formal, 34 through 66 conversational, above 66 informal.
func FormalityMode(level int) Mode {
	switch {
	case level < 34:
		return ModeFormal
	case level <= 66:
		return ModeConversational
	default:
		return ModeInformal
	}
}

// Request carries one text to translate.
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Config     Config

	SessionID string
	TurnID    string
}

// Result is the translated text plus billing information.
type Result struct {
	Text string

	// CharCount is the billed character count of the input.
	CharCount int
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate converts req.Text from SourceLang to TargetLang. Domain-term
	// placeholder handling is the caller's (or wrapper's) responsibility; the
	// provider sees placeholder tokens as opaque text.
	Translate(ctx context.Context, req Request) (*Result, error)

	// Name returns the provider identifier used in cost entries and metrics.
	Name() string
}
