// Package cost attributes the spend of every external call to its session
// and turn. Entries are exact decimals, never floats; cache hits record a
// zero cost with the avoided spend kept as metadata. The recorder keeps an
// in-memory per-session aggregate and appends each entry to the repository.
package cost

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaani-ai/vaani/pkg/types"
)

// moneyScale is the number of fractional digits stored. Rounding is
// half-even.
const moneyScale = 6

// Repository is the durable sink for cost entries. Append-only.
type Repository interface {
	AppendCostEntry(ctx context.Context, entry types.CostEntry) error
}

// Summary is the per-session cost rollup served by the costs API.
type Summary struct {
	SessionID string `json:"session_id"`

	TotalUSD   decimal.Decimal            `json:"total_usd"`
	ByService  map[string]decimal.Decimal `json:"by_service"`
	ByProvider map[string]decimal.Decimal `json:"by_provider"`

	// CacheSavingsUSD sums the counterfactual cost of every cache hit.
	CacheSavingsUSD decimal.Decimal `json:"cache_savings_usd"`

	Entries []types.CostEntry `json:"entries"`
}

type sessionCosts struct {
	mu      sync.Mutex
	summary Summary
}

// Option is a functional option for the Recorder.
type Option func(*Recorder)

// WithRepository sets the durable sink. Without one the recorder is
// memory-only.
func WithRepository(repo Repository) Option {
	return func(r *Recorder) { r.repo = repo }
}

// WithLogger sets the logger for repository write failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// Recorder accumulates cost entries. Writes for one session are serialized;
// different sessions record concurrently.
type Recorder struct {
	mu       sync.Mutex
	sessions map[string]*sessionCosts

	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		sessions: map[string]*sessionCosts{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record finalizes and stores one cost entry. The raw cost is rounded to six
// decimal places half-even. If entry.Cached is set the stored cost is zero
// and the would-have-been cost goes to Metadata["counterfactual_cost_usd"].
// Repository failures are logged and never fail the caller.
func (r *Recorder) Record(ctx context.Context, entry types.CostEntry, rawCost decimal.Decimal) types.CostEntry {
	rounded := rawCost.RoundBank(moneyScale)

	if entry.Cached {
		if entry.Metadata == nil {
			entry.Metadata = map[string]string{}
		}
		entry.Metadata["counterfactual_cost_usd"] = rounded.StringFixed(moneyScale)
		entry.Cost = decimal.Zero
	} else {
		entry.Cost = rounded
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	sc := r.session(entry.SessionID)
	sc.mu.Lock()
	sc.summary.TotalUSD = sc.summary.TotalUSD.Add(entry.Cost)
	sc.summary.ByService[string(entry.Service)] =
		sc.summary.ByService[string(entry.Service)].Add(entry.Cost)
	sc.summary.ByProvider[entry.Provider] =
		sc.summary.ByProvider[entry.Provider].Add(entry.Cost)
	if entry.Cached {
		sc.summary.CacheSavingsUSD = sc.summary.CacheSavingsUSD.Add(rounded)
	}
	sc.summary.Entries = append(sc.summary.Entries, entry)
	sc.mu.Unlock()

	if r.repo != nil {
		if err := r.repo.AppendCostEntry(ctx, entry); err != nil {
			r.logger.Warn("cost entry persistence failed",
				"session_id", entry.SessionID, "turn_id", entry.TurnID, "error", err)
		}
	}
	return entry
}

// Summarize returns a copy of the session's aggregate. Unknown sessions
// yield an empty summary.
func (r *Recorder) Summarize(sessionID string) Summary {
	sc := r.session(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	out := Summary{
		SessionID:       sessionID,
		TotalUSD:        sc.summary.TotalUSD,
		CacheSavingsUSD: sc.summary.CacheSavingsUSD,
		ByService:       map[string]decimal.Decimal{},
		ByProvider:      map[string]decimal.Decimal{},
		Entries:         append([]types.CostEntry(nil), sc.summary.Entries...),
	}
	for k, v := range sc.summary.ByService {
		out.ByService[k] = v
	}
	for k, v := range sc.summary.ByProvider {
		out.ByProvider[k] = v
	}
	return out
}

// TotalUSD returns the session's rolled-up spend.
func (r *Recorder) TotalUSD(sessionID string) decimal.Decimal {
	sc := r.session(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.summary.TotalUSD
}

func (r *Recorder) session(sessionID string) *sessionCosts {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.sessions[sessionID]
	if !ok {
		sc = &sessionCosts{summary: Summary{
			SessionID:  sessionID,
			ByService:  map[string]decimal.Decimal{},
			ByProvider: map[string]decimal.Decimal{},
		}}
		r.sessions[sessionID] = sc
	}
	return sc
}
