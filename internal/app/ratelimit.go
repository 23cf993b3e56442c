package app

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Budget is one endpoint class's request allowance.
type Budget struct {
	PerMinute int
	PerHour   int
}

// Budgets holds the per-class allowances. A zero budget disables limiting
// for that class.
type Budgets struct {
	Regular    Budget
	WebSocket  Budget
	Privileged Budget
}

// DefaultBudgets are the allowances applied when configuration does not
// override them.
func DefaultBudgets() Budgets {
	return Budgets{
		Regular:    Budget{PerMinute: 120, PerHour: 2000},
		WebSocket:  Budget{PerMinute: 30, PerHour: 300},
		Privileged: Budget{PerMinute: 20, PerHour: 200},
	}
}

type window struct {
	stamps []time.Time
}

// prune drops stamps older than horizon and returns the survivors.
func (w *window) prune(now time.Time, horizon time.Duration) {
	cut := now.Add(-horizon)
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cut) {
		i++
	}
	w.stamps = w.stamps[i:]
}

func (w *window) countSince(now time.Time, horizon time.Duration) int {
	cut := now.Add(-horizon)
	n := 0
	for i := len(w.stamps) - 1; i >= 0; i-- {
		if w.stamps[i].Before(cut) {
			break
		}
		n++
	}
	return n
}

// Limiter enforces sliding-window request limits per caller identifier.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	budgets Budgets
	now     func() time.Time
}

// NewLimiter creates a Limiter with the given per-class budgets.
func NewLimiter(budgets Budgets) *Limiter {
	return &Limiter{
		windows: map[string]*window{},
		budgets: budgets,
		now:     time.Now,
	}
}

// Class names an endpoint class for budget selection.
type Class int

const (
	ClassRegular Class = iota
	ClassWebSocket
	ClassPrivileged
)

func (l *Limiter) budget(c Class) Budget {
	switch c {
	case ClassWebSocket:
		return l.budgets.WebSocket
	case ClassPrivileged:
		return l.budgets.Privileged
	default:
		return l.budgets.Regular
	}
}

// Allow records one request for id and reports whether it fits the budget.
// When it does not, retryAfter is how long the caller should wait.
func (l *Limiter) Allow(id string, class Class) (ok bool, retryAfter time.Duration) {
	b := l.budget(class)
	if b.PerMinute <= 0 && b.PerHour <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[id]
	if w == nil {
		w = &window{}
		l.windows[id] = w
	}
	w.prune(now, time.Hour)

	if b.PerHour > 0 && len(w.stamps) >= b.PerHour {
		return false, w.stamps[0].Add(time.Hour).Sub(now)
	}
	if b.PerMinute > 0 {
		if n := w.countSince(now, time.Minute); n >= b.PerMinute {
			oldest := w.stamps[len(w.stamps)-n]
			return false, oldest.Add(time.Minute).Sub(now)
		}
	}
	w.stamps = append(w.stamps, now)
	return true, 0
}

// Middleware applies the limiter per caller identity for one endpoint class.
// The identity is the API key when present, else the remote address.
func (l *Limiter) Middleware(class Class, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := l.Allow(callerIdentity(r), class)
		if !ok {
			secs := int(retryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
