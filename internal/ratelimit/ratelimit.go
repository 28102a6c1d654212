package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sportsdash/internal/config"
)

// Class names a budget in the static class table.
type Class string

const (
	// Default covers general mutations.
	Default Class = "default"
	// Strict covers destructive operations and the claim (guessing) surface.
	Strict Class = "strict"
	// Lenient covers reads and exports.
	Lenient Class = "lenient"
	// Upload covers operations that embed file uploads or bulk writes.
	Upload Class = "upload"
)

// unknownClient is the bucket used when the caller cannot be identified.
const unknownClient = "unknown"

// Budget is the fixed-window budget of a class.
type Budget struct {
	MaxRequests int
	Window      time.Duration
}

// Decision is the outcome of a check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store holds the per-identifier window counters.
type Store interface {
	// Hit counts one request against key and reports whether it fits the budget.
	Hit(ctx context.Context, key string, budget Budget, now time.Time) (Decision, error)
	// Sweep drops windows that expired before now and returns how many were removed.
	Sweep(now time.Time) int
}

// Limiter enforces fixed-window budgets per operation and client.
type Limiter struct {
	env     config.Environment
	classes map[Class]Budget
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. In development every check is allowed.
func New(env config.Environment, classes map[string]config.RateClassConfig, store Store, logger *slog.Logger, opts ...Option) (*Limiter, error) {
	table := make(map[Class]Budget, len(classes))
	for name, c := range classes {
		if c.MaxRequests <= 0 || c.Window <= 0 {
			return nil, fmt.Errorf("invalid budget for rate limit class %q", name)
		}
		table[Class(strings.ToLower(name))] = Budget{MaxRequests: c.MaxRequests, Window: c.Window}
	}
	for _, required := range []Class{Default, Strict, Lenient, Upload} {
		if _, ok := table[required]; !ok {
			return nil, fmt.Errorf("rate limit class %q is not configured", required)
		}
	}
	l := &Limiter{
		env:     env,
		classes: table,
		store:   store,
		logger:  logger.With("component", "ratelimit"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Identifier namespaces a client identifier by operation so independent
// operations never share a budget.
func Identifier(operation, client string) string {
	client = strings.TrimSpace(client)
	if client == "" {
		client = unknownClient
	}
	return operation + ":" + client
}

// Check consumes one request for client on operation under the given class.
// It never fails: an unknown class falls back to Default and store errors
// admit the request.
func (l *Limiter) Check(ctx context.Context, operation, client string, class Class) Decision {
	now := l.now()
	if l.env == config.Development {
		return Decision{Allowed: true, ResetAt: now}
	}

	budget, ok := l.classes[class]
	if !ok {
		budget = l.classes[Default]
	}
	key := Identifier(operation, client)

	d, err := l.store.Hit(ctx, key, budget, now)
	if err != nil {
		l.logger.Error("Rate limit store failed, admitting request", "identifier", key, "error", err)
		return Decision{Allowed: true, ResetAt: now.Add(budget.Window)}
	}
	return d
}

// Sweep removes expired windows from the store.
func (l *Limiter) Sweep() int {
	removed := l.store.Sweep(l.now())
	if removed > 0 {
		l.logger.Debug("Swept expired rate limit windows", "removed", removed)
	}
	return removed
}

// Budget returns the budget configured for class.
func (l *Limiter) Budget(class Class) (Budget, bool) {
	b, ok := l.classes[class]
	return b, ok
}
