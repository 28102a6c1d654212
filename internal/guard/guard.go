package guard

import (
	"context"
	"log/slog"

	"sportsdash/internal/metrics"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"
)

// Guard runs the admission checks every mutating operation starts with:
// the origin check first, then the rate limiter.
type Guard struct {
	origin  *security.OriginGuard
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// New creates a Guard.
func New(origin *security.OriginGuard, limiter *ratelimit.Limiter, logger *slog.Logger) *Guard {
	return &Guard{
		origin:  origin,
		limiter: limiter,
		logger:  logger.With("component", "guard"),
	}
}

// Admit returns nil when the request may proceed. Rejections are logged with
// only the identifier and class.
func (g *Guard) Admit(ctx context.Context, req security.Request, operation string, class ratelimit.Class) *result.Failure {
	if !g.origin.Verify(req) {
		g.logger.Warn("Request rejected", "identifier", ratelimit.Identifier(operation, req.ClientID), "class", class)
		metrics.RecordOriginRejection()
		return &result.Failure{Kind: result.KindOriginRejected}
	}

	d := g.limiter.Check(ctx, operation, req.ClientID, class)
	if !d.Allowed {
		g.logger.Warn("Rate limit exceeded", "identifier", ratelimit.Identifier(operation, req.ClientID), "class", class)
		metrics.RecordRateLimitRejection(string(class))
		return &result.Failure{Kind: result.KindRateLimited, ResetAt: d.ResetAt}
	}
	return nil
}
