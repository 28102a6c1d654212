// Package claim is the participant-facing flow that turns an AVAILABLE key
// into a CLAIMED one.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sportsdash/internal/db"
	"sportsdash/internal/guard"
	"sportsdash/internal/keycode"
	"sportsdash/internal/metrics"
	"sportsdash/internal/model"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"
)

const (
	msgClaimFailed = "Failed to claim key. Please try again."
	// Unknown, revoked and already claimed codes all get the same answer.
	msgInvalidCode = "This access key is invalid or no longer available."
)

// Invalidator drops cached key lists of an event.
type Invalidator interface {
	Invalidate(eventID string)
}

// Service claims keys on behalf of participants.
type Service struct {
	db          db.Service
	guard       *guard.Guard
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a claim Service.
func NewService(dbService db.Service, g *guard.Guard, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{
		db:          dbService,
		guard:       g,
		invalidator: invalidator,
		logger:      logger.With("component", "claim"),
		now:         time.Now,
	}
}

// Claim binds the key with the given code to a participant. It runs under
// the strict class since it is the surface a code guesser would hit.
func (s *Service) Claim(ctx context.Context, req security.Request, code, participantID string) result.Result[model.AccessKey] {
	const op = "claimKey"
	if f := s.guard.Admit(ctx, req, op, ratelimit.Strict); f != nil {
		return metrics.Track(op, result.From[model.AccessKey](f, msgClaimFailed))
	}

	code = strings.TrimSpace(code)
	participantID = security.SanitizeText(participantID, 64)
	if participantID == "" {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindInvalidInput, "Participant ID is required."))
	}
	if !keycode.Pattern.MatchString(code) {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindNotFound, msgInvalidCode))
	}

	key, err := s.db.ClaimAccessKey(ctx, code, participantID, s.now())
	if errors.Is(err, db.ErrNotFound) {
		return metrics.Track(op, result.Err[model.AccessKey](result.KindNotFound, msgInvalidCode))
	}
	if err != nil {
		s.logger.Error("Failed to claim key", "participant_id", participantID, "error", err)
		return metrics.Track(op, result.Err[model.AccessKey](result.KindStoreFailure, msgClaimFailed))
	}

	s.invalidator.Invalidate(key.EventID)
	s.logger.Info("Access key claimed", "event_id", key.EventID, "key_id", key.ID)
	return metrics.Track(op, result.Ok(*key))
}
