package claim

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sportsdash/internal/config"
	"sportsdash/internal/db"
	"sportsdash/internal/guard"
	"sportsdash/internal/logger"
	"sportsdash/internal/model"
	"sportsdash/internal/ratelimit"
	"sportsdash/internal/result"
	"sportsdash/internal/security"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	events []string
}

func (r *recordingInvalidator) Invalidate(eventID string) {
	r.events = append(r.events, eventID)
}

func setup(t *testing.T, strict int) (*Service, db.Service, *recordingInvalidator) {
	t.Helper()
	dbService, err := db.NewService(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)

	classes := config.DefaultRateClasses()
	classes["strict"] = config.RateClassConfig{MaxRequests: strict, Window: time.Minute}
	limiter, err := ratelimit.New(config.Production, classes, ratelimit.NewMemoryStore(), logger.Discard())
	require.NoError(t, err)
	g := guard.New(security.NewOriginGuard(config.Production), limiter, logger.Discard())

	inv := &recordingInvalidator{}
	return NewService(dbService, g, inv, logger.Discard()), dbService, inv
}

var participantReq = security.Request{Host: "app.example", Origin: "https://app.example", ClientID: "192.0.2.10"}

func TestClaim(t *testing.T) {
	s, dbService, inv := setup(t, 10)
	ctx := context.Background()
	require.NoError(t, dbService.CreateAccessKeys(ctx, []model.AccessKey{{
		ID: uuid.NewString(), Code: "EV26-K7X9QM-SWI", EventID: "EVT-001",
		SportID: "swimming", SportName: "Swimming", Status: model.KeyStatusAvailable,
	}}))

	r := s.Claim(ctx, participantReq, " EV26-K7X9QM-SWI ", "participant-1")
	require.True(t, r.Success, r.Error)
	assert.Equal(t, model.KeyStatusClaimed, r.Data.Status)
	assert.Equal(t, []string{"EVT-001"}, inv.events)

	again := s.Claim(ctx, participantReq, "EV26-K7X9QM-SWI", "participant-2")
	assert.Equal(t, result.KindNotFound, again.Kind)

	unknown := s.Claim(ctx, participantReq, "EV26-AAAAAA-SWI", "participant-2")
	assert.Equal(t, again.Error, unknown.Error, "used and unknown codes must be indistinguishable")

	malformed := s.Claim(ctx, participantReq, "../../etc", "participant-2")
	assert.Equal(t, result.KindNotFound, malformed.Kind)

	assert.Equal(t, result.KindInvalidInput, s.Claim(ctx, participantReq, "EV26-K7X9QM-SWI", "").Kind)
}

func TestClaimRevokedKey(t *testing.T) {
	s, dbService, _ := setup(t, 10)
	ctx := context.Background()
	require.NoError(t, dbService.CreateAccessKeys(ctx, []model.AccessKey{{
		ID: "k1", Code: "EV26-REVKED-SWI", EventID: "EVT-001",
		SportID: "swimming", SportName: "Swimming", Status: model.KeyStatusRevoked,
	}}))

	r := s.Claim(ctx, participantReq, "EV26-REVKED-SWI", "participant-1")
	assert.Equal(t, result.KindNotFound, r.Kind)
}

func TestClaimRateLimited(t *testing.T) {
	s, _, _ := setup(t, 2)
	ctx := context.Background()

	s.Claim(ctx, participantReq, "EV26-AAAAAA-SWI", "p")
	s.Claim(ctx, participantReq, "EV26-BBBBBB-SWI", "p")
	r := s.Claim(ctx, participantReq, "EV26-CCCCCC-SWI", "p")

	assert.Equal(t, result.KindRateLimited, r.Kind)
	assert.NotNil(t, r.ResetAt)
}
