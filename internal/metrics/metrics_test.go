package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sportsdash/internal/result"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("revokeKey", "ok"))
	RecordOperation("revokeKey", "ok")
	RecordOperation("revokeKey", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(operationsTotal.WithLabelValues("revokeKey", "ok")))
}

func TestRecordKeysGenerated(t *testing.T) {
	before := testutil.ToFloat64(keysGeneratedTotal)
	RecordKeysGenerated(5)
	assert.Equal(t, before+5, testutil.ToFloat64(keysGeneratedTotal))
}

func TestRejections(t *testing.T) {
	beforeRate := testutil.ToFloat64(rateLimitRejectionsTotal.WithLabelValues("strict"))
	beforeOrigin := testutil.ToFloat64(originRejectionsTotal)
	beforeCollisions := testutil.ToFloat64(codeCollisionsTotal)

	RecordRateLimitRejection("strict")
	RecordOriginRejection()
	RecordCodeCollision()

	assert.Equal(t, beforeRate+1, testutil.ToFloat64(rateLimitRejectionsTotal.WithLabelValues("strict")))
	assert.Equal(t, beforeOrigin+1, testutil.ToFloat64(originRejectionsTotal))
	assert.Equal(t, beforeCollisions+1, testutil.ToFloat64(codeCollisionsTotal))
}

func TestHandler(t *testing.T) {
	RecordKeysGenerated(1)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "sportsdash_access_keys_generated_total"))
}

func TestTrack(t *testing.T) {
	okBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("claimKey", "ok"))
	notFoundBefore := testutil.ToFloat64(operationsTotal.WithLabelValues("claimKey", "not_found"))

	r := Track("claimKey", result.Ok("key"))
	assert.True(t, r.Success)
	assert.Equal(t, "key", r.Data)

	failed := Track("claimKey", result.Err[string](result.KindNotFound, "nope"))
	assert.Equal(t, result.KindNotFound, failed.Kind)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(operationsTotal.WithLabelValues("claimKey", "ok")))
	assert.Equal(t, notFoundBefore+1, testutil.ToFloat64(operationsTotal.WithLabelValues("claimKey", "not_found")))
}
