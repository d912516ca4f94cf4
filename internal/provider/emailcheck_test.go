package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
)

func newTestEmailCheck(t *testing.T, handler http.HandlerFunc) *EmailCheck {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEmailCheck(config.EmailCheckConfig{
		Key:         "test-key",
		BaseURL:     srv.URL,
		RatePerSec:  100,
		Burst:       100,
		CostPerCall: 0.004,
	}, 2*time.Second)
}

func emailCheckResult(result string, score int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(emailCheckResponse{Result: result, Score: score})
	}
}

func TestEmailCheck_Deliverable(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("deliverable", 92))

	out := e.Verify(context.Background(), model.FieldEmail, "dana@acme.com", PersonContext{})
	assert.Equal(t, model.OutcomeConfirmed, out.Status)
	assert.Equal(t, "dana@acme.com", out.Value)
	assert.Equal(t, 92, out.Confidence)
	assert.Equal(t, 0.004, out.CostUSD)
}

func TestEmailCheck_DeliverableWithoutScore(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("deliverable", 0))

	// Deliverable with no score is still positive evidence; a confirmed
	// value must carry non-zero confidence.
	out := e.Verify(context.Background(), model.FieldEmail, "dana@acme.com", PersonContext{})
	assert.Equal(t, model.OutcomeConfirmed, out.Status)
	assert.Equal(t, 50, out.Confidence)
}

func TestEmailCheck_Undeliverable(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("undeliverable", 3))

	out := e.Verify(context.Background(), model.FieldEmail, "gone@acme.com", PersonContext{})
	assert.Equal(t, model.OutcomeNotFound, out.Status)
	assert.Equal(t, 0.004, out.CostUSD)
}

func TestEmailCheck_RiskyIsNotEvidence(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("risky", 55))

	out := e.Verify(context.Background(), model.FieldEmail, "dana@acme.com", PersonContext{})
	assert.Equal(t, model.OutcomeUnavailable, out.Status)
	assert.Equal(t, "risky", out.Reason)
}

func TestEmailCheck_QuotaExhausted(t *testing.T) {
	e := newTestEmailCheck(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})

	out := e.Verify(context.Background(), model.FieldEmail, "dana@acme.com", PersonContext{})
	assert.Equal(t, model.OutcomeUnavailable, out.Status)
	assert.Equal(t, "quota", out.Reason)
}

func TestEmailCheck_SupportsOnlyEmail(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("deliverable", 90))

	assert.True(t, e.Supports(model.FieldEmail))
	assert.False(t, e.Supports(model.FieldPhone))

	out := e.Verify(context.Background(), model.FieldPhone, "+14155552671", PersonContext{})
	assert.Equal(t, model.OutcomeNotFound, out.Status)
	assert.Zero(t, out.CostUSD)
}

func TestEmailCheck_DiscoverUnsupported(t *testing.T) {
	e := newTestEmailCheck(t, emailCheckResult("deliverable", 90))

	out := e.Discover(context.Background(), model.FieldEmail, PersonContext{})
	assert.Equal(t, model.OutcomeUnavailable, out.Status)
	assert.Equal(t, "discover_unsupported", out.Reason)
}
