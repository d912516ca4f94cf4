package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
)

// EmailCheck is a deliverability-verification adapter. It is verify-only:
// it can confirm or refute a known email but cannot discover one, so its
// Discover returns Unavailable rather than a false negative.
type EmailCheck struct {
	cfg    config.EmailCheckConfig
	caller *caller
}

// NewEmailCheck creates an EmailCheck adapter.
func NewEmailCheck(cfg config.EmailCheckConfig, timeout time.Duration) *EmailCheck {
	return &EmailCheck{
		cfg:    cfg,
		caller: newCaller("emailcheck", cfg.RatePerSec, cfg.Burst, timeout),
	}
}

func (e *EmailCheck) Name() string { return "emailcheck" }

func (e *EmailCheck) Supports(field model.ContactFieldKey) bool {
	return field == model.FieldEmail
}

func (e *EmailCheck) CostPerCall() float64 { return e.cfg.CostPerCall }

type emailCheckResponse struct {
	Result string `json:"result"` // deliverable | undeliverable | risky | unknown
	Score  int    `json:"score"`  // 0-100
}

func (e *EmailCheck) Verify(ctx context.Context, field model.ContactFieldKey, known string, _ PersonContext) Outcome {
	if field != model.FieldEmail || known == "" {
		return NotFound(e.Name(), 0)
	}

	q := url.Values{}
	q.Set("email", known)

	req, err := http.NewRequest(http.MethodGet, e.cfg.BaseURL+"/verify?"+q.Encode(), nil)
	if err != nil {
		return Unavailable(e.Name(), "bad_request")
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.Key)

	resp, err := e.caller.do(ctx, req)
	if err != nil {
		zap.L().Warn("emailcheck: call failed", zap.Error(err))
		return Unavailable(e.Name(), unavailableReason(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unavailable(e.Name(), "auth")
	case http.StatusPaymentRequired:
		return Unavailable(e.Name(), "quota")
	default:
		return Unavailable(e.Name(), "error")
	}

	var body emailCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Unavailable(e.Name(), "malformed_response")
	}

	switch body.Result {
	case "deliverable":
		// Some plans omit the score. Deliverable is still positive
		// evidence, so floor the confidence rather than report zero.
		score := body.Score
		if score <= 0 {
			score = 50
		}
		return Confirmed(e.Name(), known, score, e.cfg.CostPerCall)
	case "undeliverable":
		return NotFound(e.Name(), e.cfg.CostPerCall)
	default:
		// risky/unknown is not evidence either way.
		return Unavailable(e.Name(), body.Result)
	}
}

func (e *EmailCheck) Discover(_ context.Context, _ model.ContactFieldKey, _ PersonContext) Outcome {
	return Unavailable(e.Name(), "discover_unsupported")
}
