package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
)

// PDL is a person-enrichment adapter backed by the People Data Labs API.
// It can verify and discover both email and phone, and doubles as the
// profile source for refresh sweeps.
type PDL struct {
	cfg    config.PDLConfig
	caller *caller
	region string
}

// NewPDL creates a PDL adapter.
func NewPDL(cfg config.PDLConfig, timeout time.Duration, region string) *PDL {
	if region == "" {
		region = "US"
	}
	return &PDL{
		cfg:    cfg,
		caller: newCaller("pdl", cfg.RatePerSec, cfg.Burst, timeout),
		region: region,
	}
}

func (p *PDL) Name() string { return "pdl" }

func (p *PDL) Supports(field model.ContactFieldKey) bool {
	return field == model.FieldEmail || field == model.FieldPhone
}

func (p *PDL) CostPerCall() float64 { return p.cfg.CostPerCall }

// pdlResponse is the subset of the enrich payload we consume.
type pdlResponse struct {
	Status     int `json:"status"`
	Likelihood int `json:"likelihood"`
	Data       struct {
		WorkEmail      string `json:"work_email"`
		MobilePhone    string `json:"mobile_phone"`
		JobCompanyName string `json:"job_company_name"`
		JobTitle       string `json:"job_title"`
		JobActive      bool   `json:"job_active"`
		Connections    int    `json:"connections"`
	} `json:"data"`
}

func (p *PDL) Verify(ctx context.Context, field model.ContactFieldKey, known string, pc PersonContext) Outcome {
	if known == "" {
		return NotFound(p.Name(), 0)
	}
	resp, out, ok := p.enrich(ctx, pc)
	if !ok {
		return out
	}

	got := p.fieldValue(resp, field)
	if got == "" {
		return NotFound(p.Name(), p.cfg.CostPerCall)
	}
	if !valuesMatch(field, known, got, p.region) {
		// Provider holds a different value — the known one is stale.
		return NotFound(p.Name(), p.cfg.CostPerCall)
	}
	return Confirmed(p.Name(), p.canonical(field, got), confidenceFromLikelihood(resp.Likelihood), p.cfg.CostPerCall)
}

func (p *PDL) Discover(ctx context.Context, field model.ContactFieldKey, pc PersonContext) Outcome {
	resp, out, ok := p.enrich(ctx, pc)
	if !ok {
		return out
	}

	got := p.fieldValue(resp, field)
	if got == "" {
		return NotFound(p.Name(), p.cfg.CostPerCall)
	}
	return Confirmed(p.Name(), p.canonical(field, got), confidenceFromLikelihood(resp.Likelihood), p.cfg.CostPerCall)
}

// FetchProfile implements ProfileSource for scheduled refreshes.
func (p *PDL) FetchProfile(ctx context.Context, pc PersonContext) (*model.Snapshot, error) {
	resp, out, ok := p.enrich(ctx, pc)
	if !ok {
		if out.Status == model.OutcomeNotFound {
			return nil, eris.Errorf("pdl: no profile for %s", pc.ProfileID)
		}
		return nil, eris.Errorf("pdl: unavailable (%s)", out.Reason)
	}
	return &model.Snapshot{
		Employer:    resp.Data.JobCompanyName,
		Title:       resp.Data.JobTitle,
		Active:      resp.Data.JobActive,
		Email:       strings.ToLower(resp.Data.WorkEmail),
		Connections: resp.Data.Connections,
	}, nil
}

// enrich performs the API call shared by verify, discover and profile fetch.
// The third return is false when the caller should short-circuit with the
// returned outcome.
func (p *PDL) enrich(ctx context.Context, pc PersonContext) (*pdlResponse, Outcome, bool) {
	q := url.Values{}
	if pc.ProfileID != "" {
		q.Set("profile", pc.ProfileID)
	}
	if pc.Name != "" {
		q.Set("name", pc.Name)
	}
	if pc.CompanyName != "" {
		q.Set("company", pc.CompanyName)
	}

	req, err := http.NewRequest(http.MethodGet, p.cfg.BaseURL+"/person/enrich?"+q.Encode(), nil)
	if err != nil {
		return nil, Unavailable(p.Name(), "bad_request"), false
	}
	req.Header.Set("X-Api-Key", p.cfg.Key)

	resp, err := p.caller.do(ctx, req)
	if err != nil {
		zap.L().Warn("pdl: call failed",
			zap.String("profile", pc.ProfileID),
			zap.Error(err),
		)
		return nil, Unavailable(p.Name(), unavailableReason(err)), false
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NotFound(p.Name(), p.cfg.CostPerCall), false
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, Unavailable(p.Name(), "auth"), false
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, Unavailable(p.Name(), "quota"), false
	case resp.StatusCode != http.StatusOK:
		return nil, Unavailable(p.Name(), "error"), false
	}

	var body pdlResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, Unavailable(p.Name(), "malformed_response"), false
	}
	return &body, Outcome{}, true
}

func (p *PDL) fieldValue(resp *pdlResponse, field model.ContactFieldKey) string {
	switch field {
	case model.FieldEmail:
		return resp.Data.WorkEmail
	case model.FieldPhone:
		return resp.Data.MobilePhone
	default:
		return ""
	}
}

// canonical normalizes a confirmed value before it enters a contact field.
func (p *PDL) canonical(field model.ContactFieldKey, value string) string {
	if field == model.FieldPhone {
		return normalizeE164(value, p.region)
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// confidenceFromLikelihood maps PDL's 1-10 match likelihood onto 0-100.
func confidenceFromLikelihood(likelihood int) int {
	if likelihood <= 0 {
		return 50
	}
	if likelihood > 10 {
		likelihood = 10
	}
	return likelihood * 10
}

// valuesMatch compares a known value with a provider value, normalizing per
// field type (emails case-insensitively, phones as E.164).
func valuesMatch(field model.ContactFieldKey, known, got, region string) bool {
	switch field {
	case model.FieldPhone:
		return normalizeE164(known, region) == normalizeE164(got, region)
	default:
		return strings.EqualFold(strings.TrimSpace(known), strings.TrimSpace(got))
	}
}

// normalizeE164 formats a phone number to E.164. If parsing fails, it returns
// the trimmed input so comparisons degrade to string equality.
func normalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}
