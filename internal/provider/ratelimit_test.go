package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/resilience"
)

func TestCaller_TransientStatusSurfacesAsTransientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := newCaller("test", 100, 100, 2*time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.do(context.Background(), req)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestCaller_BreakerOpensAfterRepeatedOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := newCaller("test", 1000, 1000, 2*time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	// Default threshold is 5 consecutive transient failures.
	for i := 0; i < 5; i++ {
		_, err := c.do(context.Background(), req)
		require.Error(t, err)
	}

	_, err = c.do(context.Background(), req)
	require.Error(t, err)
	assert.True(t, eris.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, "circuit_open", unavailableReason(err))
}

func TestCaller_NonTransientStatusPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := newCaller("test", 100, 100, 2*time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnavailableReason(t *testing.T) {
	assert.Equal(t, "circuit_open", unavailableReason(resilience.ErrCircuitOpen))
	assert.Equal(t, "timeout", unavailableReason(resilience.NewTransientError(eris.New("http 503"), 503)))
	assert.Equal(t, "error", unavailableReason(eris.New("connection refused by policy")))
}

func TestOutcome_Attempt(t *testing.T) {
	out := Confirmed("pdl", "dana@acme.com", 90, 0.03)
	att := out.Attempt("verify")
	assert.Equal(t, "pdl", att.Provider)
	assert.Equal(t, "verify", att.Mode)
	assert.Equal(t, model.OutcomeConfirmed, att.Status)
	assert.Equal(t, 0.03, att.CostUSD)

	att = Unavailable("pdl", "quota").Attempt("discover")
	assert.Equal(t, model.OutcomeUnavailable, att.Status)
	assert.Equal(t, "quota", att.Reason)
	assert.Zero(t, att.CostUSD)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	assert.Nil(t, reg.Get("pdl"))

	reg.Register(NewEmailCheck(config.EmailCheckConfig{BaseURL: "http://localhost:9"}, time.Second))
	a := reg.Get("emailcheck")
	require.NotNil(t, a)
	assert.Equal(t, "emailcheck", a.Name())
	assert.Equal(t, []string{"emailcheck"}, reg.List())
}
