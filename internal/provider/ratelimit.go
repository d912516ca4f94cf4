package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/roster-cli/internal/resilience"
)

// caller wraps the shared plumbing every HTTP adapter needs: a token bucket
// tied to the provider's real rate limit, a per-call timeout, and a circuit
// breaker. A billed API has no patience for blanket sleeps.
type caller struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func newCaller(name string, perSec float64, burst int, timeout time.Duration) *caller {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = int(perSec)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &caller{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("provider circuit state change",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		timeout: timeout,
	}
}

// do executes an HTTP request under the limiter, timeout and breaker.
// Transient failures (timeouts, 429, 5xx) surface as TransientError so the
// adapter can map them to an Unavailable outcome.
func (c *caller) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "%s: rate limiter wait", c.name)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		r, err := c.client.Do(req.Clone(callCtx))
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return resilience.NewTransientError(err, 0)
			}
			return eris.Wrapf(err, "%s: request", c.name)
		}
		if resilience.IsTransientHTTPStatus(r.StatusCode) {
			_ = r.Body.Close()
			return resilience.NewTransientError(eris.Errorf("%s: http %d", c.name, r.StatusCode), r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// unavailableReason classifies an error from do into a short reason tag.
func unavailableReason(err error) string {
	switch {
	case eris.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case resilience.IsTransient(err):
		return "timeout"
	default:
		return "error"
	}
}
