// Package network executes approved network-fetch calls with the gateway's
// outbound HTTP stack: retryable transport, resty client, circuit breaker,
// and a global politeness limiter. Per-session rate limits are the
// isolation core's job; the limiter here protects the host's egress.
package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/saintfish/chardet"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Warden/mediator/internal/providers"
	"github.com/GriffinCanCode/Warden/mediator/internal/shared/types"
)

// maxBodyBytes caps the response body returned to an extension.
const maxBodyBytes = 2 << 20

// Executor performs real network fetches on behalf of sessions.
type Executor struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
}

// NewExecutor builds the outbound client stack.
func NewExecutor(log *logging.Logger) *Executor {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient())
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	breaker := resilience.New("network-fetch", resilience.Settings{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Executor{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		breaker: breaker,
		log:     log,
	}
}

// Capabilities implements providers.Executor.
func (e *Executor) Capabilities() []types.Capability {
	return []types.Capability{types.CapNetworkFetch}
}

// Execute performs one fetch. The URL was already validated against the
// approving grant; nothing here re-checks policy.
func (e *Executor) Execute(ctx context.Context, req types.CallRequest) (*providers.Outcome, error) {
	rawURL, _ := req.Params["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url parameter required", types.ErrResourceUnavailable)
	}
	method := strings.ToUpper(stringParam(req.Params, "method", http.MethodGet))
	body, _ := req.Params["body"].(string)

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, mapNetErr(err)
	}

	r := e.client.R().SetContext(ctx)
	if headers, ok := req.Params["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				r.SetHeader(k, s)
			}
		}
	}
	if body != "" {
		r.SetBody(body)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return r.Execute(method, rawURL)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: outbound circuit open", types.ErrResourceUnavailable)
		}
		return nil, mapNetErr(err)
	}

	resp := result.(*resty.Response)
	payload := resp.Body()
	truncated := false
	if len(payload) > maxBodyBytes {
		payload = payload[:maxBodyBytes]
		truncated = true
	}

	data := map[string]interface{}{
		"status":       resp.StatusCode(),
		"headers":      flattenHeaders(resp.Header()),
		"body":         string(payload),
		"content_type": mimetype.Detect(payload).String(),
		"truncated":    truncated,
	}
	if cs := detectCharset(payload); cs != "" {
		data["charset"] = cs
	}

	return &providers.Outcome{
		Result: types.OK(req.ID, data),
		Bytes:  int64(len(payload) + len(body)),
	}, nil
}

func detectCharset(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	res, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil {
		return ""
	}
	return res.Charset
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func stringParam(params map[string]interface{}, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func mapNetErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: cancelled", types.ErrSessionTerminated)
	}
	return fmt.Errorf("%w: %v", types.ErrResourceUnavailable, err)
}
