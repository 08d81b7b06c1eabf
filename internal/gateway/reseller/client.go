// Package reseller talks to the upstream SMM panel API: form-encoded POSTs carrying
// the API key and an action, answered with JSON.
package reseller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"smmpanel/internal/domain"
	"smmpanel/pkg/circuitbreaker"
	"smmpanel/pkg/logger"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

const maxResponseBytes = 8 << 20

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests; panels ban keys that burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreaker(c.logger)
	}
	return c
}

// NewCircuitBreaker trips on transport and server failures only. Rejections such as
// "not enough funds" prove the panel is up.
func NewCircuitBreaker(l logger.Logger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Settings{
		Name:        "reseller",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: circuitbreaker.ConsecutiveFailures(5),
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr) || circuitbreaker.IsCallerError(err)
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.SetCircuitBreakerState(name, int(to))
			l.Warn("Circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// Services fetches the full catalog.
func (c *Client) Services(ctx context.Context) ([]ServiceRecord, error) {
	var records []ServiceRecord
	if err := c.call(ctx, "services", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Catalog fetches the catalog and validates every record. One malformed record fails
// the whole call so a partial catalog is never published.
func (c *Client) Catalog(ctx context.Context) ([]domain.Service, error) {
	records, err := c.Services(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]domain.Service, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		svc, err := rec.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if _, dup := seen[svc.ID]; dup {
			return nil, fmt.Errorf("record %d: %w: duplicate id %s", i, ErrMalformedService, svc.ID)
		}
		seen[svc.ID] = struct{}{}
		services = append(services, svc)
	}
	return services, nil
}

// AddOrder places an order and returns the panel's order id. A response without a
// positive id is treated as a failure.
func (c *Client) AddOrder(ctx context.Context, serviceID, link string, quantity int64) (string, error) {
	params := url.Values{
		"service":  {serviceID},
		"link":     {link},
		"quantity": {strconv.FormatInt(quantity, 10)},
	}

	var resp addOrderResponse
	if err := c.call(ctx, "add", params, &resp); err != nil {
		return "", err
	}

	id := resp.Order.value
	if !resp.Order.set || id == "" || id == "0" {
		return "", errors.New("reseller add: response carries no order id")
	}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && n <= 0 {
		return "", fmt.Errorf("reseller add: invalid order id %s", id)
	}
	return id, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	var resp OrderStatus
	if err := c.call(ctx, "status", url.Values{"order": {orderID}}, &resp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Status) == "" {
		return nil, fmt.Errorf("reseller status: order %s has no status", orderID)
	}
	return &resp, nil
}

// StatusUpdate fetches an order's status in the shape the order store accepts.
func (c *Client) StatusUpdate(ctx context.Context, orderID string) (domain.OrderStatusUpdate, error) {
	st, err := c.OrderStatus(ctx, orderID)
	if err != nil {
		return domain.OrderStatusUpdate{}, err
	}
	return st.Update(), nil
}

func (c *Client) Balance(ctx context.Context) (*AccountBalance, error) {
	var resp AccountBalance
	if err := c.call(ctx, "balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, action string, params url.Values, dest interface{}) (err error) {
	ctx, span := tracing.StartSpan(ctx, "reseller."+action, attribute.String("reseller.action", action))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordUpstreamRequest("reseller", action, err, time.Since(start))
		tracing.RecordError(ctx, err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("reseller %s: rate limiter: %w", action, err)
	}

	body, err := circuitbreaker.Do(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, action, params)
	})
	if err != nil {
		return err
	}

	return decode(action, body, dest)
}

func (c *Client) post(ctx context.Context, action string, params url.Values) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("key", c.apiKey)
	form.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("reseller %s: create request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reseller %s: request: %w", action, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reseller %s: read body: %w", action, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("reseller %s: unexpected status %d: %s", action, resp.StatusCode, snippet(body))
	}
	if resp.StatusCode != http.StatusOK {
		if apiErr := asAPIError(action, body); apiErr != nil {
			return nil, apiErr
		}
		return nil, fmt.Errorf("reseller %s: unexpected status %d: %s", action, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func decode(action string, body []byte, dest interface{}) error {
	if apiErr := asAPIError(action, body); apiErr != nil {
		return apiErr
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("reseller %s: decode: %w", action, err)
	}
	return nil
}

// asAPIError recognises the {"error": "..."} envelope.
func asAPIError(action string, body []byte) *APIError {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var e errorResponse
	if err := json.Unmarshal(trimmed, &e); err != nil || e.Error == "" {
		return nil
	}
	return &APIError{Action: action, Message: e.Error}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
