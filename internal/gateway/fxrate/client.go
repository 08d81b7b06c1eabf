// Package fxrate fetches the USD conversion table from the exchange-rate service.
package fxrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"smmpanel/internal/domain"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

var ErrMalformedPayload = errors.New("malformed exchange rate payload")

type Client struct {
	endpoint   string
	currency   string
	httpClient *http.Client
}

func New(endpoint, currency string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		currency:   strings.ToUpper(currency),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Result          string                     `json:"result"`
	BaseCode        string                     `json:"base_code"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// Fetch returns the current USD rate for the configured currency. A result other
// than "success", a missing currency or a non-positive rate is ErrMalformedPayload.
func (c *Client) Fetch(ctx context.Context) (_ domain.ExchangeRate, err error) {
	ctx, span := tracing.StartSpan(ctx, "fxrate.fetch")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamRequest("fxrate", "latest", err, time.Since(start))
		tracing.RecordError(ctx, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("create fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("request fx rates: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.ExchangeRate{}, fmt.Errorf("fx rates unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload ratesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return domain.ExchangeRate{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if payload.Result != "success" {
		return domain.ExchangeRate{}, fmt.Errorf("%w: result %q", ErrMalformedPayload, payload.Result)
	}
	if payload.BaseCode != "" && !strings.EqualFold(payload.BaseCode, "USD") {
		return domain.ExchangeRate{}, fmt.Errorf("%w: base %s is not USD", ErrMalformedPayload, payload.BaseCode)
	}
	rate, ok := payload.ConversionRates[c.currency]
	if !ok {
		return domain.ExchangeRate{}, fmt.Errorf("%w: no rate for %s", ErrMalformedPayload, c.currency)
	}
	if !rate.IsPositive() {
		return domain.ExchangeRate{}, fmt.Errorf("%w: rate %s for %s", ErrMalformedPayload, rate, c.currency)
	}

	return domain.ExchangeRate{
		USDToLocal: rate,
		Currency:   c.currency,
		FetchedAt:  time.Now().UTC(),
	}, nil
}
