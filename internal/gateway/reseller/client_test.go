package reseller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smmpanel/internal/domain"
	"smmpanel/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "secret", WithRateLimit(1000, 100))
}

func TestServices_DecodesMixedEncodings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostForm.Get("key"))
		assert.Equal(t, "services", r.PostForm.Get("action"))
		_, _ = w.Write([]byte(`[
			{"service": 1, "name": "Followers", "type": "Default", "category": "Instagram", "rate": "0.99", "min": "50", "max": "10000", "refill": true, "cancel": false},
			{"service": "2", "name": "Likes", "type": "Default", "category": "Instagram", "rate": 0.45, "min": 10, "max": 5000, "refill": "1", "cancel": 0}
		]`))
	})

	records, err := c.Services(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, err := records[0].ToDomain()
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "0.99", first.UnitRateUSD.String())
	assert.Equal(t, int64(50), first.MinQuantity)
	assert.True(t, first.Refill)

	second, err := records[1].ToDomain()
	require.NoError(t, err)
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, "0.45", second.UnitRateUSD.String())
	assert.Equal(t, int64(5000), second.MaxQuantity)
	assert.True(t, second.Refill)
	assert.False(t, second.Cancel)
}

func TestServiceRecord_ToDomainRejectsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"name": "no id", "rate": "1", "min": 1, "max": 2},
			{"service": 2, "name": "no rate", "min": 1, "max": 2},
			{"service": 3, "name": "negative", "rate": "-0.1", "min": 1, "max": 2},
			{"service": 4, "name": "inverted", "rate": "1", "min": 10, "max": 2},
			{"service": 5, "name": "no max", "rate": "1", "min": 10}
		]`))
	})

	records, err := c.Services(context.Background())
	require.NoError(t, err)
	for _, rec := range records {
		_, err := rec.ToDomain()
		assert.ErrorIs(t, err, ErrMalformedService, rec.Name)
	}
}

func TestAddOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "add", r.PostForm.Get("action"))
		assert.Equal(t, "7", r.PostForm.Get("service"))
		assert.Equal(t, "https://instagram.com/x", r.PostForm.Get("link"))
		assert.Equal(t, "1000", r.PostForm.Get("quantity"))
		_, _ = w.Write([]byte(`{"order": 23501}`))
	})

	id, err := c.AddOrder(context.Background(), "7", "https://instagram.com/x", 1000)
	require.NoError(t, err)
	assert.Equal(t, "23501", id)
}

func TestAddOrder_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"error payload", `{"error": "Not enough funds on balance"}`, http.StatusOK},
		{"missing id", `{}`, http.StatusOK},
		{"zero id", `{"order": 0}`, http.StatusOK},
		{"server error", `oops`, http.StatusBadGateway},
		{"not json", `<html>`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			id, err := c.AddOrder(context.Background(), "1", "l", 10)
			assert.Error(t, err)
			assert.Empty(t, id)
		})
	}
}

func TestAddOrder_ErrorPayloadIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error": "Incorrect service ID"}`))
	})

	_, err := c.AddOrder(context.Background(), "1", "l", 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Incorrect service ID", apiErr.Message)
}

func TestOrderStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "status", r.PostForm.Get("action"))
		assert.Equal(t, "23501", r.PostForm.Get("order"))
		_, _ = w.Write([]byte(`{"charge": "0.27819", "start_count": "3572", "status": "Partial", "remains": "157", "currency": "USD"}`))
	})

	st, err := c.OrderStatus(context.Background(), "23501")
	require.NoError(t, err)

	u := st.Update()
	assert.Equal(t, domain.OrderStatusPartial, u.Status)
	assert.Equal(t, "Partial", u.RawStatus)
	assert.Equal(t, int64(157), u.Remains)
	assert.Equal(t, int64(3572), u.StartCount)
	assert.True(t, u.UpstreamCharge.Valid)
	assert.Equal(t, "0.27819", u.UpstreamCharge.Decimal.String())
	assert.Equal(t, "USD", u.UpstreamCurrency)
}

func TestBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balance": "100.84292", "currency": "USD"}`))
	})

	b, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.84292", b.Balance.String())
}

func TestCircuitBreaker_IgnoresRejectionsButTripsOnOutage(t *testing.T) {
	var fail atomic.Bool
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"error": "Incorrect order ID"}`))
	})

	for i := 0; i < 10; i++ {
		_, err := c.OrderStatus(context.Background(), "1")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())

	fail.Store(true)
	for i := 0; i < 5; i++ {
		_, _ = c.OrderStatus(context.Background(), "1")
	}
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	before := hits.Load()
	_, err := c.OrderStatus(context.Background(), "1")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Equal(t, before, hits.Load())
}

func TestCatalog_FailsOnAnyMalformedRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"service": 1, "name": "ok", "rate": "1", "min": 1, "max": 2},
			{"service": 2, "name": "bad", "rate": "1", "min": 5, "max": 2}
		]`))
	})

	services, err := c.Catalog(context.Background())
	assert.ErrorIs(t, err, ErrMalformedService)
	assert.Nil(t, services)
}

func TestCatalog_RejectsDuplicateIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"service": 1, "name": "a", "rate": "1", "min": 1, "max": 2},
			{"service": "1", "name": "b", "rate": "1", "min": 1, "max": 2}
		]`))
	})

	_, err := c.Catalog(context.Background())
	assert.ErrorIs(t, err, ErrMalformedService)
}

func TestStatusUpdate_UnknownStatusKeepsRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"charge": null, "start_count": 0, "status": "Awaiting moderation", "remains": 1000}`))
	})

	u, err := c.StatusUpdate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusUnknown, u.Status)
	assert.Equal(t, "Awaiting moderation", u.RawStatus)
	assert.False(t, u.UpstreamCharge.Valid)
	assert.Equal(t, int64(1000), u.Remains)
}
