package fxrate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, code int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, "lkr", time.Second)
}

func TestFetch(t *testing.T) {
	c := serve(t, http.StatusOK, `{"result":"success","base_code":"USD","conversion_rates":{"USD":1,"LKR":298.4512,"INR":83.1}}`)

	rate, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "298.4512", rate.USDToLocal.String())
	assert.Equal(t, "LKR", rate.Currency)
	assert.False(t, rate.IsDefault())
}

func TestFetch_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error result", `{"result":"error","error-type":"invalid-key"}`},
		{"missing currency", `{"result":"success","conversion_rates":{"INR":83.1}}`},
		{"zero rate", `{"result":"success","conversion_rates":{"LKR":0}}`},
		{"negative rate", `{"result":"success","conversion_rates":{"LKR":-1}}`},
		{"wrong base", `{"result":"success","base_code":"EUR","conversion_rates":{"LKR":330}}`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serve(t, http.StatusOK, tt.body).Fetch(context.Background())
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestFetch_HTTPError(t *testing.T) {
	_, err := serve(t, http.StatusTooManyRequests, `slow down`).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
