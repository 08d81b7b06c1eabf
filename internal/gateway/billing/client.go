// Package billing reads balances from and forwards deposits to the billing worker,
// which owns every user's ledger.
package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"smmpanel/internal/domain"
	"smmpanel/pkg/metrics"
	"smmpanel/pkg/tracing"
)

const maxResponseBytes = 1 << 20

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type balanceResponse struct {
	TotalBalance   *decimal.Decimal `json:"total_balance"`
	PendingBalance *decimal.Decimal `json:"pending_balance"`
}

type depositRecord struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	ReceiptURL string          `json:"receipt_url"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (d depositRecord) toDomain() domain.Deposit {
	return domain.Deposit{
		ID:         d.ID,
		Amount:     d.Amount,
		Status:     d.Status,
		ReceiptURL: d.ReceiptURL,
		CreatedAt:  d.CreatedAt,
	}
}

// GetBalance is a pure read. Every failure, including a malformed or negative
// balance, is reported as domain.ErrBalanceUnavailable.
func (c *Client) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	var resp balanceResponse
	if err := c.get(ctx, "get-balance", userID, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBalanceUnavailable, err)
	}

	if resp.TotalBalance == nil {
		return nil, fmt.Errorf("%w: response has no total_balance", domain.ErrBalanceUnavailable)
	}
	pending := decimal.Zero
	if resp.PendingBalance != nil {
		pending = *resp.PendingBalance
	}
	if resp.TotalBalance.IsNegative() || pending.IsNegative() {
		return nil, fmt.Errorf("%w: negative balance reported", domain.ErrBalanceUnavailable)
	}

	return &domain.Balance{
		UserID:         userID,
		TotalAvailable: *resp.TotalBalance,
		TotalPending:   pending,
		FetchedAt:      time.Now().UTC(),
	}, nil
}

func (c *Client) GetHistory(ctx context.Context, userID string) ([]domain.Deposit, error) {
	var records []depositRecord
	if err := c.get(ctx, "get-history", userID, &records); err != nil {
		return nil, err
	}

	deposits := make([]domain.Deposit, 0, len(records))
	for _, r := range records {
		deposits = append(deposits, r.toDomain())
	}
	return deposits, nil
}

// SubmitDeposit forwards a manual bank-transfer claim with its receipt.
func (c *Client) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, receipt domain.DepositReceipt) (_ *domain.Deposit, err error) {
	ctx, span := tracing.StartSpan(ctx, "billing.submit-deposit")
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamRequest("billing", "submit-deposit", err, time.Since(start))
	}()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("userId", userID); err != nil {
		return nil, err
	}
	if err := mw.WriteField("amount", amount.StringFixed(2)); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("receipt", receipt.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(receipt.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit-deposit", &buf)
	if err != nil {
		return nil, fmt.Errorf("billing submit-deposit: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var record depositRecord
	if err := c.do(req, "submit-deposit", &record); err != nil {
		if IsClientError(err) {
			return nil, &domain.DepositRejectedError{Reason: rejectionReason(err), Err: err}
		}
		return nil, err
	}

	d := record.toDomain()
	if d.Amount.IsZero() {
		d.Amount = amount
	}
	return &d, nil
}

func (c *Client) get(ctx context.Context, path, userID string, dest interface{}) (err error) {
	ctx, span := tracing.StartSpan(ctx, "billing."+path, attribute.String("user.id", userID))
	defer span.End()
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamRequest("billing", path, err, time.Since(start))
		tracing.RecordError(ctx, err)
	}()

	endpoint := fmt.Sprintf("%s/%s?userId=%s", c.baseURL, path, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("billing %s: create request: %w", path, err)
	}
	return c.do(req, path, dest)
}

func (c *Client) do(req *http.Request, op string, dest interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("billing %s: request: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("billing %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("billing %s: decode: %w", op, err)
	}
	return nil
}

type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("billing %s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// rejectionReason prefers the worker's {"error"} or {"message"} text over the raw body.
func rejectionReason(err error) string {
	var se *StatusError
	if !errors.As(err, &se) {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(se.Body), &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return se.Body
}

// IsClientError reports whether the worker rejected the request itself, e.g. an
// invalid deposit amount.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}
