package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"smmpanel/internal/api/middleware"
	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

const maxDepositUpload = 6 << 20

type BalanceHandler struct {
	balances domain.BalanceService
	deposits domain.DepositService
	logger   logger.Logger
}

type DepositsResponse struct {
	Deposits []domain.Deposit `json:"deposits"`
	Count    int              `json:"count"`
}

func NewBalanceHandler(balances domain.BalanceService, deposits domain.DepositService, logger logger.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		deposits: deposits,
		logger:   logger,
	}
}

func (h *BalanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/balance", middleware.RequireIdentity(h.handleBalance))
	mux.HandleFunc("/api/deposits", middleware.RequireIdentity(h.handleDeposits))
}

func (h *BalanceHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	identity, _ := domain.CurrentUser(r.Context())

	balance, err := h.balances.GetBalance(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *BalanceHandler) handleDeposits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.depositHistory(w, r)
	case http.MethodPost:
		h.submitDeposit(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *BalanceHandler) depositHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := domain.CurrentUser(r.Context())

	deposits, err := h.deposits.GetHistory(r.Context(), identity.UserID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if deposits == nil {
		deposits = []domain.Deposit{}
	}
	writeJSON(w, http.StatusOK, DepositsResponse{Deposits: deposits, Count: len(deposits)})
}

// submitDeposit accepts a multipart form with "amount" and a "receipt" file.
func (h *BalanceHandler) submitDeposit(w http.ResponseWriter, r *http.Request) {
	identity, _ := domain.CurrentUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxDepositUpload)
	if err := r.ParseMultipartForm(maxDepositUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_receipt", "Receipt is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Expected a multipart form")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be a number")
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_receipt", "receipt file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_receipt", "receipt could not be read")
		return
	}

	deposit, err := h.deposits.SubmitDeposit(r.Context(), identity.UserID, amount, domain.DepositReceipt{
		FileName:    header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAmount) || errors.Is(err, domain.ErrInvalidReceipt) || errors.Is(err, domain.ErrDepositRejected) {
			writeDomainError(w, r, h.logger, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "Deposit forwarding failed", map[string]interface{}{
			"user_id": identity.UserID,
			"error":   err.Error(),
		})
		writeError(w, http.StatusBadGateway, "deposit_failed", "Deposit could not be submitted, try again later")
		return
	}

	writeJSON(w, http.StatusCreated, deposit)
}
