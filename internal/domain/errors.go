package domain

import "errors"

var (
	ErrCatalogFetch        = errors.New("catalog fetch failed")
	ErrInvalidRate         = errors.New("invalid exchange rate")
	ErrBalanceUnavailable  = errors.New("balance unavailable")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUpstreamOrder       = errors.New("upstream order failed")
	ErrServiceNotFound     = errors.New("service not found")
	ErrInvalidLink         = errors.New("invalid link")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrOrderNotPersisted   = errors.New("order placed upstream but not recorded")
	ErrInvalidReceipt      = errors.New("invalid deposit receipt")
	ErrDepositRejected     = errors.New("deposit rejected")
)

// DepositRejectedError carries the billing worker's reason for refusing a deposit.
// It matches ErrDepositRejected and wraps the transport error.
type DepositRejectedError struct {
	Reason string
	Err    error
}

func (e *DepositRejectedError) Error() string {
	if e.Reason == "" {
		return ErrDepositRejected.Error()
	}
	return ErrDepositRejected.Error() + ": " + e.Reason
}

func (e *DepositRejectedError) Unwrap() []error {
	return []error{ErrDepositRejected, e.Err}
}
