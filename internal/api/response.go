package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"smmpanel/internal/domain"
	"smmpanel/pkg/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorResponse is the body of every non-2xx API response. Code is stable and is
// what clients branch on.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

// classify maps domain errors to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrInvalidLink):
		return http.StatusBadRequest, "invalid_link"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrInvalidReceipt):
		return http.StatusBadRequest, "invalid_receipt"
	case errors.Is(err, domain.ErrDepositRejected):
		return http.StatusUnprocessableEntity, "deposit_rejected"
	case errors.Is(err, domain.ErrServiceNotFound):
		return http.StatusNotFound, "service_not_found"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, domain.ErrBalanceUnavailable):
		return http.StatusServiceUnavailable, "balance_unavailable"
	case errors.Is(err, domain.ErrUpstreamOrder):
		return http.StatusBadGateway, "upstream_order_failed"
	case errors.Is(err, domain.ErrCatalogFetch):
		return http.StatusBadGateway, "catalog_unavailable"
	case errors.Is(err, domain.ErrInvalidRate):
		return http.StatusServiceUnavailable, "pricing_unavailable"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrOrderNotPersisted):
		return http.StatusInternalServerError, "order_not_recorded"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError logs server-side failures and writes the classified response.
func writeDomainError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "Request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"code":  code,
			"error": err.Error(),
		})
	}

	message := err.Error()
	if code == "internal_error" {
		message = "Internal server error"
	}
	writeError(w, status, code, message)
}

// FieldTypeError reports a well-formed JSON body with a member whose value does
// not fit the request type, e.g. a fractional or quoted quantity.
type FieldTypeError struct {
	Field string
	Err   error
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q has the wrong type: %v", e.Field, e.Err)
}

func (e *FieldTypeError) Unwrap() error {
	return e.Err
}

// decodeJSON reads a JSON body into dest and runs struct validation on it.
func decodeJSON(r *http.Request, dest interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		if field := mistypedField(body, dest); field != "" {
			return &FieldTypeError{Field: field, Err: err}
		}
		return err
	}
	return validate.Struct(dest)
}

// mistypedField returns the json name of the first top-level member that fails to
// decode on its own. It returns "" when body is not a JSON object.
func mistypedField(body []byte, dest interface{}) string {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return ""
	}

	t := reflect.TypeOf(dest)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return ""
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		raw, ok := members[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, reflect.New(field.Type).Interface()); err != nil {
			return name
		}
	}
	return ""
}
