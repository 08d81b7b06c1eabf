package reseller

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"smmpanel/internal/domain"
)

// flexString accepts a JSON string or number; reseller panels disagree on which
// one they send for ids.
type flexString struct {
	value string
	set   bool
}

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.value, f.set = strings.TrimSpace(s), true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	f.value, f.set = n.String(), true
	return nil
}

// flexInt accepts an integer encoded as a JSON number or a numeric string.
type flexInt struct {
	value int64
	set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if !s.set || s.value == "" {
		return nil
	}
	n, err := strconv.ParseInt(s.value, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(s.value)
		if derr != nil || !d.IsInteger() {
			return fmt.Errorf("invalid integer %q", s.value)
		}
		n = d.IntPart()
	}
	f.value, f.set = n, true
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		var v bool
		if jerr := json.Unmarshal(b, &v); jerr != nil {
			return err
		}
		*f = flexBool(v)
		return nil
	}
	switch strings.ToLower(s.value) {
	case "1", "true", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// ServiceRecord is one entry of the "services" action.
type ServiceRecord struct {
	Service  flexString       `json:"service"`
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	Category string           `json:"category"`
	Rate     *decimal.Decimal `json:"rate"`
	Min      flexInt          `json:"min"`
	Max      flexInt          `json:"max"`
	Refill   flexBool         `json:"refill"`
	Cancel   flexBool         `json:"cancel"`
}

var ErrMalformedService = errors.New("malformed service record")

// ToDomain validates the record. Missing or invalid id, rate, min or max, a negative
// rate and min > max are all rejected.
func (r ServiceRecord) ToDomain() (domain.Service, error) {
	switch {
	case !r.Service.set || r.Service.value == "":
		return domain.Service{}, fmt.Errorf("%w: missing id", ErrMalformedService)
	case r.Rate == nil:
		return domain.Service{}, fmt.Errorf("%w: service %s has no rate", ErrMalformedService, r.Service.value)
	case r.Rate.IsNegative():
		return domain.Service{}, fmt.Errorf("%w: service %s has negative rate %s", ErrMalformedService, r.Service.value, r.Rate)
	case !r.Min.set || !r.Max.set:
		return domain.Service{}, fmt.Errorf("%w: service %s has no quantity bounds", ErrMalformedService, r.Service.value)
	case r.Min.value < 0 || r.Min.value > r.Max.value:
		return domain.Service{}, fmt.Errorf("%w: service %s has min %d > max %d", ErrMalformedService, r.Service.value, r.Min.value, r.Max.value)
	}

	return domain.Service{
		ID:          r.Service.value,
		Name:        strings.TrimSpace(r.Name),
		Category:    strings.TrimSpace(r.Category),
		Type:        r.Type,
		UnitRateUSD: *r.Rate,
		MinQuantity: r.Min.value,
		MaxQuantity: r.Max.value,
		Refill:      bool(r.Refill),
		Cancel:      bool(r.Cancel),
	}, nil
}

type addOrderResponse struct {
	Order flexString `json:"order"`
}

// OrderStatus is the "status" action payload.
type OrderStatus struct {
	Charge     *decimal.Decimal `json:"charge"`
	StartCount flexInt          `json:"start_count"`
	Status     string           `json:"status"`
	Remains    flexInt          `json:"remains"`
	Currency   string           `json:"currency"`
}

// Update converts the payload into the fields an order may change.
func (s OrderStatus) Update() domain.OrderStatusUpdate {
	u := domain.OrderStatusUpdate{
		Status:           domain.NormalizeStatus(s.Status),
		RawStatus:        s.Status,
		Remains:          s.Remains.value,
		StartCount:       s.StartCount.value,
		UpstreamCurrency: s.Currency,
	}
	if s.Charge != nil {
		u.UpstreamCharge = decimal.NewNullDecimal(*s.Charge)
	}
	return u
}

type AccountBalance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// APIError is a well-formed rejection from the panel, as opposed to a transport failure.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reseller %s rejected: %s", e.Action, e.Message)
}
