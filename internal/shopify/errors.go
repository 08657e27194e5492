package shopify

import (
	"fmt"
	"strings"
)

// Operations reported in ExchangeError.Op.
const (
	OpExchange = "exchange"
	OpVerify   = "verify"
)

// ExchangeError is returned when a call to the shop fails. StatusCode and
// Body are set when the shop answered; both are zero for transport errors.
type ExchangeError struct {
	Op         string
	StatusCode int
	Body       []byte
	Message    string
	Cause      error
}

func (e *ExchangeError) Error() string {
	base := "shopify: " + e.Op + " failed"
	if strings.TrimSpace(e.Message) != "" {
		base += ": " + strings.TrimSpace(e.Message)
	}
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

func (e *ExchangeError) Unwrap() error {
	return e.Cause
}
