package service

import (
	"errors"
	"fmt"
)

// Rejection is a handshake failure caused by the request itself. Message is
// safe to show to the caller.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// Handshake rejections. Each one ends the request.
var (
	ErrMissingParameters = &Rejection{
		Code:    "missing_parameters",
		Message: "Required parameters missing",
	}
	ErrMissingSignatureParameter = &Rejection{
		Code:    "missing_signature_parameter",
		Message: "Missing hmac parameter",
	}
	ErrInvalidTenant = &Rejection{
		Code:    "invalid_tenant",
		Message: "Missing shop parameter. Please add ?shop=your-development-shop.myshopify.com to your request",
	}
	ErrOriginUnverifiable = &Rejection{
		Code:    "origin_unverifiable",
		Message: "Request origin cannot be verified",
	}
	ErrSignatureInvalid = &Rejection{
		Code:    "signature_invalid",
		Message: "HMAC validation failed",
	}
)

// StoreError wraps a state store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("state store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UpstreamError wraps a failed call to the shop, either the code exchange or
// the follow-up token check.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Outcome names the result of a handshake step for metrics and logs.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Code
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return "store_failure"
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return "upstream_exchange_failed"
	}
	return "error"
}
