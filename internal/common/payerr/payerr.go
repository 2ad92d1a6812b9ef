// Package payerr provides the closed error taxonomy shared by the checkout
// orchestrator and the subscription lifecycle.
package payerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// Code identifies one member of the payment error taxonomy.
type Code string

const (
	CodeSDKNotLoaded       Code = "SDK_NOT_LOADED"
	CodeInvalidPG          Code = "INVALID_PG"
	CodeInvalidPaymentData Code = "INVALID_PAYMENT_DATA"
	CodePaymentFailed      Code = "PAYMENT_FAILED"
	CodeStatusCheckFailed  Code = "STATUS_CHECK_FAILED"
	CodeNetworkError       Code = "NETWORK_ERROR"
)

// displayMessages are the user-facing strings shown by the membership UI.
// They are returned verbatim in PaymentResult.ErrorMessage.
var displayMessages = map[Code]string{
	CodeSDKNotLoaded:       "결제 모듈이 로드되지 않았습니다.",
	CodeInvalidPG:          "지원하지 않는 결제 수단입니다.",
	CodeInvalidPaymentData: "결제 응답 데이터가 올바르지 않습니다.",
	CodePaymentFailed:      "결제에 실패했습니다.",
	CodeStatusCheckFailed:  "결제 상태 확인에 실패했습니다.",
	CodeNetworkError:       "네트워크 오류가 발생했습니다. 잠시 후 다시 시도해주세요.",
}

// DisplayMessage returns the default user-facing message for a code.
func DisplayMessage(code Code) string {
	if msg, ok := displayMessages[code]; ok {
		return msg
	}
	return displayMessages[CodePaymentFailed]
}

// ==========================
// 2. Error Type
// ==========================

// Error is a structured payment error. Every failure crossing the
// orchestrator boundary is exactly one of these.
type Error struct {
	Code      Code      `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("PaymentError[%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ==========================
// 3. Constructors
// ==========================

func newError(code Code, details string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   DisplayMessage(code),
		Details:   details,
		Retryable: IsRetryable(code),
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewSDKNotLoaded reports an absent gateway SDK. Deterministic: retrying
// without loading the SDK cannot succeed.
func NewSDKNotLoaded() *Error {
	return newError(CodeSDKNotLoaded, "payment SDK absent from environment", nil)
}

// NewInvalidPG reports a payment service with no gateway mapping.
func NewInvalidPG(service string) *Error {
	return newError(CodeInvalidPG, fmt.Sprintf("paymentService: %q", service), nil)
}

// NewInvalidPaymentData reports a gateway callback whose shape failed
// validation before any field was trusted.
func NewInvalidPaymentData(details string) *Error {
	return newError(CodeInvalidPaymentData, details, nil)
}

// NewPaymentFailed reports a terminal gateway or backend payment failure.
// gatewayMsg, when non-empty, replaces the default display message so the
// gateway-supplied reason reaches the user.
func NewPaymentFailed(gatewayMsg, details string) *Error {
	e := newError(CodePaymentFailed, details, nil)
	if gatewayMsg != "" {
		e.Message = gatewayMsg
	}
	return e
}

// NewStatusCheckFailed reports an unconfirmed payment: the gateway may have
// succeeded, but the backend could not verify it. Distinct from
// PAYMENT_FAILED so the UI never claims a failure it cannot prove.
func NewStatusCheckFailed(cause error) *Error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return newError(CodeStatusCheckFailed, details, cause)
}

// NewNetworkError reports a transport failure talking to the backend.
func NewNetworkError(cause error) *Error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return newError(CodeNetworkError, details, cause)
}

// ==========================
// 4. Classification
// ==========================

// From normalizes any error into a taxonomy member. Transport-looking
// errors become NETWORK_ERROR; everything else becomes PAYMENT_FAILED.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return NewNetworkError(err)
	}
	return NewPaymentFailed("", err.Error())
}

// IsRetryable reports whether a code is worth retrying. SDK_NOT_LOADED and
// INVALID_PG are deterministic: the same input fails the same way every
// time, so the retry loop skips them entirely.
func IsRetryable(code Code) bool {
	switch code {
	case CodeSDKNotLoaded, CodeInvalidPG:
		return false
	default:
		return true
	}
}

// RetryCount returns the attempt budget per code: how many times the
// whole checkout flow is worth running while it keeps failing with this
// code. The retry loop caps its chain at this value.
func RetryCount(code Code) int {
	switch code {
	case CodeNetworkError, CodePaymentFailed, CodeInvalidPaymentData:
		return 3
	case CodeStatusCheckFailed:
		return 2 // status endpoint is idempotent, but bounded
	default:
		return 0
	}
}

// Category groups codes for metrics labels and log filtering.
func Category(code Code) string {
	switch code {
	case CodeSDKNotLoaded, CodeInvalidPaymentData:
		return "SDK"
	case CodeInvalidPG:
		return "GATEWAY_MAPPING"
	case CodePaymentFailed:
		return "PAYMENT"
	case CodeStatusCheckFailed:
		return "RECONCILE"
	case CodeNetworkError:
		return "NETWORK"
	default:
		return "OTHER"
	}
}
