package models

import "time"

// PaymentService is the logical payment method chosen by the user. It is
// resolved to a concrete PG code through the gateway registry before the
// SDK is ever invoked.
type PaymentService string

const (
	ServiceCard     PaymentService = "CARD"
	ServiceKakaoPay PaymentService = "KAKAO_PAY"
	ServiceTossPay  PaymentService = "TOSS_PAY"
	ServiceNaverPay PaymentService = "NAVER_PAY"
	ServicePhone    PaymentService = "PHONE"
)

// PaymentRequest describes one logical checkout intent.
type PaymentRequest struct {
	PlanCode       string         `json:"planCode"`
	PaymentService PaymentService `json:"paymentService"`
	SuccessURL     string         `json:"successUrl,omitempty"`
	CancelURL      string         `json:"cancelUrl,omitempty"`
	// Proration marks the secondary session opened for an upgrade's
	// partial charge; the backend computes the amount either way.
	Proration bool `json:"proration,omitempty"`
}

// CheckoutSession is the server-minted, single-use record correlating one
// payment attempt. Amount and ProviderSessionID come from the backend and
// are never recomputed client-side.
type CheckoutSession struct {
	PaymentID         string `json:"paymentId"`
	ProviderSessionID string `json:"providerSessionId"`
	Amount            int64  `json:"amount"`
	RedirectURL       string `json:"redirectUrl,omitempty"`
}

// PaymentStatus is the backend's authoritative view of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentStatusResult is the status-check endpoint's response.
type PaymentStatusResult struct {
	Status            PaymentStatus `json:"status"`
	ProviderPaymentID string        `json:"providerPaymentId,omitempty"`
	ReceiptURL        string        `json:"receiptUrl,omitempty"`
	ReasonCode        string        `json:"reasonCode,omitempty"`
	Message           string        `json:"message,omitempty"`
}

// PaymentResult is what ProcessPayment always resolves with; it never
// surfaces a raw error.
type PaymentResult struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"paymentId,omitempty"`
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RedirectURL  string `json:"redirectUrl,omitempty"`
}

// AttemptState tracks one checkout attempt through its suspension points.
type AttemptState string

const (
	AttemptIdle    AttemptState = "idle"
	AttemptLoading AttemptState = "loading"
	AttemptSuccess AttemptState = "success"
	AttemptError   AttemptState = "error"
)

// PaymentAttempt is the explicit state value the orchestrator threads
// through one ProcessPayment call (or one ProcessPaymentWithRetry chain).
// Not persisted; discarded when the call returns.
type PaymentAttempt struct {
	Request    PaymentRequest
	State      AttemptState
	RetryCount int
	StartedAt  time.Time
	LastError  error
}

// NewPaymentAttempt returns an idle attempt for the given request.
func NewPaymentAttempt(req PaymentRequest) *PaymentAttempt {
	return &PaymentAttempt{
		Request:   req,
		State:     AttemptIdle,
		StartedAt: time.Now().UTC(),
	}
}
