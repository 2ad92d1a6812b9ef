// Package api is the client for the membership backend's payments and
// memberships endpoints. Every failure is converted to a taxonomy member
// at this boundary; raw transport errors never leak upward.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"membership-checkout/internal/common/config"
	"membership-checkout/internal/common/httpclient"
	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"
)

type Client struct {
	baseURL      string
	sessionToken string
	http         *httpclient.Client
	log          logger.Logger
}

func NewClient(cfg config.BackendConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		sessionToken: cfg.SessionToken,
		http:         httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		log:          log.WithFields(map[string]interface{}{"component": "membership-api"}),
	}
}

// errorBody is the backend's error envelope. reasonCode is the structured
// business-error discriminator; message is kept as a fallback for
// responses that predate it.
type errorBody struct {
	Message    string `json:"message"`
	ReasonCode string `json:"reasonCode"`
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.sessionToken != "" {
		h["Cookie"] = "laftel_session=" + c.sessionToken
	}
	return h
}

// ==========================
// Payments
// ==========================

type checkoutRequest struct {
	PlanCode       string `json:"planCode"`
	PaymentService string `json:"paymentService"`
	SuccessURL     string `json:"successUrl,omitempty"`
	CancelURL      string `json:"cancelUrl,omitempty"`
	Proration      bool   `json:"proration,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// CreateCheckoutSession asks the backend to mint a single-use session for
// one payment attempt.
func (c *Client) CreateCheckoutSession(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.CheckoutSession, error) {
	body := checkoutRequest{
		PlanCode:       req.PlanCode,
		PaymentService: string(req.PaymentService),
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Proration:      req.Proration,
		IdempotencyKey: idempotencyKey,
	}

	resp, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/payments/checkout", body, c.headers())
	if err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return nil, c.transportError("create checkout session", resp)
	}

	var session models.CheckoutSession
	if err := resp.Decode(&session); err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if session.PaymentID == "" || session.ProviderSessionID == "" {
		return nil, payerr.NewNetworkError(fmt.Errorf("backend returned an incomplete checkout session"))
	}
	return &session, nil
}

// PaymentStatus fetches the authoritative outcome for a payment. Safe to
// repeat; the endpoint is idempotent.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatusResult, error) {
	url := fmt.Sprintf("%s/payments/%s/status", c.baseURL, paymentID)
	resp, err := c.http.DoJSON(ctx, http.MethodGet, url, nil, c.headers())
	if err != nil {
		return nil, payerr.NewStatusCheckFailed(err)
	}
	if !resp.IsSuccess() {
		return nil, payerr.NewStatusCheckFailed(fmt.Errorf("status check returned %d", resp.StatusCode))
	}

	var result models.PaymentStatusResult
	if err := resp.Decode(&result); err != nil {
		return nil, payerr.NewStatusCheckFailed(err)
	}
	return &result, nil
}

// Refund requests a refund for a settled payment. Business refusals
// (7-day window elapsed, content already consumed) come back as
// PAYMENT_FAILED carrying the backend's reason.
func (c *Client) Refund(ctx context.Context, paymentID string) error {
	url := fmt.Sprintf("%s/payments/%s/refund", c.baseURL, paymentID)
	resp, err := c.http.DoJSON(ctx, http.MethodPost, url, nil, c.headers())
	if err != nil {
		return payerr.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return c.refundError(resp)
	}
	return nil
}

// ==========================
// Memberships
// ==========================

type idempotentRequest struct {
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type changePlanRequest struct {
	NewPlanCode    string `json:"newPlanCode"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

func (c *Client) CancelSubscription(ctx context.Context, idempotencyKey string) (*models.Subscription, error) {
	return c.subscriptionCall(ctx, http.MethodPost, "/memberships/cancel", idempotentRequest{IdempotencyKey: idempotencyKey})
}

func (c *Client) ResumeSubscription(ctx context.Context) (*models.Subscription, error) {
	return c.subscriptionCall(ctx, http.MethodPost, "/memberships/resume", nil)
}

func (c *Client) ChangePlan(ctx context.Context, newPlanCode, idempotencyKey string) (*models.ChangePlanOutcome, error) {
	body := changePlanRequest{NewPlanCode: newPlanCode, IdempotencyKey: idempotencyKey}
	resp, err := c.http.DoJSON(ctx, http.MethodPut, c.baseURL+"/memberships/change-plan", body, c.headers())
	if err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return nil, c.transportError("change plan", resp)
	}

	var outcome models.ChangePlanOutcome
	if err := resp.Decode(&outcome); err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	return &outcome, nil
}

func (c *Client) CancelScheduledChange(ctx context.Context) (*models.Subscription, error) {
	return c.subscriptionCall(ctx, http.MethodPost, "/memberships/change-plan/cancel", nil)
}

// GetSubscription refreshes the client's view of the membership record.
func (c *Client) GetSubscription(ctx context.Context) (*models.Subscription, error) {
	return c.subscriptionCall(ctx, http.MethodGet, "/memberships/me", nil)
}

// ListPlans fetches the plan catalog.
func (c *Client) ListPlans(ctx context.Context) ([]models.Plan, error) {
	resp, err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/plans", nil, c.headers())
	if err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return nil, c.transportError("list plans", resp)
	}

	var plans []models.Plan
	if err := resp.Decode(&plans); err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	return plans, nil
}

func (c *Client) subscriptionCall(ctx context.Context, method, path string, body interface{}) (*models.Subscription, error) {
	resp, err := c.http.DoJSON(ctx, method, c.baseURL+path, body, c.headers())
	if err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if !resp.IsSuccess() {
		return nil, c.transportError(method+" "+path, resp)
	}

	var sub models.Subscription
	if err := resp.Decode(&sub); err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	if err := sub.Validate(); err != nil {
		return nil, payerr.NewNetworkError(err)
	}
	return &sub, nil
}

// transportError converts an HTTP error response into NETWORK_ERROR.
// Session creation and the membership endpoints classify every non-2xx
// this way, whatever the status; only the refund endpoint carries
// business refusals worth a different code.
func (c *Client) transportError(op string, resp *httpclient.Response) error {
	var body errorBody
	_ = resp.Decode(&body)

	c.log.Warn("backend request failed", map[string]interface{}{
		"operation":  op,
		"status":     resp.StatusCode,
		"reasonCode": body.ReasonCode,
	})

	return payerr.NewNetworkError(fmt.Errorf("%s returned status %d", op, resp.StatusCode))
}

// refundError maps the refund endpoint's business refusals (7-day window
// elapsed, content already consumed) to PAYMENT_FAILED with the
// backend's message. The structured reasonCode is the discriminator;
// the message alone is accepted for backends that predate it.
func (c *Client) refundError(resp *httpclient.Response) error {
	var body errorBody
	_ = resp.Decode(&body)

	c.log.Warn("refund refused", map[string]interface{}{
		"status":     resp.StatusCode,
		"reasonCode": body.ReasonCode,
	})

	if resp.StatusCode >= 400 && resp.StatusCode < 500 && (body.ReasonCode != "" || body.Message != "") {
		return payerr.NewPaymentFailed(body.Message, fmt.Sprintf("reasonCode: %s, status: %d", body.ReasonCode, resp.StatusCode))
	}
	return payerr.NewNetworkError(fmt.Errorf("refund returned status %d", resp.StatusCode))
}
