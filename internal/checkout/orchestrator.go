// Package checkout drives one membership payment attempt end to end:
// session creation, gateway invocation, callback validation, server-side
// status reconciliation, and the retry discipline on top.
package checkout

import (
	"context"
	"sync/atomic"
	"time"

	"membership-checkout/internal/checkout/gateway"
	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/metrics"
	"membership-checkout/internal/common/observability"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"
	"membership-checkout/pkg/gateways"

	"github.com/google/uuid"
)

// SessionAPI is the slice of the backend client the orchestrator needs.
type SessionAPI interface {
	CreateCheckoutSession(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.CheckoutSession, error)
}

// Confirmer reconciles a locally-reported success against the backend.
type Confirmer interface {
	Confirm(ctx context.Context, paymentID string) (*models.PaymentStatusResult, *payerr.Error)
}

// PlanCatalog resolves plan display names for the gateway order label.
type PlanCatalog interface {
	Get(ctx context.Context, code string) (*models.Plan, error)
}

// Options carries the optional collaborators and tuning knobs.
type Options struct {
	Buyer     gateway.Buyer
	BaseDelay time.Duration
	Catalog   PlanCatalog
	Obs       *observability.Observability
	// OnRetry is invoked before each retry with the 1-based attempt
	// number just finished and its result, for UI feedback.
	OnRetry func(attempt int, result *models.PaymentResult)
}

type Orchestrator struct {
	api        SessionAPI
	adapter    *gateway.Adapter
	reconciler Confirmer
	registry   *gateways.Registry
	opts       Options
	log        logger.Logger

	// inFlight rejects a concurrent second attempt instead of relying on
	// UI-level button disabling.
	inFlight atomic.Bool

	sleep func(ctx context.Context, d time.Duration) error
}

func New(api SessionAPI, adapter *gateway.Adapter, reconciler Confirmer, registry *gateways.Registry, opts Options, log logger.Logger) *Orchestrator {
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Second
	}
	return &Orchestrator{
		api:        api,
		adapter:    adapter,
		reconciler: reconciler,
		registry:   registry,
		opts:       opts,
		log:        log.WithFields(map[string]interface{}{"component": "checkout-orchestrator"}),
		sleep:      sleepCtx,
	}
}

// ProcessPayment runs one checkout attempt. It always resolves with a
// PaymentResult; taxonomy errors are folded into the result and never
// escape as Go errors.
func (o *Orchestrator) ProcessPayment(ctx context.Context, req models.PaymentRequest) *models.PaymentResult {
	attempt := models.NewPaymentAttempt(req)
	return o.processAttempt(ctx, attempt)
}

func (o *Orchestrator) processAttempt(ctx context.Context, attempt *models.PaymentAttempt) *models.PaymentResult {
	if !o.inFlight.CompareAndSwap(false, true) {
		return o.fail(ctx, attempt, payerr.NewPaymentFailed(
			"이미 결제가 진행 중입니다.",
			"concurrent ProcessPayment rejected by single-flight guard",
		), time.Now())
	}
	defer o.inFlight.Store(false)

	service := string(attempt.Request.PaymentService)
	metrics.CheckoutAttempts.WithLabelValues(service).Inc()
	metrics.CheckoutInFlight.Inc()
	defer metrics.CheckoutInFlight.Dec()

	start := time.Now()
	attempt.State = models.AttemptLoading

	// SDK presence is checked before anything touches the network: an
	// absent SDK can never be fixed by a backend round trip.
	if !o.adapter.Ready() {
		return o.fail(ctx, attempt, payerr.NewSDKNotLoaded(), start)
	}

	session, err := o.api.CreateCheckoutSession(ctx, attempt.Request, uuid.NewString())
	if err != nil {
		return o.fail(ctx, attempt, payerr.From(err), start)
	}

	// The mapping is checked before the SDK call, not discovered through
	// a gateway error: a bad code would otherwise open a broken external
	// redirect.
	provider, ok := o.registry.Resolve(service)
	if !ok {
		return o.fail(ctx, attempt, payerr.NewInvalidPG(service), start)
	}

	cbResult, perr := o.adapter.RequestPay(ctx, provider, session, o.orderName(ctx, attempt.Request.PlanCode), o.opts.Buyer, attempt.Request.SuccessURL)
	if perr != nil {
		return o.fail(ctx, attempt, perr, start)
	}

	if !cbResult.Success {
		return o.fail(ctx, attempt, payerr.NewPaymentFailed(cbResult.ErrorMsg, "gateway reported failure"), start)
	}

	// The gateway's success flag is its local UI completion, not
	// settlement; the backend is the source of truth.
	if _, perr := o.reconciler.Confirm(ctx, session.PaymentID); perr != nil {
		return o.fail(ctx, attempt, perr, start)
	}

	attempt.State = models.AttemptSuccess
	attempt.LastError = nil

	duration := time.Since(start)
	metrics.CheckoutDuration.WithLabelValues(service).Observe(duration.Seconds())
	if o.opts.Obs != nil {
		o.opts.Obs.RecordCheckout(ctx, "success", "")
		o.opts.Obs.RecordCheckoutDuration(ctx, duration, "success")
	}

	o.log.Info("checkout succeeded", map[string]interface{}{
		"paymentId": session.PaymentID,
		"planCode":  attempt.Request.PlanCode,
		"service":   service,
	})

	return &models.PaymentResult{
		Success:     true,
		PaymentID:   session.PaymentID,
		RedirectURL: session.RedirectURL,
	}
}

func (o *Orchestrator) fail(ctx context.Context, attempt *models.PaymentAttempt, perr *payerr.Error, start time.Time) *models.PaymentResult {
	attempt.State = models.AttemptError
	attempt.LastError = perr

	service := string(attempt.Request.PaymentService)
	metrics.CheckoutFailures.WithLabelValues(service, string(perr.Code)).Inc()

	duration := time.Since(start)
	metrics.CheckoutDuration.WithLabelValues(service).Observe(duration.Seconds())
	if o.opts.Obs != nil {
		o.opts.Obs.RecordCheckout(ctx, "failure", string(perr.Code))
		o.opts.Obs.RecordCheckoutDuration(ctx, duration, "failure")
	}

	o.log.Warn("checkout failed", map[string]interface{}{
		"planCode":  attempt.Request.PlanCode,
		"service":   service,
		"errorCode": string(perr.Code),
		"category":  payerr.Category(perr.Code),
		"details":   perr.Details,
	})

	return &models.PaymentResult{
		Success:      false,
		ErrorCode:    string(perr.Code),
		ErrorMessage: perr.Message,
	}
}

func (o *Orchestrator) orderName(ctx context.Context, planCode string) string {
	if o.opts.Catalog == nil {
		return planCode
	}
	plan, err := o.opts.Catalog.Get(ctx, planCode)
	if err != nil || plan == nil {
		return planCode
	}
	return plan.Name
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
