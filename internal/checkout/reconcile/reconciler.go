// Package reconcile confirms the authoritative outcome of a payment with
// the backend after the gateway's client-side callback. The SDK's success
// flag reflects the gateway's local UI completion, not settlement; only
// the backend's status counts.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"

	"github.com/cenkalti/backoff/v4"
)

// StatusAPI is the slice of the backend client the reconciler needs.
type StatusAPI interface {
	PaymentStatus(ctx context.Context, paymentID string) (*models.PaymentStatusResult, error)
}

type Reconciler struct {
	api       StatusAPI
	interval  time.Duration
	maxChecks int
	log       logger.Logger
}

func New(api StatusAPI, interval time.Duration, maxChecks int, log logger.Logger) *Reconciler {
	if maxChecks < 1 {
		maxChecks = 1
	}
	return &Reconciler{
		api:       api,
		interval:  interval,
		maxChecks: maxChecks,
		log:       log.WithFields(map[string]interface{}{"component": "status-reconciler"}),
	}
}

// Confirm re-queries the status endpoint on a constant schedule until a
// terminal status arrives or the budget runs out. The endpoint is
// idempotent, so repeating is safe. An exhausted budget or a transport
// failure is STATUS_CHECK_FAILED, never PAYMENT_FAILED: the gateway may
// have succeeded, and the UI must report "unconfirmed", not a failure it
// cannot prove.
func (r *Reconciler) Confirm(ctx context.Context, paymentID string) (*models.PaymentStatusResult, *payerr.Error) {
	var confirmed *models.PaymentStatusResult
	var terminal *payerr.Error

	operation := func() error {
		result, err := r.api.PaymentStatus(ctx, paymentID)
		if err != nil {
			r.log.Warn("status check failed, will re-query", map[string]interface{}{
				"paymentId": paymentID,
				"error":     err.Error(),
			})
			return err
		}

		switch result.Status {
		case models.PaymentSucceeded:
			confirmed = result
			return nil
		case models.PaymentFailed:
			terminal = payerr.NewPaymentFailed(result.Message, fmt.Sprintf("reasonCode: %s", result.ReasonCode))
			return backoff.Permanent(terminal)
		default:
			return fmt.Errorf("payment %s still pending", paymentID)
		}
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.interval), uint64(r.maxChecks-1)),
		ctx,
	)

	if err := backoff.Retry(operation, schedule); err != nil {
		if terminal != nil {
			r.log.Info("payment confirmed failed", map[string]interface{}{"paymentId": paymentID})
			return nil, terminal
		}
		return nil, payerr.NewStatusCheckFailed(err)
	}

	r.log.Info("payment confirmed", map[string]interface{}{
		"paymentId":  paymentID,
		"providerId": confirmed.ProviderPaymentID,
	})
	return confirmed, nil
}
