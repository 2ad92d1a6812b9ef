package checkout

import (
	"context"
	"time"

	"membership-checkout/internal/common/metrics"
	"membership-checkout/internal/common/payerr"
	"membership-checkout/internal/models"
)

// DefaultMaxRetries bounds a retry chain when the caller passes 0.
const DefaultMaxRetries = 3

// ProcessPaymentWithRetry retries the entire ProcessPayment flow on any
// non-success outcome, backing off attempt × BaseDelay between tries.
// Deterministic failures (SDK_NOT_LOADED, INVALID_PG) stop the chain
// immediately: repeating them cannot change the outcome. Each code also
// carries its own attempt budget (payerr.RetryCount); the chain stops at
// whichever of maxRetries and that budget is lower. The returned attempt
// exposes the retry count for UI feedback.
func (o *Orchestrator) ProcessPaymentWithRetry(ctx context.Context, req models.PaymentRequest, maxRetries int) (*models.PaymentResult, *models.PaymentAttempt) {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}

	attempt := models.NewPaymentAttempt(req)
	var result *models.PaymentResult

	for i := 1; i <= maxRetries; i++ {
		attempt.RetryCount = i - 1
		result = o.processAttempt(ctx, attempt)
		if result.Success {
			return result, attempt
		}

		code := payerr.Code(result.ErrorCode)
		if !payerr.IsRetryable(code) {
			o.log.Info("not retrying deterministic failure", map[string]interface{}{
				"errorCode": result.ErrorCode,
				"attempt":   i,
			})
			return result, attempt
		}

		if i >= min(maxRetries, payerr.RetryCount(code)) {
			break
		}

		metrics.CheckoutRetries.Inc()
		if o.opts.OnRetry != nil {
			o.opts.OnRetry(i, result)
		}

		delay := time.Duration(i) * o.opts.BaseDelay
		o.log.Info("retrying checkout", map[string]interface{}{
			"attempt":    i,
			"maxRetries": maxRetries,
			"delay":      delay.String(),
			"errorCode":  result.ErrorCode,
		})
		if err := o.sleep(ctx, delay); err != nil {
			return result, attempt
		}
	}

	return result, attempt
}
