// Package lifecycle applies the subscription state machine on top of the
// backend API: cancel, resume, plan changes, and the proration payment an
// upgrade requires. Preconditions are checked against a fresh
// subscription read so stale local state cannot drive an invalid request.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/common/metrics"
	"membership-checkout/internal/membership/plans"
	"membership-checkout/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotActive rejects operations that require a live subscription.
	ErrNotActive = errors.New("subscription is not active")
	// ErrAutoRenewOn rejects a resume when nothing was canceled.
	ErrAutoRenewOn = errors.New("subscription is not scheduled for cancellation")
	// ErrSamePlan rejects a change to the plan already held.
	ErrSamePlan = errors.New("already subscribed to this plan")
	// ErrChangePending rejects scheduling a second change while one is
	// pending. The existing change must be canceled first.
	ErrChangePending = errors.New("a plan change is already scheduled")
	// ErrNothingScheduled rejects canceling a change that does not exist.
	ErrNothingScheduled = errors.New("no plan change is scheduled")
	// ErrNotUpgrade rejects a proration payment for a non-upgrade.
	ErrNotUpgrade = errors.New("proration applies to upgrades only")
)

// MembershipAPI is the slice of the backend client the service needs.
type MembershipAPI interface {
	GetSubscription(ctx context.Context) (*models.Subscription, error)
	CancelSubscription(ctx context.Context, idempotencyKey string) (*models.Subscription, error)
	ResumeSubscription(ctx context.Context) (*models.Subscription, error)
	ChangePlan(ctx context.Context, newPlanCode, idempotencyKey string) (*models.ChangePlanOutcome, error)
	CancelScheduledChange(ctx context.Context) (*models.Subscription, error)
}

// Checkouter runs the secondary payment an upgrade's proration needs.
type Checkouter interface {
	ProcessPaymentWithRetry(ctx context.Context, req models.PaymentRequest, maxRetries int) (*models.PaymentResult, *models.PaymentAttempt)
}

// PlanSource resolves plan codes into priced plans.
type PlanSource interface {
	Get(ctx context.Context, code string) (*models.Plan, error)
}

// Intent carries one idempotency key across retries of the same user
// action. A retried cancel reuses the key, so the backend can collapse
// duplicates; a new user action mints a new Intent.
type Intent struct {
	Key string
}

func NewIntent() Intent {
	return Intent{Key: uuid.NewString()}
}

// Service drives subscription lifecycle operations.
type Service struct {
	api      MembershipAPI
	checkout Checkouter
	catalog  PlanSource
	now      func() time.Time
	log      logger.Logger
}

func New(api MembershipAPI, checkout Checkouter, catalog PlanSource, log logger.Logger) *Service {
	return &Service{
		api:      api,
		checkout: checkout,
		catalog:  catalog,
		now:      time.Now,
		log:      log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

// Current returns a validated fresh view of the subscription.
func (s *Service) Current(ctx context.Context) (*models.Subscription, error) {
	return s.api.GetSubscription(ctx)
}

// Cancel turns auto-renewal off. The subscription stays usable until
// EndAt; nothing is refunded. Canceling an already-canceled subscription
// is rejected locally rather than bounced off the backend.
func (s *Service) Cancel(ctx context.Context, intent Intent) (*models.Subscription, error) {
	sub, err := s.api.GetSubscription(ctx)
	if err != nil {
		return nil, s.record("cancel", err)
	}
	if !sub.IsActive() {
		return nil, s.record("cancel", ErrNotActive)
	}
	if !sub.AutoRenew {
		// Already winding down. Return the current state instead of
		// issuing a redundant request.
		return sub, s.record("cancel", nil)
	}

	updated, err := s.api.CancelSubscription(ctx, intent.Key)
	if err != nil {
		return nil, s.record("cancel", err)
	}
	s.log.Info("auto-renewal disabled", map[string]interface{}{
		"planCode": updated.PlanCode,
		"endAt":    updated.EndAt.Format(time.RFC3339),
	})
	return updated, s.record("cancel", nil)
}

// Resume re-enables auto-renewal, undoing a cancel. The only
// precondition is autoRenew=false; status does not matter, so a record
// that already flipped to CANCELED is still offered to the backend,
// which arbitrates whether reactivation is possible.
func (s *Service) Resume(ctx context.Context) (*models.Subscription, error) {
	sub, err := s.api.GetSubscription(ctx)
	if err != nil {
		return nil, s.record("resume", err)
	}
	if sub.AutoRenew {
		return nil, s.record("resume", ErrAutoRenewOn)
	}

	updated, err := s.api.ResumeSubscription(ctx)
	if err != nil {
		return nil, s.record("resume", err)
	}
	s.log.Info("auto-renewal restored", map[string]interface{}{"planCode": updated.PlanCode})
	return updated, s.record("resume", nil)
}

// ChangePlan requests a switch to newPlanCode. The backend classifies it:
// an upgrade takes effect immediately and may owe a proration charge; a
// downgrade is scheduled for the next billing date. Only one change may
// be pending at a time.
func (s *Service) ChangePlan(ctx context.Context, newPlanCode string, intent Intent) (*models.ChangePlanOutcome, error) {
	sub, err := s.api.GetSubscription(ctx)
	if err != nil {
		return nil, s.record("change_plan", err)
	}
	if !sub.IsActive() {
		return nil, s.record("change_plan", ErrNotActive)
	}
	if sub.PlanCode == newPlanCode {
		return nil, s.record("change_plan", ErrSamePlan)
	}
	if sub.HasScheduledChange() {
		return nil, s.record("change_plan", fmt.Errorf("%w: %s takes effect at the next billing date", ErrChangePending, sub.NextPlanCode))
	}

	outcome, err := s.api.ChangePlan(ctx, newPlanCode, intent.Key)
	if err != nil {
		return nil, s.record("change_plan", err)
	}
	s.log.Info("plan change accepted", map[string]interface{}{
		"from":       sub.PlanCode,
		"to":         newPlanCode,
		"changeType": string(outcome.ChangeType),
	})
	return outcome, s.record("change_plan", nil)
}

// CancelScheduledChange withdraws a pending downgrade so the current
// plan continues past the next billing date.
func (s *Service) CancelScheduledChange(ctx context.Context) (*models.Subscription, error) {
	sub, err := s.api.GetSubscription(ctx)
	if err != nil {
		return nil, s.record("cancel_change", err)
	}
	if !sub.HasScheduledChange() {
		return nil, s.record("cancel_change", ErrNothingScheduled)
	}

	updated, err := s.api.CancelScheduledChange(ctx)
	if err != nil {
		return nil, s.record("cancel_change", err)
	}
	s.log.Info("scheduled change withdrawn", map[string]interface{}{
		"kept":      updated.PlanCode,
		"abandoned": sub.NextPlanCode,
	})
	return updated, s.record("cancel_change", nil)
}

// QuoteProration computes the upfront charge an upgrade to targetCode
// would owe right now.
func (s *Service) QuoteProration(ctx context.Context, targetCode string) (*models.ProrationQuote, error) {
	sub, err := s.api.GetSubscription(ctx)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, ErrNotActive
	}

	current, err := s.catalog.Get(ctx, sub.PlanCode)
	if err != nil {
		return nil, err
	}
	target, err := s.catalog.Get(ctx, targetCode)
	if err != nil {
		return nil, err
	}
	if !current.IsUpgradeTo(*target) {
		return nil, ErrNotUpgrade
	}

	return plans.Quote(*current, *target, s.now(), sub.NextBillingAt)
}

// PayProration runs the secondary checkout that settles an upgrade's
// partial charge. The new plan's benefits apply as soon as the payment
// is confirmed.
func (s *Service) PayProration(ctx context.Context, targetCode string, service models.PaymentService) (*models.PaymentResult, error) {
	quote, err := s.QuoteProration(ctx, targetCode)
	if err != nil {
		return nil, s.record("pay_proration", err)
	}
	if quote.Amount == 0 {
		// Nothing left of the period to charge for.
		s.record("pay_proration", nil)
		return &models.PaymentResult{Success: true}, nil
	}

	result, attempt := s.checkout.ProcessPaymentWithRetry(ctx, models.PaymentRequest{
		PlanCode:       targetCode,
		PaymentService: service,
		Proration:      true,
	}, 0)
	if !result.Success {
		s.log.Warn("proration payment failed", map[string]interface{}{
			"targetPlan": targetCode,
			"errorCode":  result.ErrorCode,
			"retries":    attempt.RetryCount,
		})
		s.record("pay_proration", errors.New(result.ErrorCode))
		return result, nil
	}

	s.log.Info("proration settled", map[string]interface{}{
		"targetPlan": targetCode,
		"amount":     quote.Amount,
	})
	s.record("pay_proration", nil)
	return result, nil
}

// record increments the lifecycle metric and passes the error through so
// call sites can return in one line.
func (s *Service) record(op string, err error) error {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.LifecycleOps.WithLabelValues(op, outcome).Inc()
	return err
}
