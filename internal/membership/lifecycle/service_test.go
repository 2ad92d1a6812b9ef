package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"membership-checkout/internal/common/logger"
	"membership-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	sub *models.Subscription

	cancelCalls  int
	cancelKeys   []string
	resumeCalls  int
	changeCalls  int
	changeKeys   []string
	withdrawCall int

	changeOutcome *models.ChangePlanOutcome
	err           error
}

func (f *fakeAPI) GetSubscription(ctx context.Context) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.sub
	return &cp, nil
}

func (f *fakeAPI) CancelSubscription(ctx context.Context, idempotencyKey string) (*models.Subscription, error) {
	f.cancelCalls++
	f.cancelKeys = append(f.cancelKeys, idempotencyKey)
	f.sub.AutoRenew = false
	cp := *f.sub
	return &cp, nil
}

func (f *fakeAPI) ResumeSubscription(ctx context.Context) (*models.Subscription, error) {
	f.resumeCalls++
	f.sub.AutoRenew = true
	f.sub.Status = models.SubscriptionActive
	cp := *f.sub
	return &cp, nil
}

func (f *fakeAPI) ChangePlan(ctx context.Context, newPlanCode, idempotencyKey string) (*models.ChangePlanOutcome, error) {
	f.changeCalls++
	f.changeKeys = append(f.changeKeys, idempotencyKey)
	return f.changeOutcome, nil
}

func (f *fakeAPI) CancelScheduledChange(ctx context.Context) (*models.Subscription, error) {
	f.withdrawCall++
	f.sub.NextPlanCode = ""
	f.sub.NextPlanName = ""
	cp := *f.sub
	return &cp, nil
}

type fakeCheckouter struct {
	calls  int
	lastRq models.PaymentRequest
	result *models.PaymentResult
}

func (f *fakeCheckouter) ProcessPaymentWithRetry(ctx context.Context, req models.PaymentRequest, maxRetries int) (*models.PaymentResult, *models.PaymentAttempt) {
	f.calls++
	f.lastRq = req
	return f.result, models.NewPaymentAttempt(req)
}

type fakeCatalog struct {
	plans map[string]models.Plan
}

func (f *fakeCatalog) Get(ctx context.Context, code string) (*models.Plan, error) {
	p, ok := f.plans[code]
	if !ok {
		return nil, fmt.Errorf("unknown plan code: %s", code)
	}
	return &p, nil
}

func activeSub() *models.Subscription {
	return &models.Subscription{
		PlanCode:      "BASIC",
		PlanName:      "베이직",
		Status:        models.SubscriptionActive,
		AutoRenew:     true,
		NextBillingAt: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		EndAt:         time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{plans: map[string]models.Plan{
		"BASIC":   {Code: "BASIC", MonthlyPrice: 9900},
		"PREMIUM": {Code: "PREMIUM", MonthlyPrice: 14900},
	}}
}

func newTestService(t *testing.T, api *fakeAPI, checkout *fakeCheckouter) *Service {
	s := New(api, checkout, testCatalog(), logger.NewTestLogger(t))
	// Halfway through the 2026-08-15 .. 2026-09-15 period.
	s.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return s
}

// ==========================
// Cancel / Resume
// ==========================

func TestCancel(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	sub, err := s.Cancel(context.Background(), NewIntent())
	require.NoError(t, err)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, models.SubscriptionActive, sub.Status, "service stays usable until the period ends")
	assert.Equal(t, 1, api.cancelCalls)
}

func TestCancel_AlreadyWindingDown(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.AutoRenew = false
	s := newTestService(t, api, nil)

	sub, err := s.Cancel(context.Background(), NewIntent())
	require.NoError(t, err)
	assert.False(t, sub.AutoRenew)
	assert.Zero(t, api.cancelCalls, "a second cancel is absorbed locally")
}

func TestCancel_NotActive(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.Status = models.SubscriptionCanceled
	api.sub.AutoRenew = false
	s := newTestService(t, api, nil)

	_, err := s.Cancel(context.Background(), NewIntent())
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestCancel_IntentKeyReusedAcrossRetries(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	intent := NewIntent()
	_, err := s.Cancel(context.Background(), intent)
	require.NoError(t, err)

	// Simulate the caller retrying the same user action.
	api.sub.AutoRenew = true
	_, err = s.Cancel(context.Background(), intent)
	require.NoError(t, err)

	require.Len(t, api.cancelKeys, 2)
	assert.Equal(t, api.cancelKeys[0], api.cancelKeys[1])
}

func TestResume_UndoesCancelBeforeItTakesEffect(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	_, err := s.Cancel(context.Background(), NewIntent())
	require.NoError(t, err)

	sub, err := s.Resume(context.Background())
	require.NoError(t, err)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestResume_CanceledRecordStillReachesBackend(t *testing.T) {
	// autoRenew=false is the only resume precondition; a record whose
	// grace period already elapsed is handed to the backend, which
	// decides whether reactivation is possible.
	api := &fakeAPI{sub: activeSub()}
	api.sub.Status = models.SubscriptionCanceled
	api.sub.AutoRenew = false
	s := newTestService(t, api, nil)

	sub, err := s.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.resumeCalls)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
}

func TestResume_NothingToResume(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	_, err := s.Resume(context.Background())
	assert.ErrorIs(t, err, ErrAutoRenewOn)
	assert.Zero(t, api.resumeCalls)
}

// ==========================
// Plan changes
// ==========================

func TestChangePlan_Upgrade(t *testing.T) {
	api := &fakeAPI{
		sub: activeSub(),
		changeOutcome: &models.ChangePlanOutcome{
			ChangeType:      models.ChangeUpgrade,
			ProrationAmount: 2500,
		},
	}
	s := newTestService(t, api, nil)

	outcome, err := s.ChangePlan(context.Background(), "PREMIUM", NewIntent())
	require.NoError(t, err)
	assert.Equal(t, models.ChangeUpgrade, outcome.ChangeType)
	assert.Equal(t, int64(2500), outcome.ProrationAmount)
}

func TestChangePlan_SamePlan(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	_, err := s.ChangePlan(context.Background(), "BASIC", NewIntent())
	assert.ErrorIs(t, err, ErrSamePlan)
	assert.Zero(t, api.changeCalls)
}

func TestChangePlan_SecondScheduleConflicts(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.NextPlanCode = "BASIC"
	s := newTestService(t, api, nil)

	_, err := s.ChangePlan(context.Background(), "PREMIUM", NewIntent())
	assert.ErrorIs(t, err, ErrChangePending)
	assert.Zero(t, api.changeCalls)
}

func TestCancelScheduledChange(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.NextPlanCode = "BASIC"
	s := newTestService(t, api, nil)

	sub, err := s.CancelScheduledChange(context.Background())
	require.NoError(t, err)
	assert.False(t, sub.HasScheduledChange())
}

func TestCancelScheduledChange_NothingScheduled(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)

	_, err := s.CancelScheduledChange(context.Background())
	assert.ErrorIs(t, err, ErrNothingScheduled)
}

// ==========================
// Proration
// ==========================

func TestQuoteProration_HalfPeriod(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	s := newTestService(t, api, nil)
	// Pin now to exactly half the period for a round number.
	s.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }

	quote, err := s.QuoteProration(context.Background(), "PREMIUM")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), quote.PriceDifference)
	assert.Equal(t, int64(2500), quote.Amount)
}

func TestQuoteProration_DowngradeNeverQuotes(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.PlanCode = "PREMIUM"
	s := newTestService(t, api, nil)

	_, err := s.QuoteProration(context.Background(), "BASIC")
	assert.ErrorIs(t, err, ErrNotUpgrade)
}

func TestPayProration(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	checkout := &fakeCheckouter{result: &models.PaymentResult{Success: true, PaymentID: "pay_pro"}}
	s := newTestService(t, api, checkout)

	result, err := s.PayProration(context.Background(), "PREMIUM", models.ServiceKakaoPay)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, checkout.calls)
	assert.True(t, checkout.lastRq.Proration, "the session must be marked as a partial charge")
	assert.Equal(t, "PREMIUM", checkout.lastRq.PlanCode)
}

func TestPayProration_FailurePassedThrough(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	checkout := &fakeCheckouter{result: &models.PaymentResult{
		Success:      false,
		ErrorCode:    "NETWORK_ERROR",
		ErrorMessage: "네트워크 오류가 발생했습니다.",
	}}
	s := newTestService(t, api, checkout)

	result, err := s.PayProration(context.Background(), "PREMIUM", models.ServiceKakaoPay)
	require.NoError(t, err, "a failed payment is a result, not a Go error")
	assert.False(t, result.Success)
	assert.Equal(t, "NETWORK_ERROR", result.ErrorCode)
}

func TestPayProration_ExpiredPeriodSkipsCheckout(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	checkout := &fakeCheckouter{result: &models.PaymentResult{Success: true}}
	s := newTestService(t, api, checkout)
	s.now = func() time.Time { return api.sub.NextBillingAt.Add(time.Hour) }

	result, err := s.PayProration(context.Background(), "PREMIUM", models.ServiceKakaoPay)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, checkout.calls, "nothing to charge, nothing to pay")
}

func TestPayProration_DowngradeRejectedBeforeCheckout(t *testing.T) {
	api := &fakeAPI{sub: activeSub()}
	api.sub.PlanCode = "PREMIUM"
	checkout := &fakeCheckouter{result: &models.PaymentResult{Success: true}}
	s := newTestService(t, api, checkout)

	_, err := s.PayProration(context.Background(), "BASIC", models.ServiceKakaoPay)
	assert.ErrorIs(t, err, ErrNotUpgrade)
	assert.Zero(t, checkout.calls)
}
