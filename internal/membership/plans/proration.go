package plans

import (
	"fmt"
	"math"
	"time"

	"membership-checkout/internal/models"
)

// RemainingFraction is the share of the current billing period that is
// still unused at the given instant. The period is the month preceding
// nextBillingAt; the result is clamped to [0, 1] so clock skew around
// the period boundaries can never produce a negative or inflated charge.
func RemainingFraction(now, nextBillingAt time.Time) float64 {
	periodStart := nextBillingAt.AddDate(0, -1, 0)
	period := nextBillingAt.Sub(periodStart)
	if period <= 0 {
		return 0
	}
	fraction := float64(nextBillingAt.Sub(now)) / float64(period)
	return math.Min(1, math.Max(0, fraction))
}

// Quote computes the upfront charge for switching from current to target
// mid-cycle: the price difference scaled by the unused share of the
// period, floored to whole KRW. Only upgrades are quoted; a downgrade
// takes effect at the next billing date and owes nothing now.
func Quote(current, target models.Plan, now, nextBillingAt time.Time) (*models.ProrationQuote, error) {
	if !current.IsUpgradeTo(target) {
		return nil, fmt.Errorf("no proration for %s -> %s: not an upgrade", current.Code, target.Code)
	}

	fraction := RemainingFraction(now, nextBillingAt)
	diff := target.MonthlyPrice - current.MonthlyPrice
	amount := int64(math.Floor(float64(diff) * fraction))

	return &models.ProrationQuote{
		CurrentPlanCode:   current.Code,
		TargetPlanCode:    target.Code,
		PriceDifference:   diff,
		RemainingFraction: fraction,
		Amount:            amount,
	}, nil
}
