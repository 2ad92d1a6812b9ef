package models

// Plan identifies a subscription tier. Immutable reference data fetched
// from the backend; prices are integer KRW.
type Plan struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	MonthlyPrice int64  `json:"monthlyPrice"`
	MaxStreams   int    `json:"maxStreams"`
	MaxQuality   string `json:"maxQuality"`
}

// IsUpgradeTo reports whether switching from p to target grants more value
// immediately, which is what triggers an upfront proration charge.
func (p Plan) IsUpgradeTo(target Plan) bool {
	return target.MonthlyPrice > p.MonthlyPrice
}

// ProrationQuote is the derived partial charge for a mid-cycle upgrade.
// Never stored; recomputed at quote time.
type ProrationQuote struct {
	CurrentPlanCode   string  `json:"currentPlanCode"`
	TargetPlanCode    string  `json:"targetPlanCode"`
	PriceDifference   int64   `json:"priceDifference"`
	RemainingFraction float64 `json:"remainingFraction"`
	Amount            int64   `json:"amount"`
}
