package models

import (
	"fmt"
	"time"
)

// SubscriptionStatus is the backend-owned membership status.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is the client's read/refresh view of the backend-owned
// membership record. At most one active record exists per user.
//
// autoRenew=false always means the subscription terminates at EndAt with
// no further billing; status=CANCELED together with autoRenew=false means
// the grace period has elapsed.
type Subscription struct {
	PlanCode      string             `json:"planCode"`
	PlanName      string             `json:"planName"`
	Status        SubscriptionStatus `json:"status"`
	AutoRenew     bool               `json:"autoRenew"`
	StartedAt     time.Time          `json:"startedAt"`
	EndAt         time.Time          `json:"endAt"`
	NextBillingAt time.Time          `json:"nextBillingAt"`
	NextPlanCode  string             `json:"nextPlanCode,omitempty"`
	NextPlanName  string             `json:"nextPlanName,omitempty"`
}

// Validate rejects states the backend must never hand out.
func (s *Subscription) Validate() error {
	if s.Status == SubscriptionCanceled && s.AutoRenew {
		return fmt.Errorf("subscription invariant violated: status=CANCELED with autoRenew=true")
	}
	if s.Status != SubscriptionActive && s.Status != SubscriptionCanceled {
		return fmt.Errorf("unknown subscription status %q", s.Status)
	}
	return nil
}

// HasScheduledChange reports whether a plan change (or downgrade target)
// is pending for the next billing date. Scheduling while one is pending
// is a conflict, not an additive operation.
func (s *Subscription) HasScheduledChange() bool {
	return s.NextPlanCode != ""
}

// IsActive reports whether the service is currently usable.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// ChangeType distinguishes deferred downgrades from immediately-paid
// upgrades.
type ChangeType string

const (
	ChangeUpgrade   ChangeType = "UPGRADE"
	ChangeDowngrade ChangeType = "DOWNGRADE"
)

// ChangePlanOutcome is the backend's answer to a change-plan request.
type ChangePlanOutcome struct {
	ChangeType      ChangeType `json:"changeType"`
	EffectiveDate   time.Time  `json:"effectiveDate"`
	ProrationAmount int64      `json:"prorationAmount,omitempty"`
}
