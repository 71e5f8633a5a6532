// Package pricing holds the pluggable proration strategies applied on
// mid-cycle plan change.
package pricing

import (
	"time"

	"saas-billing/internal/domain/model"
)

// Strategy computes the credit (minor units) an account earns for the unused
// remainder of an active subscription when switching plans mid-cycle.
type Strategy interface {
	Credit(sub *model.Subscription, now time.Time) int64
}

// DaysRemaining prorates the current period's obligation linearly over the
// days left in it.
type DaysRemaining struct{}

func (DaysRemaining) Credit(sub *model.Subscription, now time.Time) int64 {
	if sub == nil || sub.Status != model.SubscriptionStatusActive || sub.StartAt == nil || sub.EndAt == nil {
		return 0
	}
	if !now.Before(*sub.EndAt) || !now.After(*sub.StartAt) {
		return 0
	}
	periodDays := int64(sub.EndAt.Sub(*sub.StartAt).Hours() / 24)
	remainingDays := int64(sub.EndAt.Sub(now).Hours() / 24)
	if periodDays <= 0 || remainingDays <= 0 {
		return 0
	}
	return sub.Snapshot.FinalAmount * remainingDays / periodDays
}

// None disables proration: plan changes pay full price.
type None struct{}

func (None) Credit(*model.Subscription, time.Time) int64 { return 0 }
