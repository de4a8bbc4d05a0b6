package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// State is the stored lifecycle state. Only two values exist at rest;
// expiry is derived from activeUntil, never stored.
type State string

const (
	StateRenewing  State = "renewing"
	StateCancelled State = "cancelled"
)

// Status is the derived tri-state presented to callers.
type Status string

const (
	StatusRenewing  Status = "renewing"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// StatusFromProcessor reduces an external subscription status string to the
// tri-state. Anything live maps to renewing unless a pending cancellation is
// flagged; terminal statuses map to expired.
func StatusFromProcessor(status string, cancelAtPeriodEnd bool) Status {
	switch status {
	case "active", "trialing", "past_due":
		if cancelAtPeriodEnd {
			return StatusCancelled
		}
		return StatusRenewing
	case "canceled", "unpaid", "incomplete_expired":
		return StatusExpired
	default:
		return StatusCancelled
	}
}

type Subscription struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	OrgID        snowflake.ID `gorm:"index:idx_subscriptions_org_tier" json:"org_id,string"`
	TierID       snowflake.ID `gorm:"index:idx_subscriptions_org_tier" json:"tier_id,string"`
	TierRevision int          `gorm:"not null;default:1" json:"tier_revision"`

	State       State      `gorm:"size:16;not null" json:"state"`
	Active      bool       `gorm:"index;not null;default:true" json:"active"`
	ActiveUntil *time.Time `json:"active_until,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	StripeSubscriptionID *string `gorm:"uniqueIndex;size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// Status derives the presented status from stored state and paid-through time.
func (s Subscription) Status(now time.Time) Status {
	if s.State == StateCancelled {
		if s.ActiveUntil != nil && s.ActiveUntil.After(now) {
			return StatusCancelled
		}
		return StatusExpired
	}
	return StatusRenewing
}

// InPaidPeriod reports whether access is still paid for.
func (s Subscription) InPaidPeriod(now time.Time) bool {
	return s.ActiveUntil != nil && s.ActiveUntil.After(now)
}
