package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrAlreadySubscribed    = errors.New("already_subscribed")
	ErrNotCancellable       = errors.New("subscription_not_cancellable")
	ErrNotReactivatable     = errors.New("subscription_not_reactivatable")
	ErrTierNotSellable      = errors.New("tier_not_sellable")
	ErrOneTimeTier          = errors.New("tier_is_one_time")
)

type CreateSubscriptionRequest struct {
	TierID snowflake.ID `json:"tier_id,string"`
	Annual bool         `json:"annual,omitempty"`
}

// ExternalUpdate carries the fields of a customer.subscription.* event the
// reducer consumes. Deleted marks the terminal deletion event.
type ExternalUpdate struct {
	StripeSubscriptionID string
	Status               string
	CancelAtPeriodEnd    bool
	CurrentPeriodEnd     time.Time
	Deleted              bool
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	GetByID(ctx context.Context, id snowflake.ID) (Subscription, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Subscription, error)
	ListByTier(ctx context.Context, tierID snowflake.ID) ([]Subscription, error)

	Cancel(ctx context.Context, id snowflake.ID) (Subscription, error)
	Reactivate(ctx context.Context, id snowflake.ID) (Subscription, error)

	// ApplyExternalUpdate reconciles a webhook event onto the local record.
	// Unknown subscription ids are logged and ignored.
	ApplyExternalUpdate(ctx context.Context, update ExternalUpdate) error

	// DeactivateExpired flips active=false on cancelled subscriptions whose
	// paid period has lapsed. Returns the number of rows touched.
	DeactivateExpired(ctx context.Context) (int64, error)

	HasActiveSubscribers(ctx context.Context, tierID snowflake.ID, revision int) (bool, error)
}
