package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrChargeNotFound  = errors.New("charge_not_found")
	ErrNotOneTimeTier  = errors.New("tier_not_one_time")
	ErrTierNotSellable = errors.New("tier_not_sellable")
)

type PurchaseRequest struct {
	TierID snowflake.ID `json:"tier_id,string"`
}

// ExternalUpdate carries the fields of a charge.* or payment_intent.* event.
type ExternalUpdate struct {
	PaymentIntentID string
	Status          string
	Error           string
}

type Service interface {
	// Purchase opens a payment intent for a one-time tier and records the
	// pending charge.
	Purchase(ctx context.Context, req PurchaseRequest) (Charge, error)

	GetByID(ctx context.Context, id snowflake.ID) (Charge, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Charge, error)

	// ApplyExternalUpdate mirrors the latest processor status onto the
	// matching charge. Unmatched payment intent ids are logged and ignored.
	ApplyExternalUpdate(ctx context.Context, update ExternalUpdate) error
}
