package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrTierNotFound   = errors.New("tier_not_found")
	ErrInvalidCadence = errors.New("invalid_cadence")
	ErrInvalidPrice   = errors.New("invalid_price")
	ErrNotPublished   = errors.New("tier_not_published")
)

type CreateTierRequest struct {
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	Cadence          Cadence `json:"cadence"`
	PriceCents       int64   `json:"price_cents"`
	AnnualPriceCents int64   `json:"annual_price_cents,omitempty"`
}

type UpdateTierRequest struct {
	Name             *string  `json:"name,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Cadence          *Cadence `json:"cadence,omitempty"`
	PriceCents       *int64   `json:"price_cents,omitempty"`
	AnnualPriceCents *int64   `json:"annual_price_cents,omitempty"`
}

// VersionContext is the input to the forking decision on a price edit.
// PriceChanged covers the cadence too: amount and billing interval live on
// the same price object, so either moving changes what subscribers pay.
type VersionContext struct {
	PriceChanged       bool
	AnnualPriceChanged bool
	HasSubscribers     bool
	Published          bool
}

// ShouldCreateNewVersion forks a new revision only when someone is actually
// grandfathered on the current terms: live subscribers on a published tier
// whose price is moving. Draft edits and no-subscriber edits stay in place.
func ShouldCreateNewVersion(vc VersionContext) bool {
	return vc.HasSubscribers && vc.Published && (vc.PriceChanged || vc.AnnualPriceChanged)
}

// SubscriberCounter reports whether any subscription is live on the given
// tier revision. Implemented by the subscription package; declared here so
// the dependency only points one way.
type SubscriberCounter interface {
	HasActiveSubscribers(ctx context.Context, tierID snowflake.ID, revision int) (bool, error)
}

type Service interface {
	Create(ctx context.Context, req CreateTierRequest) (Tier, error)
	GetByID(ctx context.Context, id snowflake.ID) (Tier, error)
	ListByOrg(ctx context.Context, orgID snowflake.ID) ([]Tier, error)

	// Update applies a tier edit, forking a new revision when the versioning
	// rule requires one.
	Update(ctx context.Context, id snowflake.ID, req UpdateTierRequest) (Tier, error)

	Publish(ctx context.Context, id snowflake.ID) (Tier, error)
	Unpublish(ctx context.Context, id snowflake.ID) (Tier, error)

	// SyncPrices lazily creates missing processor product/price objects for a
	// published tier on the vendor's connected account.
	SyncPrices(ctx context.Context, id snowflake.ID) (Tier, error)

	ListVersions(ctx context.Context, tierID snowflake.ID) ([]TierVersion, error)

	// VersionAt resolves the terms a subscriber on the given revision pays:
	// the live tier when current, the frozen snapshot otherwise.
	VersionAt(ctx context.Context, tierID snowflake.ID, revision int) (TierVersion, error)
}
