package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByStripeID(ctx context.Context, db *gorm.DB, stripeID string) (*Subscription, error)
	FindActive(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID) (*Subscription, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Subscription, error)
	ListByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error

	CountActiveAtRevision(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int) (int64, error)
	DeactivateExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
