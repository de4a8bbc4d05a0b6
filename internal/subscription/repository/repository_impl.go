package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindByStripeID(ctx context.Context, db *gorm.DB, stripeID string) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ? AND tier_id = ? AND active = ?", orgID, tierID, true).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *repo) ListByTier(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var subs []subscriptiondomain.Subscription
	err := db.WithContext(ctx).
		Where("tier_id = ?", tierID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) CountActiveAtRevision(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("tier_id = ? AND tier_revision = ? AND active = ?", tierID, revision, true).
		Count(&count).Error
	return count, err
}

// DeactivateExpired only ever touches cancelled rows whose paid period has
// lapsed; renewing rows are never in its predicate.
func (r *repo) DeactivateExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("state = ? AND active = ? AND active_until < ?",
			subscriptiondomain.StateCancelled, true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}
