package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"gorm.io/gorm"
)

// counter answers the versioning policy's "does anyone live on this
// revision" question straight from the repository, keeping the dependency
// between the tier and subscription services one-directional.
type counter struct {
	db   *gorm.DB
	repo subscriptiondomain.Repository
}

func ProvideSubscriberCounter(db *gorm.DB, repo subscriptiondomain.Repository) tierdomain.SubscriberCounter {
	return &counter{db: db, repo: repo}
}

func (c *counter) HasActiveSubscribers(ctx context.Context, tierID snowflake.ID, revision int) (bool, error) {
	n, err := c.repo.CountActiveAtRevision(ctx, c.db, tierID, revision)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
