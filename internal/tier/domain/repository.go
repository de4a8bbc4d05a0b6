package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *Tier) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tier, error)
	ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Tier, error)
	Update(ctx context.Context, db *gorm.DB, tier *Tier) error

	InsertVersion(ctx context.Context, db *gorm.DB, version *TierVersion) error
	ListVersions(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]TierVersion, error)
	FindVersion(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int) (*TierVersion, error)
}
