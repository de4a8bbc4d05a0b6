package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tierdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *tierdomain.Tier) error {
	return db.WithContext(ctx).Create(tier).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*tierdomain.Tier, error) {
	var tier tierdomain.Tier
	err := db.WithContext(ctx).Where("id = ?", id).First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]tierdomain.Tier, error) {
	var tiers []tierdomain.Tier
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&tiers).Error
	return tiers, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tier *tierdomain.Tier) error {
	return db.WithContext(ctx).Save(tier).Error
}

func (r *repo) InsertVersion(ctx context.Context, db *gorm.DB, version *tierdomain.TierVersion) error {
	return db.WithContext(ctx).Create(version).Error
}

func (r *repo) ListVersions(ctx context.Context, db *gorm.DB, tierID snowflake.ID) ([]tierdomain.TierVersion, error) {
	var versions []tierdomain.TierVersion
	err := db.WithContext(ctx).
		Where("tier_id = ?", tierID).
		Order("revision ASC").
		Find(&versions).Error
	return versions, err
}

func (r *repo) FindVersion(ctx context.Context, db *gorm.DB, tierID snowflake.ID, revision int) (*tierdomain.TierVersion, error) {
	var version tierdomain.TierVersion
	err := db.WithContext(ctx).
		Where("tier_id = ? AND revision = ?", tierID, revision).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}
