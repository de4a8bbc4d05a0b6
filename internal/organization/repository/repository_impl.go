package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() organizationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, org *organizationdomain.Organization) error {
	return db.WithContext(ctx).Create(org).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) FindByStripeAccountID(ctx context.Context, db *gorm.DB, accountID string) (*organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := db.WithContext(ctx).Where("stripe_account_id = ?", accountID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, org *organizationdomain.Organization) error {
	return db.WithContext(ctx).Save(org).Error
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *organizationdomain.OrganizationMember) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*organizationdomain.OrganizationMember, error) {
	var member organizationdomain.OrganizationMember
	err := db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repo) ListMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]organizationdomain.OrganizationMember, error) {
	var members []organizationdomain.OrganizationMember
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repo) UpdateMemberRole(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, role organizationdomain.Role) error {
	return db.WithContext(ctx).
		Model(&organizationdomain.OrganizationMember{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Update("role", role).Error
}

func (r *repo) DeleteMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Delete(&organizationdomain.OrganizationMember{}).Error
}

func (r *repo) InsertInvite(ctx context.Context, db *gorm.DB, invite *organizationdomain.OrganizationInvite) error {
	return db.WithContext(ctx).Create(invite).Error
}

func (r *repo) FindInvite(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*organizationdomain.OrganizationInvite, error) {
	var invite organizationdomain.OrganizationInvite
	err := db.WithContext(ctx).Where("id = ?", inviteID).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *repo) UpdateInviteStatus(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, status organizationdomain.InviteStatus) error {
	return db.WithContext(ctx).
		Model(&organizationdomain.OrganizationInvite{}).
		Where("id = ?", inviteID).
		Update("status", status).Error
}
