package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, org *Organization) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Organization, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Organization, error)
	FindByStripeAccountID(ctx context.Context, db *gorm.DB, accountID string) (*Organization, error)
	Update(ctx context.Context, db *gorm.DB, org *Organization) error

	InsertMember(ctx context.Context, db *gorm.DB, member *OrganizationMember) error
	FindMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]OrganizationMember, error)
	UpdateMemberRole(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, role Role) error
	DeleteMember(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) error

	InsertInvite(ctx context.Context, db *gorm.DB, invite *OrganizationInvite) error
	FindInvite(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*OrganizationInvite, error)
	UpdateInviteStatus(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, status InviteStatus) error
}
