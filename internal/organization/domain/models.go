// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Role is the coarse membership role used by route authorization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// PlanType is the platform billing plan a vendor organization is on.
type PlanType string

const (
	PlanFree PlanType = "free"
	PlanPro  PlanType = "pro"
)

// Organization represents a tenant. Vendor organizations sell tiers; customer
// organizations buy them. Both use the same record. Organizations are never
// hard-deleted in normal flow.
type Organization struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Slug        string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	OwnerUserID snowflake.ID `gorm:"not null;index" json:"owner_user_id"`
	PlanType    PlanType     `gorm:"type:text;not null;default:'free'" json:"plan_type"`

	// Connected payment-processor account for selling, plus capability
	// mirrors refreshed by account.updated events.
	StripeAccountID *string `gorm:"type:text;column:stripe_account_id" json:"stripe_account_id,omitempty"`
	ChargesEnabled  bool    `gorm:"not null;default:false" json:"charges_enabled"`
	PayoutsEnabled  bool    `gorm:"not null;default:false" json:"payouts_enabled"`

	// Processor customer object used when this organization buys tiers.
	StripeCustomerID *string `gorm:"type:text;column:stripe_customer_id" json:"stripe_customer_id,omitempty"`

	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

// InviteStatus tracks the lifecycle of a pending invite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
)

// OrganizationInvite tracks a pending invite to an organization.
type OrganizationInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	Status    InviteStatus `gorm:"type:text;not null" json:"status"`
	InvitedBy snowflake.ID `gorm:"column:invited_by;not null;index" json:"invited_by"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }
