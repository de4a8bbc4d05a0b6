package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrOrganizationNotFound = errors.New("organization_not_found")
	ErrSlugTaken            = errors.New("slug_taken")
	ErrNotOwner             = errors.New("not_owner")
	ErrMemberExists         = errors.New("member_exists")
	ErrMemberNotFound       = errors.New("member_not_found")
	ErrInviteNotFound       = errors.New("invite_not_found")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrOwnerRemoval         = errors.New("owner_cannot_be_removed")
	ErrNoConnectedAccount   = errors.New("no_connected_account")
)

type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	OwnerUserID snowflake.ID
}

type UpdateOrganizationRequest struct {
	Name     *string   `json:"name,omitempty"`
	PlanType *PlanType `json:"plan_type,omitempty"`
}

type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// CanSellResult is the best-effort answer to "can this vendor take payment".
// Reason codes are populated instead of propagating processor errors on the
// read path.
type CanSellResult struct {
	CanSell bool     `json:"can_sell"`
	Reasons []string `json:"reasons,omitempty"`
}

const (
	ReasonNoAccount       = "no_connected_account"
	ReasonChargesDisabled = "charges_disabled"
	ReasonPayoutsDisabled = "payouts_disabled"
)

// AccountUpdate mirrors the capability fields of an account.updated event.
type AccountUpdate struct {
	AccountID      string
	ChargesEnabled bool
	PayoutsEnabled bool
}

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (Organization, error)
	GetBySlug(ctx context.Context, slug string) (Organization, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateOrganizationRequest) (Organization, error)

	ListMembers(ctx context.Context, orgID snowflake.ID) ([]OrganizationMember, error)
	RoleOf(ctx context.Context, orgID, userID snowflake.ID) (Role, error)
	UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role Role) error
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
	TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID snowflake.ID) error

	InviteMember(ctx context.Context, orgID, invitedBy snowflake.ID, req InviteMemberRequest) (OrganizationInvite, error)
	// AcceptInvite consumes a pending invite for the user it was addressed
	// to; the caller's email must match the invite.
	AcceptInvite(ctx context.Context, inviteID, userID snowflake.ID, email string) error

	SetStripeCustomerID(ctx context.Context, orgID snowflake.ID, customerID string) error

	CanSell(ctx context.Context, orgID snowflake.ID) (CanSellResult, error)
	ConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string) error
	ApplyAccountUpdate(ctx context.Context, update AccountUpdate) error
	DisconnectAccount(ctx context.Context, accountID string) error
}
