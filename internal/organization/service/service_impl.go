package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/notification"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  organizationdomain.Repository

	notifier *notification.Notifier
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     organizationdomain.Repository
	Notifier *notification.Notifier
}

func NewService(p ServiceParam) organizationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("organization.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		notifier: p.Notifier,
	}
}

func (s *Service) Create(ctx context.Context, req organizationdomain.CreateOrganizationRequest) (organizationdomain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return organizationdomain.Organization{}, organizationdomain.ErrOrganizationNotFound
	}

	orgSlug := strings.TrimSpace(req.Slug)
	if orgSlug == "" {
		orgSlug = name
	}
	orgSlug = slug.Make(orgSlug)

	now := s.clock.Now()
	org := organizationdomain.Organization{
		ID:          s.genID.Generate(),
		Name:        name,
		Slug:        orgSlug,
		OwnerUserID: req.OwnerUserID,
		PlanType:    organizationdomain.PlanFree,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &org); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return organizationdomain.ErrSlugTaken
			}
			return err
		}
		return s.repo.InsertMember(ctx, tx, &organizationdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    req.OwnerUserID,
			Role:      organizationdomain.RoleOwner,
			CreatedAt: now,
		})
	})
	if err != nil {
		return organizationdomain.Organization{}, err
	}

	return org, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (organizationdomain.Organization, error) {
	org, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return organizationdomain.Organization{}, err
	}
	if org == nil {
		return organizationdomain.Organization{}, organizationdomain.ErrOrganizationNotFound
	}
	return *org, nil
}

func (s *Service) GetBySlug(ctx context.Context, rawSlug string) (organizationdomain.Organization, error) {
	org, err := s.repo.FindBySlug(ctx, s.db, strings.ToLower(strings.TrimSpace(rawSlug)))
	if err != nil {
		return organizationdomain.Organization{}, err
	}
	if org == nil {
		return organizationdomain.Organization{}, organizationdomain.ErrOrganizationNotFound
	}
	return *org, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req organizationdomain.UpdateOrganizationRequest) (organizationdomain.Organization, error) {
	org, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return organizationdomain.Organization{}, err
	}
	if org == nil {
		return organizationdomain.Organization{}, organizationdomain.ErrOrganizationNotFound
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		org.Name = strings.TrimSpace(*req.Name)
	}
	if req.PlanType != nil {
		org.PlanType = *req.PlanType
	}
	org.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, org); err != nil {
		return organizationdomain.Organization{}, err
	}
	return *org, nil
}

func (s *Service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]organizationdomain.OrganizationMember, error) {
	return s.repo.ListMembers(ctx, s.db, orgID)
}

func (s *Service) RoleOf(ctx context.Context, orgID, userID snowflake.ID) (organizationdomain.Role, error) {
	member, err := s.repo.FindMember(ctx, s.db, orgID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", organizationdomain.ErrMemberNotFound
	}
	return member.Role, nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role organizationdomain.Role) error {
	if !isAssignableRole(role) {
		return organizationdomain.ErrInvalidRole
	}

	member, err := s.repo.FindMember(ctx, s.db, orgID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return organizationdomain.ErrMemberNotFound
	}
	if member.Role == organizationdomain.RoleOwner {
		// Ownership moves only through TransferOwnership.
		return organizationdomain.ErrOwnerRemoval
	}

	return s.repo.UpdateMemberRole(ctx, s.db, orgID, userID, role)
}

func (s *Service) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	member, err := s.repo.FindMember(ctx, s.db, orgID, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return organizationdomain.ErrMemberNotFound
	}
	if member.Role == organizationdomain.RoleOwner {
		return organizationdomain.ErrOwnerRemoval
	}
	return s.repo.DeleteMember(ctx, s.db, orgID, userID)
}

// TransferOwnership swaps the owner role between two members and updates the
// organization's owner pointer in one transaction.
func (s *Service) TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := s.repo.FindByID(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return organizationdomain.ErrOrganizationNotFound
		}
		if org.OwnerUserID != fromUserID {
			return organizationdomain.ErrNotOwner
		}

		target, err := s.repo.FindMember(ctx, tx, orgID, toUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return organizationdomain.ErrMemberNotFound
		}

		if err := s.repo.UpdateMemberRole(ctx, tx, orgID, fromUserID, organizationdomain.RoleAdmin); err != nil {
			return err
		}
		if err := s.repo.UpdateMemberRole(ctx, tx, orgID, toUserID, organizationdomain.RoleOwner); err != nil {
			return err
		}

		org.OwnerUserID = toUserID
		org.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, org)
	})
}

func (s *Service) InviteMember(ctx context.Context, orgID, invitedBy snowflake.ID, req organizationdomain.InviteMemberRequest) (organizationdomain.OrganizationInvite, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return organizationdomain.OrganizationInvite{}, organizationdomain.ErrMemberNotFound
	}
	if !isAssignableRole(req.Role) {
		return organizationdomain.OrganizationInvite{}, organizationdomain.ErrInvalidRole
	}

	org, err := s.GetByID(ctx, orgID)
	if err != nil {
		return organizationdomain.OrganizationInvite{}, err
	}

	invite := organizationdomain.OrganizationInvite{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     email,
		Role:      req.Role,
		Status:    organizationdomain.InviteStatusPending,
		InvitedBy: invitedBy,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertInvite(ctx, s.db, &invite); err != nil {
		return organizationdomain.OrganizationInvite{}, err
	}

	if s.notifier != nil {
		s.notifier.MemberInvited(ctx, email, org.Name)
	}

	return invite, nil
}

func (s *Service) AcceptInvite(ctx context.Context, inviteID, userID snowflake.ID, email string) error {
	invite, err := s.repo.FindInvite(ctx, s.db, inviteID)
	if err != nil {
		return err
	}
	if invite == nil || invite.Status != organizationdomain.InviteStatusPending {
		return organizationdomain.ErrInviteNotFound
	}
	// Holding the invite id is not enough; it only works for the address it
	// was sent to.
	if !strings.EqualFold(strings.TrimSpace(email), invite.Email) {
		return organizationdomain.ErrInviteNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.repo.InsertMember(ctx, tx, &organizationdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: s.clock.Now(),
		})
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return organizationdomain.ErrMemberExists
			}
			return err
		}
		return s.repo.UpdateInviteStatus(ctx, tx, inviteID, organizationdomain.InviteStatusAccepted)
	})
}

// SetStripeCustomerID pins the processor customer created for this
// organization on first checkout.
func (s *Service) SetStripeCustomerID(ctx context.Context, orgID snowflake.ID, customerID string) error {
	org, err := s.repo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return organizationdomain.ErrOrganizationNotFound
	}

	org.StripeCustomerID = &customerID
	org.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, org)
}

// CanSell answers from local capability mirrors; it never calls the processor
// on the read path, so a processor outage degrades to stale reasons instead
// of an error.
func (s *Service) CanSell(ctx context.Context, orgID snowflake.ID) (organizationdomain.CanSellResult, error) {
	org, err := s.GetByID(ctx, orgID)
	if err != nil {
		return organizationdomain.CanSellResult{}, err
	}

	var reasons []string
	if org.StripeAccountID == nil || *org.StripeAccountID == "" {
		reasons = append(reasons, organizationdomain.ReasonNoAccount)
	} else {
		if !org.ChargesEnabled {
			reasons = append(reasons, organizationdomain.ReasonChargesDisabled)
		}
		if !org.PayoutsEnabled {
			reasons = append(reasons, organizationdomain.ReasonPayoutsDisabled)
		}
	}

	return organizationdomain.CanSellResult{
		CanSell: len(reasons) == 0,
		Reasons: reasons,
	}, nil
}

func (s *Service) ConnectAccount(ctx context.Context, orgID snowflake.ID, accountID string) error {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return organizationdomain.ErrNoConnectedAccount
	}

	org, err := s.repo.FindByID(ctx, s.db, orgID)
	if err != nil {
		return err
	}
	if org == nil {
		return organizationdomain.ErrOrganizationNotFound
	}

	org.StripeAccountID = &accountID
	org.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, org)
}

// ApplyAccountUpdate refreshes capability mirrors from an account.updated
// event. Unknown accounts are ignored; redelivery is harmless.
func (s *Service) ApplyAccountUpdate(ctx context.Context, update organizationdomain.AccountUpdate) error {
	org, err := s.repo.FindByStripeAccountID(ctx, s.db, update.AccountID)
	if err != nil {
		return err
	}
	if org == nil {
		s.log.Info("account update for unknown connected account",
			zap.String("account_id", update.AccountID))
		return nil
	}

	org.ChargesEnabled = update.ChargesEnabled
	org.PayoutsEnabled = update.PayoutsEnabled
	org.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, org)
}

// DisconnectAccount clears the connected account after a deauthorization
// event. Idempotent: a second delivery finds no matching organization.
func (s *Service) DisconnectAccount(ctx context.Context, accountID string) error {
	org, err := s.repo.FindByStripeAccountID(ctx, s.db, accountID)
	if err != nil {
		return err
	}
	if org == nil {
		return nil
	}

	org.StripeAccountID = nil
	org.ChargesEnabled = false
	org.PayoutsEnabled = false
	org.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, org)
}

func isAssignableRole(role organizationdomain.Role) bool {
	switch role {
	case organizationdomain.RoleAdmin, organizationdomain.RoleMember:
		return true
	default:
		return false
	}
}
