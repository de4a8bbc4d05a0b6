package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/notification"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	paymentprovider "github.com/market-dot-dev/studio-sub000/internal/providers/payment"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository

	tiers     tierdomain.Service
	orgs      organizationdomain.Service
	users     authdomain.Service
	processor paymentprovider.ProcessorClient
	notifier  *notification.Notifier
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	Tiers     tierdomain.Service
	Orgs      organizationdomain.Service
	Users     authdomain.Service
	Processor paymentprovider.ProcessorClient
	Notifier  *notification.Notifier
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		tiers:     p.Tiers,
		orgs:      p.Orgs,
		users:     p.Users,
		processor: p.Processor,
		notifier:  p.Notifier,
	}
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return subscriptiondomain.Subscription{}, organizationdomain.ErrOrganizationNotFound
	}

	tier, err := s.tiers.GetByID(ctx, req.TierID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if !tier.Published {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrTierNotSellable
	}
	if tier.Cadence == tierdomain.CadenceOnce {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrOneTimeTier
	}

	sellable, err := s.orgs.CanSell(ctx, tier.OrgID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if !sellable.CanSell {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrTierNotSellable
	}

	now := s.clock.Now()

	existing, err := s.repo.FindActive(ctx, s.db, orgID, tier.ID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if existing != nil {
		if existing.State == subscriptiondomain.StateRenewing {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrAlreadySubscribed
		}
		if existing.InPaidPeriod(now) {
			// Cancelled but still paid for: resubscribing means resuming.
			return s.Reactivate(ctx, existing.ID)
		}
		// Lapsed row the sweep has not reached yet.
		existing.Active = false
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, s.db, existing); err != nil {
			return subscriptiondomain.Subscription{}, err
		}
	}

	tier, err = s.tiers.SyncPrices(ctx, tier.ID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	priceID := tier.StripePriceID
	if req.Annual {
		priceID = tier.StripeAnnualPriceID
	}
	if priceID == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrTierNotSellable
	}

	vendor, err := s.orgs.GetByID(ctx, tier.OrgID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	account := *vendor.StripeAccountID

	customerID, err := s.ensureCustomer(ctx, orgID, account)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	info, err := s.processor.CreateSubscription(ctx, account, customerID, *priceID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	sub := subscriptiondomain.Subscription{
		ID:                   s.genID.Generate(),
		OrgID:                orgID,
		TierID:               tier.ID,
		TierRevision:         tier.Revision,
		State:                subscriptiondomain.StateRenewing,
		Active:               true,
		StripeSubscriptionID: &info.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if !info.CurrentPeriodEnd.IsZero() {
		end := info.CurrentPeriodEnd
		sub.ActiveUntil = &end
	}
	if err := s.repo.Insert(ctx, s.db, &sub); err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

func (s *Service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.repo.ListByOrg(ctx, s.db, orgID)
}

func (s *Service) ListByTier(ctx context.Context, tierID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	return s.repo.ListByTier(ctx, s.db, tierID)
}

// Cancel ends renewal at the period boundary. Access runs until activeUntil;
// the sweep flips the row off once that passes.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (subscriptiondomain.Subscription, error) {
	sub, err := s.getOwned(ctx, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub.State != subscriptiondomain.StateRenewing {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotCancellable
	}

	tier, err := s.tiers.GetByID(ctx, sub.TierID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	vendor, err := s.orgs.GetByID(ctx, tier.OrgID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	now := s.clock.Now()
	if sub.StripeSubscriptionID != nil && vendor.StripeAccountID != nil {
		info, err := s.processor.CancelAtPeriodEnd(ctx, *vendor.StripeAccountID, *sub.StripeSubscriptionID)
		if err != nil {
			return subscriptiondomain.Subscription{}, err
		}
		if !info.CurrentPeriodEnd.IsZero() {
			end := info.CurrentPeriodEnd
			sub.ActiveUntil = &end
		}
	}

	sub.State = subscriptiondomain.StateCancelled
	sub.CancelledAt = &now
	// A cancelled row without a paid-through date would never match the
	// sweep; treat the period as over now.
	if sub.ActiveUntil == nil {
		sub.ActiveUntil = &now
	}
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	s.notifyCancellation(ctx, sub, tier, vendor)
	return *sub, nil
}

// Reactivate resumes a cancelled subscription whose paid period has not
// lapsed. Past that point the subscriber goes through Create again.
func (s *Service) Reactivate(ctx context.Context, id snowflake.ID) (subscriptiondomain.Subscription, error) {
	sub, err := s.getOwned(ctx, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	now := s.clock.Now()
	if sub.State != subscriptiondomain.StateCancelled || !sub.InPaidPeriod(now) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrNotReactivatable
	}

	if sub.StripeSubscriptionID != nil {
		tier, err := s.tiers.GetByID(ctx, sub.TierID)
		if err != nil {
			return subscriptiondomain.Subscription{}, err
		}
		vendor, err := s.orgs.GetByID(ctx, tier.OrgID)
		if err != nil {
			return subscriptiondomain.Subscription{}, err
		}
		if vendor.StripeAccountID != nil {
			if err := s.processor.RemoveCancellation(ctx, *vendor.StripeAccountID, *sub.StripeSubscriptionID); err != nil {
				return subscriptiondomain.Subscription{}, err
			}
		}
	}

	sub.State = subscriptiondomain.StateRenewing
	sub.CancelledAt = nil
	sub.Active = true
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, sub); err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	return *sub, nil
}

// ApplyExternalUpdate reconciles a customer.subscription.* event. Handlers
// are idempotent under redelivery and make no cross-event ordering
// assumptions.
func (s *Service) ApplyExternalUpdate(ctx context.Context, update subscriptiondomain.ExternalUpdate) error {
	sub, err := s.repo.FindByStripeID(ctx, s.db, update.StripeSubscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		s.log.Info("subscription event for unknown subscription",
			zap.String("stripe_subscription_id", update.StripeSubscriptionID))
		return nil
	}

	now := s.clock.Now()

	if update.Deleted {
		sub.State = subscriptiondomain.StateCancelled
		if sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
		if !update.CurrentPeriodEnd.IsZero() {
			end := update.CurrentPeriodEnd
			sub.ActiveUntil = &end
		} else if sub.ActiveUntil == nil {
			sub.ActiveUntil = &now
		}
		sub.UpdatedAt = now
		return s.repo.Update(ctx, s.db, sub)
	}

	if !update.CurrentPeriodEnd.IsZero() {
		end := update.CurrentPeriodEnd
		sub.ActiveUntil = &end
	}

	switch subscriptiondomain.StatusFromProcessor(update.Status, update.CancelAtPeriodEnd) {
	case subscriptiondomain.StatusRenewing:
		sub.State = subscriptiondomain.StateRenewing
		sub.CancelledAt = nil
	case subscriptiondomain.StatusCancelled:
		sub.State = subscriptiondomain.StateCancelled
		if sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
	case subscriptiondomain.StatusExpired:
		sub.State = subscriptiondomain.StateCancelled
		sub.Active = false
		if sub.CancelledAt == nil {
			sub.CancelledAt = &now
		}
		if sub.ActiveUntil == nil {
			sub.ActiveUntil = &now
		}
	}

	sub.UpdatedAt = now
	return s.repo.Update(ctx, s.db, sub)
}

func (s *Service) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired subscriptions deactivated", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) HasActiveSubscribers(ctx context.Context, tierID snowflake.ID, revision int) (bool, error) {
	n, err := s.repo.CountActiveAtRevision(ctx, s.db, tierID, revision)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) getOwned(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && orgID != sub.OrgID {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ensureCustomer returns the customer org's processor customer id, creating
// it on the vendor's connected account on first checkout.
func (s *Service) ensureCustomer(ctx context.Context, orgID snowflake.ID, account string) (string, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	if org.StripeCustomerID != nil && *org.StripeCustomerID != "" {
		return *org.StripeCustomerID, nil
	}

	email := ""
	if owner, err := s.users.GetUser(ctx, org.OwnerUserID); err == nil {
		email = owner.Email
	}

	customerID, err := s.processor.CreateCustomer(ctx, account, email, org.Name)
	if err != nil {
		return "", err
	}
	if err := s.orgs.SetStripeCustomerID(ctx, orgID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *Service) notifyCancellation(ctx context.Context, sub *subscriptiondomain.Subscription, tier tierdomain.Tier, vendor organizationdomain.Organization) {
	if s.notifier == nil {
		return
	}

	customer, err := s.orgs.GetByID(ctx, sub.OrgID)
	if err != nil {
		return
	}

	if owner, err := s.users.GetUser(ctx, vendor.OwnerUserID); err == nil {
		s.notifier.SubscriptionCancelled(ctx, owner.Email, tier.Name, customer.Name)
	}
	if owner, err := s.users.GetUser(ctx, customer.OwnerUserID); err == nil {
		s.notifier.CancellationConfirmed(ctx, owner.Email, tier.Name)
	}
}
