package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	paymentprovider "github.com/market-dot-dev/studio-sub000/internal/providers/payment"
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

	tiers     tierdomain.Service
	orgs      organizationdomain.Service
	users     authdomain.Service
	processor paymentprovider.ProcessorClient
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Tiers     tierdomain.Service
	Orgs      organizationdomain.Service
	Users     authdomain.Service
	Processor paymentprovider.ProcessorClient
}

func NewService(p ServiceParam) chargedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("charge.service"),
		genID: p.GenID,
		clock: p.Clock,

		tiers:     p.Tiers,
		orgs:      p.Orgs,
		users:     p.Users,
		processor: p.Processor,
	}
}

func (s *Service) Purchase(ctx context.Context, req chargedomain.PurchaseRequest) (chargedomain.Charge, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return chargedomain.Charge{}, organizationdomain.ErrOrganizationNotFound
	}

	tier, err := s.tiers.GetByID(ctx, req.TierID)
	if err != nil {
		return chargedomain.Charge{}, err
	}
	if tier.Cadence != tierdomain.CadenceOnce {
		return chargedomain.Charge{}, chargedomain.ErrNotOneTimeTier
	}
	if !tier.Published {
		return chargedomain.Charge{}, chargedomain.ErrTierNotSellable
	}

	sellable, err := s.orgs.CanSell(ctx, tier.OrgID)
	if err != nil {
		return chargedomain.Charge{}, err
	}
	if !sellable.CanSell {
		return chargedomain.Charge{}, chargedomain.ErrTierNotSellable
	}

	vendor, err := s.orgs.GetByID(ctx, tier.OrgID)
	if err != nil {
		return chargedomain.Charge{}, err
	}
	account := *vendor.StripeAccountID

	customerID, err := s.ensureCustomer(ctx, orgID, account)
	if err != nil {
		return chargedomain.Charge{}, err
	}

	intentID, err := s.processor.CreatePaymentIntent(ctx, account, customerID, tier.PriceCents, "usd")
	if err != nil {
		return chargedomain.Charge{}, err
	}

	now := s.clock.Now()
	charge := chargedomain.Charge{
		ID:                    s.genID.Generate(),
		OrgID:                 orgID,
		TierID:                tier.ID,
		TierRevision:          tier.Revision,
		AmountCents:           tier.PriceCents,
		Currency:              "usd",
		StripePaymentIntentID: &intentID,
		StripeStatus:          "pending",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.db.WithContext(ctx).Create(&charge).Error; err != nil {
		return chargedomain.Charge{}, err
	}
	return charge, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (chargedomain.Charge, error) {
	var charge chargedomain.Charge
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chargedomain.Charge{}, chargedomain.ErrChargeNotFound
	}
	if err != nil {
		return chargedomain.Charge{}, err
	}
	return charge, nil
}

func (s *Service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]chargedomain.Charge, error) {
	var charges []chargedomain.Charge
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&charges).Error
	return charges, err
}

// ApplyExternalUpdate writes the latest observed status onto the matching
// charge. The processor is the source of truth here; whatever arrives last
// wins, including regressions it chooses to send.
func (s *Service) ApplyExternalUpdate(ctx context.Context, update chargedomain.ExternalUpdate) error {
	if update.PaymentIntentID == "" {
		s.log.Info("charge event without a payment intent id",
			zap.String("status", update.Status))
		return nil
	}

	var charge chargedomain.Charge
	err := s.db.WithContext(ctx).
		Where("stripe_payment_intent_id = ?", update.PaymentIntentID).
		First(&charge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("charge event for unknown payment intent",
			zap.String("payment_intent_id", update.PaymentIntentID))
		return nil
	}
	if err != nil {
		return err
	}

	charge.StripeStatus = update.Status
	charge.Error = update.Error
	charge.UpdatedAt = s.clock.Now()
	return s.db.WithContext(ctx).Save(&charge).Error
}

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
