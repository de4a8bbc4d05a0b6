package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
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
	repo  tierdomain.Repository

	subscribers tierdomain.SubscriberCounter
	orgs        organizationdomain.Service
	processor   paymentprovider.ProcessorClient
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  tierdomain.Repository

	Subscribers tierdomain.SubscriberCounter
	Orgs        organizationdomain.Service
	Processor   paymentprovider.ProcessorClient
}

func NewService(p ServiceParam) tierdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tier.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		subscribers: p.Subscribers,
		orgs:        p.Orgs,
		processor:   p.Processor,
	}
}

func (s *Service) Create(ctx context.Context, req tierdomain.CreateTierRequest) (tierdomain.Tier, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return tierdomain.Tier{}, organizationdomain.ErrOrganizationNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return tierdomain.Tier{}, tierdomain.ErrTierNotFound
	}
	if !req.Cadence.Valid() {
		return tierdomain.Tier{}, tierdomain.ErrInvalidCadence
	}
	if req.PriceCents < 0 || req.AnnualPriceCents < 0 {
		return tierdomain.Tier{}, tierdomain.ErrInvalidPrice
	}

	now := s.clock.Now()
	tier := tierdomain.Tier{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		Cadence:          req.Cadence,
		PriceCents:       req.PriceCents,
		AnnualPriceCents: req.AnnualPriceCents,
		Published:        false,
		Revision:         1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, &tier); err != nil {
		return tierdomain.Tier{}, err
	}
	return tier, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (tierdomain.Tier, error) {
	tier, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return tierdomain.Tier{}, err
	}
	if tier == nil {
		return tierdomain.Tier{}, tierdomain.ErrTierNotFound
	}
	return *tier, nil
}

func (s *Service) ListByOrg(ctx context.Context, orgID snowflake.ID) ([]tierdomain.Tier, error) {
	return s.repo.ListByOrg(ctx, s.db, orgID)
}

// Update applies a tier edit. A price or cadence move on a published tier
// with live subscribers forks a new revision so existing subscribers keep
// their terms; every other edit lands in place.
func (s *Service) Update(ctx context.Context, id snowflake.ID, req tierdomain.UpdateTierRequest) (tierdomain.Tier, error) {
	tier, err := s.getOwned(ctx, id)
	if err != nil {
		return tierdomain.Tier{}, err
	}

	if req.PriceCents != nil && *req.PriceCents < 0 {
		return tierdomain.Tier{}, tierdomain.ErrInvalidPrice
	}
	if req.AnnualPriceCents != nil && *req.AnnualPriceCents < 0 {
		return tierdomain.Tier{}, tierdomain.ErrInvalidPrice
	}
	if req.Cadence != nil && !req.Cadence.Valid() {
		return tierdomain.Tier{}, tierdomain.ErrInvalidCadence
	}

	priceChanged := req.PriceCents != nil && *req.PriceCents != tier.PriceCents
	cadenceChanged := req.Cadence != nil && *req.Cadence != tier.Cadence

	vc := tierdomain.VersionContext{
		PriceChanged:       priceChanged || cadenceChanged,
		AnnualPriceChanged: req.AnnualPriceCents != nil && *req.AnnualPriceCents != tier.AnnualPriceCents,
		Published:          tier.Published,
	}
	if vc.PriceChanged || vc.AnnualPriceChanged {
		vc.HasSubscribers, err = s.subscribers.HasActiveSubscribers(ctx, tier.ID, tier.Revision)
		if err != nil {
			return tierdomain.Tier{}, err
		}
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		tier.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		tier.Description = strings.TrimSpace(*req.Description)
	}

	now := s.clock.Now()

	if tierdomain.ShouldCreateNewVersion(vc) {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			snapshot := tierdomain.TierVersion{
				ID:                  s.genID.Generate(),
				TierID:              tier.ID,
				Revision:            tier.Revision,
				Cadence:             tier.Cadence,
				PriceCents:          tier.PriceCents,
				AnnualPriceCents:    tier.AnnualPriceCents,
				StripePriceID:       tier.StripePriceID,
				StripeAnnualPriceID: tier.StripeAnnualPriceID,
				CreatedAt:           now,
			}
			if err := s.repo.InsertVersion(ctx, tx, &snapshot); err != nil {
				return err
			}

			tier.Revision++
			s.applyPrices(tier, req)
			// New revision gets fresh price objects on the next publish sync.
			tier.StripePriceID = nil
			tier.StripeAnnualPriceID = nil
			tier.UpdatedAt = now
			return s.repo.Update(ctx, tx, tier)
		})
		if err != nil {
			return tierdomain.Tier{}, err
		}

		s.log.Info("tier revision forked",
			zap.Int64("tier_id", int64(tier.ID)),
			zap.Int("revision", tier.Revision))
		return *tier, nil
	}

	if vc.PriceChanged {
		s.retirePrice(ctx, tier.OrgID, tier.StripePriceID)
		tier.StripePriceID = nil
	}
	if vc.AnnualPriceChanged {
		s.retirePrice(ctx, tier.OrgID, tier.StripeAnnualPriceID)
		tier.StripeAnnualPriceID = nil
	}
	s.applyPrices(tier, req)
	tier.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, tier); err != nil {
		return tierdomain.Tier{}, err
	}
	return *tier, nil
}

func (s *Service) Publish(ctx context.Context, id snowflake.ID) (tierdomain.Tier, error) {
	tier, err := s.getOwned(ctx, id)
	if err != nil {
		return tierdomain.Tier{}, err
	}

	tier.Published = true
	tier.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, tier); err != nil {
		return tierdomain.Tier{}, err
	}
	return s.SyncPrices(ctx, id)
}

func (s *Service) Unpublish(ctx context.Context, id snowflake.ID) (tierdomain.Tier, error) {
	tier, err := s.getOwned(ctx, id)
	if err != nil {
		return tierdomain.Tier{}, err
	}

	tier.Published = false
	tier.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, tier); err != nil {
		return tierdomain.Tier{}, err
	}
	return *tier, nil
}

// SyncPrices creates any missing processor objects for a published tier.
// Price ids are nulled on revision forks and in-place price edits, so this is
// where they come back.
func (s *Service) SyncPrices(ctx context.Context, id snowflake.ID) (tierdomain.Tier, error) {
	tier, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return tierdomain.Tier{}, err
	}
	if tier == nil {
		return tierdomain.Tier{}, tierdomain.ErrTierNotFound
	}
	if !tier.Published {
		return tierdomain.Tier{}, tierdomain.ErrNotPublished
	}

	org, err := s.orgs.GetByID(ctx, tier.OrgID)
	if err != nil {
		return tierdomain.Tier{}, err
	}
	if org.StripeAccountID == nil || *org.StripeAccountID == "" {
		return tierdomain.Tier{}, organizationdomain.ErrNoConnectedAccount
	}
	account := *org.StripeAccountID

	changed := false

	if tier.StripeProductID == nil {
		productID, err := s.processor.CreateProduct(ctx, account, tier.Name)
		if err != nil {
			return tierdomain.Tier{}, err
		}
		tier.StripeProductID = &productID
		changed = true
	}

	if tier.StripePriceID == nil && tier.PriceCents > 0 && tier.Cadence != tierdomain.CadenceOnce {
		interval, count := tier.Cadence.Interval()
		priceID, err := s.processor.CreatePrice(ctx, account, paymentprovider.PriceRequest{
			ProductID:     *tier.StripeProductID,
			AmountCents:   tier.PriceCents,
			Currency:      "usd",
			Interval:      interval,
			IntervalCount: count,
		})
		if err != nil {
			return tierdomain.Tier{}, err
		}
		tier.StripePriceID = &priceID
		changed = true
	}

	if tier.StripeAnnualPriceID == nil && tier.AnnualPriceCents > 0 {
		priceID, err := s.processor.CreatePrice(ctx, account, paymentprovider.PriceRequest{
			ProductID:     *tier.StripeProductID,
			AmountCents:   tier.AnnualPriceCents,
			Currency:      "usd",
			Interval:      "year",
			IntervalCount: 1,
		})
		if err != nil {
			return tierdomain.Tier{}, err
		}
		tier.StripeAnnualPriceID = &priceID
		changed = true
	}

	if changed {
		tier.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, s.db, tier); err != nil {
			return tierdomain.Tier{}, err
		}
	}
	return *tier, nil
}

func (s *Service) ListVersions(ctx context.Context, tierID snowflake.ID) ([]tierdomain.TierVersion, error) {
	return s.repo.ListVersions(ctx, s.db, tierID)
}

func (s *Service) VersionAt(ctx context.Context, tierID snowflake.ID, revision int) (tierdomain.TierVersion, error) {
	tier, err := s.GetByID(ctx, tierID)
	if err != nil {
		return tierdomain.TierVersion{}, err
	}

	if revision == tier.Revision {
		return tierdomain.TierVersion{
			TierID:              tier.ID,
			Revision:            tier.Revision,
			Cadence:             tier.Cadence,
			PriceCents:          tier.PriceCents,
			AnnualPriceCents:    tier.AnnualPriceCents,
			StripePriceID:       tier.StripePriceID,
			StripeAnnualPriceID: tier.StripeAnnualPriceID,
		}, nil
	}

	version, err := s.repo.FindVersion(ctx, s.db, tierID, revision)
	if err != nil {
		return tierdomain.TierVersion{}, err
	}
	if version == nil {
		return tierdomain.TierVersion{}, tierdomain.ErrTierNotFound
	}
	return *version, nil
}

// getOwned loads a tier and checks it belongs to the org in context.
func (s *Service) getOwned(ctx context.Context, id snowflake.ID) (*tierdomain.Tier, error) {
	tier, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok && orgID != tier.OrgID {
		return nil, tierdomain.ErrTierNotFound
	}
	return tier, nil
}

func (s *Service) applyPrices(tier *tierdomain.Tier, req tierdomain.UpdateTierRequest) {
	if req.Cadence != nil {
		tier.Cadence = *req.Cadence
	}
	if req.PriceCents != nil {
		tier.PriceCents = *req.PriceCents
	}
	if req.AnnualPriceCents != nil {
		tier.AnnualPriceCents = *req.AnnualPriceCents
	}
}

// retirePrice deactivates the external price object best effort; the tier
// edit must not fail on a processor hiccup.
func (s *Service) retirePrice(ctx context.Context, orgID snowflake.ID, priceID *string) {
	if priceID == nil || *priceID == "" {
		return
	}
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil || org.StripeAccountID == nil {
		return
	}
	if err := s.processor.DeactivatePrice(ctx, *org.StripeAccountID, *priceID); err != nil {
		s.log.Warn("price deactivation failed",
			zap.String("price_id", *priceID),
			zap.Error(err))
	}
}
