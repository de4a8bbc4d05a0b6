package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/migration"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	organizationrepo "github.com/market-dot-dev/studio-sub000/internal/organization/repository"
	organizationservice "github.com/market-dot-dev/studio-sub000/internal/organization/service"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	paymentprovider "github.com/market-dot-dev/studio-sub000/internal/providers/payment"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	subscriptionrepo "github.com/market-dot-dev/studio-sub000/internal/subscription/repository"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	tierrepo "github.com/market-dot-dev/studio-sub000/internal/tier/repository"
	tierservice "github.com/market-dot-dev/studio-sub000/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeProcessor struct {
	seq         int
	prices      map[string]paymentprovider.PriceRequest
	deactivated []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{prices: map[string]paymentprovider.PriceRequest{}}
}

func (f *fakeProcessor) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	return f.next("cus"), nil
}

func (f *fakeProcessor) CreateProduct(_ context.Context, _, _ string) (string, error) {
	return f.next("prod"), nil
}

func (f *fakeProcessor) CreatePrice(_ context.Context, _ string, req paymentprovider.PriceRequest) (string, error) {
	id := f.next("price")
	f.prices[id] = req
	return id, nil
}

func (f *fakeProcessor) DeactivatePrice(_ context.Context, _, priceID string) error {
	f.deactivated = append(f.deactivated, priceID)
	return nil
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, _, _, _ string) (paymentprovider.SubscriptionInfo, error) {
	return paymentprovider.SubscriptionInfo{ID: f.next("sub"), Status: "active"}, nil
}

func (f *fakeProcessor) CancelAtPeriodEnd(_ context.Context, _, subscriptionID string) (paymentprovider.SubscriptionInfo, error) {
	return paymentprovider.SubscriptionInfo{ID: subscriptionID, Status: "active", CancelAtPeriodEnd: true}, nil
}

func (f *fakeProcessor) RemoveCancellation(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeProcessor) CreatePaymentIntent(_ context.Context, _, _ string, _ int64, _ string) (string, error) {
	return f.next("pi"), nil
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clk       *clock.FakeClock
	processor *fakeProcessor
	orgs      organizationdomain.Service
	tiers     tierdomain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive for the whole test.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	processor := newFakeProcessor()

	orgs := organizationservice.NewService(organizationservice.ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  organizationrepo.Provide(),
	})

	tiers := tierservice.NewService(tierservice.ServiceParam{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        tierrepo.Provide(),
		Subscribers: subscriptionrepo.ProvideSubscriberCounter(conn, subscriptionrepo.Provide()),
		Orgs:        orgs,
		Processor:   processor,
	})

	return &fixture{
		db:        conn,
		node:      node,
		clk:       clk,
		processor: processor,
		orgs:      orgs,
		tiers:     tiers,
	}
}

func (f *fixture) sellingOrg(t *testing.T) (organizationdomain.Organization, context.Context) {
	t.Helper()

	org, err := f.orgs.Create(context.Background(), organizationdomain.CreateOrganizationRequest{
		Name:        "Acme",
		Slug:        fmt.Sprintf("acme-%d", f.node.Generate()),
		OwnerUserID: f.node.Generate(),
	})
	require.NoError(t, err)

	ctx := orgcontext.WithOrgID(context.Background(), org.ID)
	account := fmt.Sprintf("acct_%d", org.ID)
	require.NoError(t, f.orgs.ConnectAccount(ctx, org.ID, account))
	require.NoError(t, f.orgs.ApplyAccountUpdate(ctx, organizationdomain.AccountUpdate{
		AccountID:      account,
		ChargesEnabled: true,
		PayoutsEnabled: true,
	}))
	return org, ctx
}

func (f *fixture) seedSubscriber(t *testing.T, tier tierdomain.Tier) {
	t.Helper()

	sub := subscriptiondomain.Subscription{
		ID:           f.node.Generate(),
		OrgID:        f.node.Generate(),
		TierID:       tier.ID,
		TierRevision: tier.Revision,
		State:        subscriptiondomain.StateRenewing,
		Active:       true,
		CreatedAt:    f.clk.Now(),
		UpdatedAt:    f.clk.Now(),
	}
	require.NoError(t, f.db.Create(&sub).Error)
}

func TestPublishCreatesProcessorObjects(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:             "Pro",
		Cadence:          tierdomain.CadenceMonth,
		PriceCents:       1000,
		AnnualPriceCents: 10000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tier.Revision)
	assert.False(t, tier.Published)

	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	assert.True(t, tier.Published)
	require.NotNil(t, tier.StripeProductID)
	require.NotNil(t, tier.StripePriceID)
	require.NotNil(t, tier.StripeAnnualPriceID)

	monthly := f.processor.prices[*tier.StripePriceID]
	assert.Equal(t, int64(1000), monthly.AmountCents)
	assert.Equal(t, "month", monthly.Interval)

	annual := f.processor.prices[*tier.StripeAnnualPriceID]
	assert.Equal(t, int64(10000), annual.AmountCents)
	assert.Equal(t, "year", annual.Interval)
}

func TestOneTimeTierGetsNoRecurringPrice(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Setup Fee",
		Cadence:    tierdomain.CadenceOnce,
		PriceCents: 5000,
	})
	require.NoError(t, err)

	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	require.NotNil(t, tier.StripeProductID)
	assert.Nil(t, tier.StripePriceID)
}

func TestPriceEditWithoutSubscribersStaysInPlace(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	oldPrice := *tier.StripePriceID

	newPrice := int64(1500)
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &newPrice})
	require.NoError(t, err)

	assert.Equal(t, 1, tier.Revision)
	assert.Equal(t, int64(1500), tier.PriceCents)
	assert.Nil(t, tier.StripePriceID)
	assert.Contains(t, f.processor.deactivated, oldPrice)

	versions, err := f.tiers.ListVersions(ctx, tier.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestPriceEditWithSubscribersForksRevision(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	oldPriceID := *tier.StripePriceID

	f.seedSubscriber(t, tier)

	newPrice := int64(2000)
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &newPrice})
	require.NoError(t, err)

	assert.Equal(t, 2, tier.Revision)
	assert.Equal(t, int64(2000), tier.PriceCents)
	assert.Nil(t, tier.StripePriceID)
	// The grandfathered price object stays live for existing subscribers.
	assert.NotContains(t, f.processor.deactivated, oldPriceID)

	versions, err := f.tiers.ListVersions(ctx, tier.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Revision)
	assert.Equal(t, int64(1000), versions[0].PriceCents)
	require.NotNil(t, versions[0].StripePriceID)
	assert.Equal(t, oldPriceID, *versions[0].StripePriceID)
}

func TestCadenceEditWithSubscribersForksRevision(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	oldPriceID := *tier.StripePriceID

	f.seedSubscriber(t, tier)

	// Same amount, different billing interval.
	quarterly := tierdomain.CadenceQuarter
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{Cadence: &quarterly})
	require.NoError(t, err)

	assert.Equal(t, 2, tier.Revision)
	assert.Equal(t, tierdomain.CadenceQuarter, tier.Cadence)
	assert.Nil(t, tier.StripePriceID)
	assert.NotContains(t, f.processor.deactivated, oldPriceID)

	versions, err := f.tiers.ListVersions(ctx, tier.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Revision)
	assert.Equal(t, tierdomain.CadenceMonth, versions[0].Cadence)
	require.NotNil(t, versions[0].StripePriceID)
	assert.Equal(t, oldPriceID, *versions[0].StripePriceID)

	tier, err = f.tiers.SyncPrices(ctx, tier.ID)
	require.NoError(t, err)
	require.NotNil(t, tier.StripePriceID)
	fresh := f.processor.prices[*tier.StripePriceID]
	assert.Equal(t, "month", fresh.Interval)
	assert.Equal(t, 3, fresh.IntervalCount)
}

func TestCadenceEditWithoutSubscribersStaysInPlace(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	oldPriceID := *tier.StripePriceID

	yearly := tierdomain.CadenceYear
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{Cadence: &yearly})
	require.NoError(t, err)

	assert.Equal(t, 1, tier.Revision)
	assert.Equal(t, tierdomain.CadenceYear, tier.Cadence)
	// The old interval's price object is retired with nobody on it.
	assert.Contains(t, f.processor.deactivated, oldPriceID)

	versions, err := f.tiers.ListVersions(ctx, tier.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestUpdateRejectsUnknownCadence(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)

	bad := tierdomain.Cadence("fortnight")
	_, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{Cadence: &bad})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidCadence)
}

func TestVersionAtResolvesLiveAndFrozenTerms(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	f.seedSubscriber(t, tier)

	newPrice := int64(3000)
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &newPrice})
	require.NoError(t, err)

	frozen, err := f.tiers.VersionAt(ctx, tier.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), frozen.PriceCents)

	live, err := f.tiers.VersionAt(ctx, tier.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), live.PriceCents)

	_, err = f.tiers.VersionAt(ctx, tier.ID, 7)
	assert.ErrorIs(t, err, tierdomain.ErrTierNotFound)
}

func TestForkedRevisionResyncsFreshPrices(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(ctx, tier.ID)
	require.NoError(t, err)
	f.seedSubscriber(t, tier)

	newPrice := int64(2500)
	tier, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &newPrice})
	require.NoError(t, err)
	require.Nil(t, tier.StripePriceID)

	tier, err = f.tiers.SyncPrices(ctx, tier.ID)
	require.NoError(t, err)
	require.NotNil(t, tier.StripePriceID)
	assert.Equal(t, int64(2500), f.processor.prices[*tier.StripePriceID].AmountCents)
}

func TestUpdateRejectsNegativePrice(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)

	bad := int64(-1)
	_, err = f.tiers.Update(ctx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &bad})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidPrice)
}

func TestTiersAreScopedToOwningOrg(t *testing.T) {
	f := setup(t)
	_, ctx := f.sellingOrg(t)
	_, otherCtx := f.sellingOrg(t)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)

	_, err = f.tiers.Update(otherCtx, tier.ID, tierdomain.UpdateTierRequest{})
	assert.ErrorIs(t, err, tierdomain.ErrTierNotFound)

	_, err = f.tiers.Publish(otherCtx, tier.ID)
	assert.ErrorIs(t, err, tierdomain.ErrTierNotFound)
}

func TestSyncPricesRequiresConnectedAccount(t *testing.T) {
	f := setup(t)

	org, err := f.orgs.Create(context.Background(), organizationdomain.CreateOrganizationRequest{
		Name:        "No Account Yet",
		OwnerUserID: f.node.Generate(),
	})
	require.NoError(t, err)
	ctx := orgcontext.WithOrgID(context.Background(), org.ID)

	tier, err := f.tiers.Create(ctx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)

	_, err = f.tiers.Publish(ctx, tier.ID)
	assert.ErrorIs(t, err, organizationdomain.ErrNoConnectedAccount)
}
