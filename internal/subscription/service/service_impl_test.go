package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authservice "github.com/market-dot-dev/studio-sub000/internal/auth/service"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	"github.com/market-dot-dev/studio-sub000/internal/migration"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	organizationrepo "github.com/market-dot-dev/studio-sub000/internal/organization/repository"
	organizationservice "github.com/market-dot-dev/studio-sub000/internal/organization/service"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	paymentprovider "github.com/market-dot-dev/studio-sub000/internal/providers/payment"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	subscriptionrepo "github.com/market-dot-dev/studio-sub000/internal/subscription/repository"
	subscriptionservice "github.com/market-dot-dev/studio-sub000/internal/subscription/service"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	tierrepo "github.com/market-dot-dev/studio-sub000/internal/tier/repository"
	tierservice "github.com/market-dot-dev/studio-sub000/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeProcessor struct {
	seq       int
	periodEnd time.Time

	customersCreated     int
	subscriptionsCreated int
	cancellations        int
	reactivations        int
}

func (f *fakeProcessor) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, _, _, _ string) (string, error) {
	f.customersCreated++
	return f.next("cus"), nil
}

func (f *fakeProcessor) CreateProduct(_ context.Context, _, _ string) (string, error) {
	return f.next("prod"), nil
}

func (f *fakeProcessor) CreatePrice(_ context.Context, _ string, _ paymentprovider.PriceRequest) (string, error) {
	return f.next("price"), nil
}

func (f *fakeProcessor) DeactivatePrice(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, _, _, _ string) (paymentprovider.SubscriptionInfo, error) {
	f.subscriptionsCreated++
	return paymentprovider.SubscriptionInfo{
		ID:               f.next("sub"),
		Status:           "active",
		CurrentPeriodEnd: f.periodEnd,
	}, nil
}

func (f *fakeProcessor) CancelAtPeriodEnd(_ context.Context, _, subscriptionID string) (paymentprovider.SubscriptionInfo, error) {
	f.cancellations++
	return paymentprovider.SubscriptionInfo{
		ID:                subscriptionID,
		Status:            "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  f.periodEnd,
	}, nil
}

func (f *fakeProcessor) RemoveCancellation(_ context.Context, _, _ string) error {
	f.reactivations++
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

	orgs  organizationdomain.Service
	tiers tierdomain.Service
	subs  subscriptiondomain.Service
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

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	processor := &fakeProcessor{periodEnd: clk.Now().Add(30 * 24 * time.Hour)}

	orgs := organizationservice.NewService(organizationservice.ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  organizationrepo.Provide(),
	})
	users := authservice.NewService(authservice.ServiceParam{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Config: config.Config{SessionTTLHours: 1},
	})
	subRepo := subscriptionrepo.Provide()
	tiers := tierservice.NewService(tierservice.ServiceParam{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clk,
		Repo:        tierrepo.Provide(),
		Subscribers: subscriptionrepo.ProvideSubscriberCounter(conn, subRepo),
		Orgs:        orgs,
		Processor:   processor,
	})
	subs := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Repo:      subRepo,
		Tiers:     tiers,
		Orgs:      orgs,
		Users:     users,
		Processor: processor,
	})

	return &fixture{
		db:        conn,
		node:      node,
		clk:       clk,
		processor: processor,
		orgs:      orgs,
		tiers:     tiers,
		subs:      subs,
	}
}

// vendorTier provisions a selling vendor with one published monthly tier.
func (f *fixture) vendorTier(t *testing.T) tierdomain.Tier {
	t.Helper()

	vendor, err := f.orgs.Create(context.Background(), organizationdomain.CreateOrganizationRequest{
		Name:        "Vendor",
		Slug:        fmt.Sprintf("vendor-%d", f.node.Generate()),
		OwnerUserID: f.node.Generate(),
	})
	require.NoError(t, err)

	vendorCtx := orgcontext.WithOrgID(context.Background(), vendor.ID)
	account := fmt.Sprintf("acct_%d", vendor.ID)
	require.NoError(t, f.orgs.ConnectAccount(vendorCtx, vendor.ID, account))
	require.NoError(t, f.orgs.ApplyAccountUpdate(vendorCtx, organizationdomain.AccountUpdate{
		AccountID:      account,
		ChargesEnabled: true,
		PayoutsEnabled: true,
	}))

	tier, err := f.tiers.Create(vendorCtx, tierdomain.CreateTierRequest{
		Name:       "Pro",
		Cadence:    tierdomain.CadenceMonth,
		PriceCents: 1000,
	})
	require.NoError(t, err)
	tier, err = f.tiers.Publish(vendorCtx, tier.ID)
	require.NoError(t, err)
	return tier
}

func (f *fixture) customerCtx(t *testing.T) context.Context {
	t.Helper()

	org, err := f.orgs.Create(context.Background(), organizationdomain.CreateOrganizationRequest{
		Name:        "Customer",
		Slug:        fmt.Sprintf("customer-%d", f.node.Generate()),
		OwnerUserID: f.node.Generate(),
	})
	require.NoError(t, err)
	return orgcontext.WithOrgID(context.Background(), org.ID)
}

func TestCreateSubscription(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	assert.Equal(t, subscriptiondomain.StateRenewing, sub.State)
	assert.True(t, sub.Active)
	assert.Equal(t, tier.Revision, sub.TierRevision)
	require.NotNil(t, sub.ActiveUntil)
	assert.Equal(t, f.processor.periodEnd, sub.ActiveUntil.UTC())
	assert.Equal(t, 1, f.processor.customersCreated)
	assert.Equal(t, 1, f.processor.subscriptionsCreated)
}

func TestCreateReusesProcessorCustomer(t *testing.T) {
	f := setup(t)
	first := f.vendorTier(t)
	second := f.vendorTier(t)
	ctx := f.customerCtx(t)

	_, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: first.ID})
	require.NoError(t, err)
	_, err = f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: second.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, f.processor.customersCreated)
	assert.Equal(t, 2, f.processor.subscriptionsCreated)
}

func TestCreateRejectsDuplicateActive(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	_, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	_, err = f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	assert.ErrorIs(t, err, subscriptiondomain.ErrAlreadySubscribed)
}

func TestResubscribeWhileCancelledResumes(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)

	resumed, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	assert.Equal(t, sub.ID, resumed.ID)
	assert.Equal(t, subscriptiondomain.StateRenewing, resumed.State)
	assert.Equal(t, 1, f.processor.reactivations)
	assert.Equal(t, 1, f.processor.subscriptionsCreated)
}

func TestCreateAfterLapseStartsFresh(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)

	f.clk.Advance(60 * 24 * time.Hour)
	f.processor.periodEnd = f.clk.Now().Add(30 * 24 * time.Hour)

	fresh, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	assert.NotEqual(t, sub.ID, fresh.ID)
	assert.Equal(t, 2, f.processor.subscriptionsCreated)

	old, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)
}

func TestCreateRejectsOneTimeTier(t *testing.T) {
	f := setup(t)
	ctx := f.customerCtx(t)

	vendor, err := f.orgs.Create(context.Background(), organizationdomain.CreateOrganizationRequest{
		Name:        "One Timer",
		OwnerUserID: f.node.Generate(),
	})
	require.NoError(t, err)
	vendorCtx := orgcontext.WithOrgID(context.Background(), vendor.ID)
	require.NoError(t, f.orgs.ConnectAccount(vendorCtx, vendor.ID, "acct_once"))
	require.NoError(t, f.orgs.ApplyAccountUpdate(vendorCtx, organizationdomain.AccountUpdate{
		AccountID: "acct_once", ChargesEnabled: true, PayoutsEnabled: true,
	}))

	tier, err := f.tiers.Create(vendorCtx, tierdomain.CreateTierRequest{
		Name:       "Setup",
		Cadence:    tierdomain.CadenceOnce,
		PriceCents: 5000,
	})
	require.NoError(t, err)
	_, err = f.tiers.Publish(vendorCtx, tier.ID)
	require.NoError(t, err)

	_, err = f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	assert.ErrorIs(t, err, subscriptiondomain.ErrOneTimeTier)
}

func TestCreateRejectsUnpublishedTier(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	vendorCtx := orgcontext.WithOrgID(context.Background(), tier.OrgID)
	_, err := f.tiers.Unpublish(vendorCtx, tier.ID)
	require.NoError(t, err)

	_, err = f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	assert.ErrorIs(t, err, subscriptiondomain.ErrTierNotSellable)
}

func TestCancelOnlyFromRenewing(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	cancelled, err := f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StateCancelled, cancelled.State)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 1, f.processor.cancellations)

	_, err = f.subs.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotCancellable)
}

func TestCancelWithoutPeriodEndStillExpires(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)

	// Row with no processor linkage, so cancellation gets no period end back.
	orgID := f.node.Generate()
	sub := subscriptiondomain.Subscription{
		ID:           f.node.Generate(),
		OrgID:        orgID,
		TierID:       tier.ID,
		TierRevision: tier.Revision,
		State:        subscriptiondomain.StateRenewing,
		Active:       true,
		CreatedAt:    f.clk.Now(),
		UpdatedAt:    f.clk.Now(),
	}
	require.NoError(t, f.db.Create(&sub).Error)
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	cancelled, err := f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.ActiveUntil)
	assert.Equal(t, f.clk.Now(), cancelled.ActiveUntil.UTC())

	f.clk.Advance(time.Hour)
	n, err := f.subs.DeactivateExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestReactivateWithinPaidPeriod(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)

	resumed, err := f.subs.Reactivate(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscriptiondomain.StateRenewing, resumed.State)
	assert.Nil(t, resumed.CancelledAt)
	assert.Equal(t, 1, f.processor.reactivations)
}

func TestReactivateRejectedAfterLapse(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	_, err = f.subs.Cancel(ctx, sub.ID)
	require.NoError(t, err)

	f.clk.Advance(60 * 24 * time.Hour)

	_, err = f.subs.Reactivate(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotReactivatable)
}

func TestReactivateRejectedWhileRenewing(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)

	_, err = f.subs.Reactivate(ctx, sub.ID)
	assert.ErrorIs(t, err, subscriptiondomain.ErrNotReactivatable)
}

func TestApplyExternalUpdate(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	require.NotNil(t, sub.StripeSubscriptionID)
	stripeID := *sub.StripeSubscriptionID

	t.Run("unknown subscription is ignored", func(t *testing.T) {
		err := f.subs.ApplyExternalUpdate(ctx, subscriptiondomain.ExternalUpdate{
			StripeSubscriptionID: "sub_missing",
			Status:               "active",
		})
		assert.NoError(t, err)
	})

	t.Run("pending cancellation moves state to cancelled", func(t *testing.T) {
		newEnd := f.clk.Now().Add(20 * 24 * time.Hour)
		err := f.subs.ApplyExternalUpdate(ctx, subscriptiondomain.ExternalUpdate{
			StripeSubscriptionID: stripeID,
			Status:               "active",
			CancelAtPeriodEnd:    true,
			CurrentPeriodEnd:     newEnd,
		})
		require.NoError(t, err)

		got, err := f.subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscriptiondomain.StateCancelled, got.State)
		require.NotNil(t, got.ActiveUntil)
		assert.Equal(t, newEnd, got.ActiveUntil.UTC())
	})

	t.Run("renewal clears cancellation", func(t *testing.T) {
		err := f.subs.ApplyExternalUpdate(ctx, subscriptiondomain.ExternalUpdate{
			StripeSubscriptionID: stripeID,
			Status:               "active",
		})
		require.NoError(t, err)

		got, err := f.subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscriptiondomain.StateRenewing, got.State)
		assert.Nil(t, got.CancelledAt)
	})

	t.Run("deletion is terminal", func(t *testing.T) {
		err := f.subs.ApplyExternalUpdate(ctx, subscriptiondomain.ExternalUpdate{
			StripeSubscriptionID: stripeID,
			Deleted:              true,
		})
		require.NoError(t, err)

		got, err := f.subs.GetByID(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscriptiondomain.StateCancelled, got.State)
		require.NotNil(t, got.CancelledAt)
	})
}

func TestDeactivateExpiredSweep(t *testing.T) {
	f := setup(t)
	now := f.clk.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	seed := func(state subscriptiondomain.State, active bool, until *time.Time) snowflake.ID {
		sub := subscriptiondomain.Subscription{
			ID:           f.node.Generate(),
			OrgID:        f.node.Generate(),
			TierID:       f.node.Generate(),
			TierRevision: 1,
			State:        state,
			Active:       active,
			ActiveUntil:  until,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, f.db.Create(&sub).Error)
		return sub.ID
	}

	lapsed := seed(subscriptiondomain.StateCancelled, true, &past)
	stillPaid := seed(subscriptiondomain.StateCancelled, true, &future)
	renewing := seed(subscriptiondomain.StateRenewing, true, &past)

	n, err := f.subs.DeactivateExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assertActive := func(id snowflake.ID, want bool) {
		got, err := f.subs.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Active)
	}
	assertActive(lapsed, false)
	assertActive(stillPaid, true)
	assertActive(renewing, true)

	// The sweep is idempotent.
	n, err = f.subs.DeactivateExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubscriptionPinsTierRevision(t *testing.T) {
	f := setup(t)
	tier := f.vendorTier(t)
	ctx := f.customerCtx(t)

	sub, err := f.subs.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{TierID: tier.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.TierRevision)

	vendorCtx := orgcontext.WithOrgID(context.Background(), tier.OrgID)
	newPrice := int64(9900)
	forked, err := f.tiers.Update(vendorCtx, tier.ID, tierdomain.UpdateTierRequest{PriceCents: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, 2, forked.Revision)

	got, err := f.subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TierRevision)

	frozen, err := f.tiers.VersionAt(ctx, tier.ID, got.TierRevision)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), frozen.PriceCents)
}
