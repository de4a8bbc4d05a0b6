package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/migration"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
	prospectservice "github.com/market-dot-dev/studio-sub000/internal/prospect/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (prospectdomain.Service, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive for the whole test.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	svc := prospectservice.NewService(prospectservice.ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, node
}

func TestRegisterUpsertsByEmailWithinOrg(t *testing.T) {
	svc, node := setup(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	first, err := svc.Register(ctx, prospectdomain.RegisterProspectRequest{
		Email: "  Lead@Example.com ",
		Name:  "Lead",
	})
	require.NoError(t, err)
	assert.Equal(t, "lead@example.com", first.Email)

	tierID := node.Generate()
	second, err := svc.Register(ctx, prospectdomain.RegisterProspectRequest{
		Email:  "lead@example.com",
		TierID: &tierID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Lead", second.Name)
	require.NotNil(t, second.TierID)
	assert.Equal(t, tierID, *second.TierID)

	prospects, err := svc.ListByOrg(ctx, orgID)
	require.NoError(t, err)
	assert.Len(t, prospects, 1)
}

func TestRegisterScopesByOrg(t *testing.T) {
	svc, node := setup(t)
	orgA := node.Generate()
	orgB := node.Generate()

	_, err := svc.Register(orgcontext.WithOrgID(context.Background(), orgA), prospectdomain.RegisterProspectRequest{
		Email: "lead@example.com",
	})
	require.NoError(t, err)
	_, err = svc.Register(orgcontext.WithOrgID(context.Background(), orgB), prospectdomain.RegisterProspectRequest{
		Email: "lead@example.com",
	})
	require.NoError(t, err)

	forA, err := svc.ListByOrg(context.Background(), orgA)
	require.NoError(t, err)
	assert.Len(t, forA, 1)

	forB, err := svc.ListByOrg(context.Background(), orgB)
	require.NoError(t, err)
	assert.Len(t, forB, 1)
}

func TestRegisterRejectsInvalidEmail(t *testing.T) {
	svc, node := setup(t)
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())

	_, err := svc.Register(ctx, prospectdomain.RegisterProspectRequest{Email: ""})
	assert.ErrorIs(t, err, prospectdomain.ErrInvalidEmail)

	_, err = svc.Register(ctx, prospectdomain.RegisterProspectRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, prospectdomain.ErrInvalidEmail)
}
