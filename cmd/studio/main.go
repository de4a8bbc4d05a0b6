package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/market-dot-dev/studio-sub000/internal/clock"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	"github.com/market-dot-dev/studio-sub000/internal/logger"
	"github.com/market-dot-dev/studio-sub000/internal/migration"
	"github.com/market-dot-dev/studio-sub000/internal/server"
	"github.com/market-dot-dev/studio-sub000/pkg/db"
	"github.com/market-dot-dev/studio-sub000/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		telemetry.Module,
		fx.Provide(NewSnowflakeNode),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func NewSnowflakeNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Fatalf("snowflake node: %v", err)
	}
	return node
}
