package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/filmbilling/internal/auth"
	"github.com/smallbiznis/filmbilling/internal/authorization"
	"github.com/smallbiznis/filmbilling/internal/billing"
	"github.com/smallbiznis/filmbilling/internal/catalog"
	"github.com/smallbiznis/filmbilling/internal/clock"
	"github.com/smallbiznis/filmbilling/internal/config"
	"github.com/smallbiznis/filmbilling/internal/entitlement"
	"github.com/smallbiznis/filmbilling/internal/gateway"
	"github.com/smallbiznis/filmbilling/internal/ledger"
	"github.com/smallbiznis/filmbilling/internal/migration"
	"github.com/smallbiznis/filmbilling/internal/observability"
	"github.com/smallbiznis/filmbilling/internal/ratelimit"
	"github.com/smallbiznis/filmbilling/internal/scheduler"
	"github.com/smallbiznis/filmbilling/internal/server"
	"github.com/smallbiznis/filmbilling/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		// Auth
		auth.Module,
		authorization.Module,

		// Functional Domains
		ledger.Module,
		entitlement.Module,
		catalog.Module,
		gateway.Module,
		billing.Module,

		// Workers
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(int64(cfg.SnowflakeNodeID))
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNodeID, err)
	}
	return node, nil
}
