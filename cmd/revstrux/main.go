package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/revstrux/revstrux/internal/clock"
	"github.com/revstrux/revstrux/internal/config"
	"github.com/revstrux/revstrux/internal/logger"
	"github.com/revstrux/revstrux/internal/migration"
	"github.com/revstrux/revstrux/internal/observability"
	"github.com/revstrux/revstrux/internal/server"
	"github.com/revstrux/revstrux/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API plus the session and analysis domains it serves
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
