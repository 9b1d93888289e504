package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/sitelane/materialflow/internal/clock"
	"github.com/sitelane/materialflow/internal/config"
	"github.com/sitelane/materialflow/internal/migration"
	"github.com/sitelane/materialflow/internal/observability"
	"github.com/sitelane/materialflow/internal/server"
	"github.com/sitelane/materialflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
