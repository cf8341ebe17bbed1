package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/veldtax/veldtax/internal/clock"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/logger"
	"github.com/veldtax/veldtax/internal/metrics"
	"github.com/veldtax/veldtax/internal/migration"
	"github.com/veldtax/veldtax/internal/server"
	"github.com/veldtax/veldtax/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
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
