package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/audit"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	"github.com/smallbiznis/pawnshop/internal/customer"
	"github.com/smallbiznis/pawnshop/internal/invoice"
	"github.com/smallbiznis/pawnshop/internal/item"
	"github.com/smallbiznis/pawnshop/internal/ledger"
	"github.com/smallbiznis/pawnshop/internal/loan"
	"github.com/smallbiznis/pawnshop/internal/lock"
	"github.com/smallbiznis/pawnshop/internal/migration"
	"github.com/smallbiznis/pawnshop/internal/observability"
	"github.com/smallbiznis/pawnshop/internal/pawn"
	"github.com/smallbiznis/pawnshop/internal/providers/pdf"
	"github.com/smallbiznis/pawnshop/internal/reference"
	"github.com/smallbiznis/pawnshop/internal/server"
	"github.com/smallbiznis/pawnshop/internal/transaction"
	"github.com/smallbiznis/pawnshop/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		lock.Module,

		// Domains
		audit.Module,
		reference.Module,
		customer.Module,
		item.Module,
		transaction.Module,
		invoice.Module,
		loan.Module,
		ledger.Module,
		pdf.Module,
		pawn.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
