package migration

import (
	"context"

	"github.com/smallbiznis/pawnshop/internal/config"
	"github.com/smallbiznis/pawnshop/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Migrate(conn); err != nil {
			return err
		}
		if !cfg.SeedReferenceData {
			return seed.EnsureInvoiceSequence(context.Background(), conn)
		}
		log.Info("seeding reference data")
		return seed.EnsureReferenceData(context.Background(), conn)
	}),
)
