package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListKarats(ctx context.Context, db *gorm.DB) ([]*Karat, error)
	FindKarat(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Karat, error)
	ListLoanPeriods(ctx context.Context, db *gorm.DB) ([]*LoanPeriod, error)
	FindLoanPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LoanPeriod, error)
	ListPricings(ctx context.Context, db *gorm.DB, karatID *snowflake.ID) ([]*Pricing, error)
	CurrentPricing(ctx context.Context, db *gorm.DB, karatID snowflake.ID, at time.Time) (*Pricing, error)
}
