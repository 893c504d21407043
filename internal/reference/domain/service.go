package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EstimateRequest struct {
	KaratID snowflake.ID
	Weight  decimal.Decimal
}

type Estimate struct {
	KaratID      snowflake.ID    `json:"karat_id"`
	Weight       decimal.Decimal `json:"weight"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	Value        decimal.Decimal `json:"value"`
}

type Service interface {
	ListKarats(ctx context.Context) ([]Karat, error)
	ListLoanPeriods(ctx context.Context) ([]LoanPeriod, error)
	ListPricings(ctx context.Context, karatID *snowflake.ID) ([]Pricing, error)
	// GetLoanPeriod returns (nil, nil) when the period does not exist.
	GetLoanPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LoanPeriod, error)
	EstimateValue(ctx context.Context, db *gorm.DB, req EstimateRequest) (Estimate, error)
}

var (
	ErrKaratNotFound   = errors.New("karat_not_found")
	ErrPricingNotFound = errors.New("pricing_not_found")
	ErrInvalidWeight   = errors.New("invalid_weight")
)
