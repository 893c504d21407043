package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Karat is a gold purity grade used to value pawned jewellery.
type Karat struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey"`
	Code      string          `json:"code" gorm:"type:varchar(8);not null;uniqueIndex:ux_karats_code"`
	Purity    decimal.Decimal `json:"purity" gorm:"type:decimal(18,4);not null"`
	CreatedAt time.Time       `json:"created_at,omitempty" gorm:"not null"`
}

func (Karat) TableName() string { return "karats" }

// LoanPeriod defines a valid loan duration in months.
type LoanPeriod struct {
	ID                  snowflake.ID    `json:"id" gorm:"primaryKey"`
	Name                string          `json:"name" gorm:"type:varchar(64);not null;uniqueIndex:ux_loan_periods_name"`
	Period              int             `json:"period" gorm:"not null"`
	DefaultInterestRate decimal.Decimal `json:"default_interest_rate" gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt           time.Time       `json:"created_at,omitempty" gorm:"not null"`
}

func (LoanPeriod) TableName() string { return "loan_periods" }

// Pricing is the per-gram valuation of a karat from EffectiveFrom onwards.
type Pricing struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	KaratID       snowflake.ID    `json:"karat_id" gorm:"not null;index:ix_pricings_karat_effective,priority:1"`
	PricePerGram  decimal.Decimal `json:"price_per_gram" gorm:"type:decimal(18,4);not null"`
	EffectiveFrom time.Time       `json:"effective_from" gorm:"not null;index:ix_pricings_karat_effective,priority:2"`
	CreatedAt     time.Time       `json:"created_at,omitempty" gorm:"not null"`
}

func (Pricing) TableName() string { return "pricings" }
