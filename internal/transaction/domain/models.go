package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeLoanIssuance       TransactionType = "LOAN_ISSUANCE"
	TransactionTypeInstallmentPayment TransactionType = "INSTALLMENT_PAYMENT"
	TransactionTypeLoanClosure        TransactionType = "LOAN_CLOSURE"
	TransactionTypeInterestPayment    TransactionType = "INTEREST_PAYMENT"
	TransactionTypeLateFeePayment     TransactionType = "LATE_FEE_PAYMENT"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeLoanIssuance,
		TransactionTypeInstallmentPayment,
		TransactionTypeLoanClosure,
		TransactionTypeInterestPayment,
		TransactionTypeLateFeePayment:
		return true
	}
	return false
}

// Transaction is the financial event behind exactly one invoice.
type Transaction struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID      snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Type            TransactionType `gorm:"column:transaction_type;type:varchar(32);not null" json:"transaction_type"`
	SubTotal        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"sub_total"`
	InterestRate    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"interest_rate"`
	InterestAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"interest_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Transaction) TableName() string { return "transactions" }

type TransactionItem struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	TransactionID snowflake.ID   `gorm:"not null;index" json:"transaction_id"`
	ItemID        snowflake.ID   `gorm:"not null;index" json:"item_id"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (TransactionItem) TableName() string { return "transaction_items" }
