package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RecordRequest struct {
	CustomerID      snowflake.ID
	Type            TransactionType
	SubTotal        decimal.Decimal
	InterestRate    decimal.Decimal
	TransactionDate time.Time
}

type Service interface {
	// Record stores a transaction, deriving interest and total from the subtotal.
	Record(ctx context.Context, db *gorm.DB, req RecordRequest) (*Transaction, error)
	LinkItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, itemIDs []snowflake.ID) ([]TransactionItem, error)
	ItemIDs(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]snowflake.ID, error)
	// TransactionIDsByItem lists the live transactions an item is linked to.
	TransactionIDsByItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]snowflake.ID, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Transaction, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	SoftDeleteItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (int64, error)
}

var (
	ErrInvalidType   = errors.New("invalid_transaction_type")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidRate   = errors.New("invalid_interest_rate")
	ErrNotFound      = errors.New("transaction_not_found")
)

// Interest returns subTotal × rate / 100 rounded to cents.
func Interest(subTotal, rate decimal.Decimal) decimal.Decimal {
	return subTotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
