package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	CustomerID  snowflake.ID
	Name        string
	Description string
	KaratID     *snowflake.ID
	Weight      decimal.Decimal
	Value       decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, db *gorm.DB, req CreateItemRequest) (*Item, error)
	// FindByID returns (nil, nil) when the item does not exist.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Item, error)
	ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]Item, error)
	MarkRedeemed(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
	SoftDelete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}

var (
	ErrInvalidName   = errors.New("invalid_item_name")
	ErrInvalidValue  = errors.New("invalid_item_value")
	ErrInvalidWeight = errors.New("invalid_item_weight")
	ErrNotFound      = errors.New("item_not_found")
)
