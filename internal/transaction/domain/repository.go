package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, trx *Transaction) error
	InsertItems(ctx context.Context, db *gorm.DB, links []*TransactionItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Transaction, error)
	ListItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]*TransactionItem, error)
	ListByItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]*TransactionItem, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	SoftDeleteItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (int64, error)
}
