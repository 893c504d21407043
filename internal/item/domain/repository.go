package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Item) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Item, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*Item, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, ids []snowflake.ID, status ItemStatus, at time.Time) (int64, error)
	SoftDelete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}
