package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports whether a row was written; an existing NIC is left untouched.
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByNIC(ctx context.Context, db *gorm.DB, nic string) (*Customer, error)
	FindByNICUnscoped(ctx context.Context, db *gorm.DB, nic string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
}
