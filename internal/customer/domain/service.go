package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int32
	Name        string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerFilter struct {
	Name        string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	NIC     string `json:"nic" validate:"required,nic"`
	Name    string `json:"name" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"omitempty,max=512"`
}

type UpdateCustomerRequest struct {
	ID      string  `json:"-"`
	Name    *string `json:"name" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address" validate:"omitempty,max=512"`
}

type GetCustomerRequest struct {
	ID string
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(context.Context, GetCustomerRequest) (Customer, error)
	GetByNIC(ctx context.Context, nic string) (Customer, error)

	// FindByID returns (nil, nil) when the customer does not exist.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	// Resolve returns the customer holding req.NIC, creating it inside db when
	// absent. Concurrent callers with the same NIC converge on one row.
	Resolve(ctx context.Context, db *gorm.DB, req CreateCustomerRequest) (*Customer, bool, error)
}

var (
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidNIC     = errors.New("invalid_nic")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
	ErrAlreadyExists  = errors.New("customer_already_exists")
	ErrNICUnavailable = errors.New("nic_belongs_to_deleted_customer")
)
