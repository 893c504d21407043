package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemStatus string

const (
	ItemStatusInStock  ItemStatus = "IN_STOCK"
	ItemStatusRedeemed ItemStatus = "REDEEMED"
)

// Item is a pawned article owned by a single customer.
type Item struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description,omitempty"`
	KaratID     *snowflake.ID   `json:"karat_id,omitempty"`
	Weight      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"weight"`
	Value       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"value"`
	Status      ItemStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Item) TableName() string { return "items" }
