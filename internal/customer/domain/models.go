package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Customer is identified by a unique national identity number.
type Customer struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	NIC       string         `gorm:"column:nic;type:varchar(12);not null;uniqueIndex:ux_customers_nic" json:"nic"`
	Name      string         `gorm:"not null" json:"name"`
	Phone     string         `gorm:"type:varchar(32)" json:"phone,omitempty"`
	Email     string         `json:"email,omitempty"`
	Address   string         `json:"address,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Customer) TableName() string { return "customers" }
