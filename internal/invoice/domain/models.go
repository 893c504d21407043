// Package domain contains persistence models for pawn invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// InvoiceType selects the workflow an invoice was issued by.
type InvoiceType int

const (
	InvoiceTypeInitialPawn        InvoiceType = 1
	InvoiceTypeInstallmentPayment InvoiceType = 2
	InvoiceTypeSettlement         InvoiceType = 3
)

func (t InvoiceType) Valid() bool {
	return t >= InvoiceTypeInitialPawn && t <= InvoiceTypeSettlement
}

func (t InvoiceType) String() string {
	switch t {
	case InvoiceTypeInitialPawn:
		return "initial_pawn"
	case InvoiceTypeInstallmentPayment:
		return "installment_payment"
	case InvoiceTypeSettlement:
		return "settlement"
	}
	return "unknown"
}

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "ISSUED"
	InvoiceStatusVoid   InvoiceStatus = "VOID"
)

// Invoice is issued once per transaction. Installment and settlement
// invoices point back at the initial pawn invoice through InitialInvoiceNo.
type Invoice struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	InvoiceNo        string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_invoices_invoice_no" json:"invoice_no"`
	Sequence         int64          `gorm:"not null;uniqueIndex:ux_invoices_sequence" json:"sequence"`
	InvoiceTypeID    InvoiceType    `gorm:"column:invoice_type_id;not null" json:"invoice_type_id"`
	TransactionID    snowflake.ID   `gorm:"not null;uniqueIndex:ux_invoices_transaction" json:"transaction_id"`
	CustomerID       snowflake.ID   `gorm:"not null;index" json:"customer_id"`
	InitialInvoiceNo *string        `gorm:"type:varchar(64);index" json:"initial_invoice_no,omitempty"`
	Status           InvoiceStatus  `gorm:"type:varchar(16);not null" json:"status"`
	GeneratedAt      time.Time      `gorm:"not null" json:"generated_at"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceSequence is the single counter invoice numbers are drawn from.
type InvoiceSequence struct {
	Name       string    `gorm:"primaryKey;type:varchar(32)"`
	NextNumber int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (InvoiceSequence) TableName() string { return "invoice_sequences" }

const DefaultSequenceName = "invoice"
