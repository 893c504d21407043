package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type IssueRequest struct {
	Type             InvoiceType
	TransactionID    snowflake.ID
	CustomerID       snowflake.ID
	InitialInvoiceNo *string
	IssuedAt         time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindOne(ctx context.Context, db *gorm.DB, filter *Invoice) (*Invoice, error)
	FindLast(ctx context.Context, db *gorm.DB) (*Invoice, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*Invoice, error)
	ListByInitialInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) ([]*Invoice, error)
	MarkVoid(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error)
	// NextSequence locks the named counter row and returns the value to use.
	NextSequence(ctx context.Context, db *gorm.DB, name string, at time.Time) (int64, error)
}

type Service interface {
	// Issue allocates the next invoice number and stores the invoice in db.
	Issue(ctx context.Context, db *gorm.DB, req IssueRequest) (*Invoice, error)
	// FindByInvoiceNo returns (nil, nil) when no live invoice carries the number.
	FindByInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) (*Invoice, error)
	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*Invoice, error)
	FindLast(ctx context.Context, db *gorm.DB) (*Invoice, error)
	GetByInvoiceNo(ctx context.Context, invoiceNo string) (Invoice, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Invoice, error)
	ListByInitialInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) ([]Invoice, error)
	// Void marks the invoices VOID and soft deletes them.
	Void(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}

var (
	ErrInvalidType           = errors.New("invalid_invoice_type")
	ErrInvalidInvoiceNo      = errors.New("invalid_invoice_no")
	ErrMissingInitialNo      = errors.New("initial_invoice_no_required")
	ErrNotFound              = errors.New("invoice_not_found")
	ErrSequenceMisconfigured = errors.New("invoice_sequence_misconfigured")
)
