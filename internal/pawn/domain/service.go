package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
)

// Service orchestrates the invoice workflows. Every mutating call runs in a
// single database transaction and rolls back as a whole on failure.
type Service interface {
	ProcessInvoice(ctx context.Context, req InvoiceRequest) (ProcessResult, error)
	ProcessInstallments(ctx context.Context, initialInvoiceNo string) (*loandomain.LoanInfo, error)
	InstallmentSchedule(ctx context.Context, initialInvoiceNo string) ([]loandomain.ScheduleEntry, error)
	// ProcessSingleReport returns (nil, nil) when the customer does not exist.
	ProcessSingleReport(ctx context.Context, customerID snowflake.ID) (*CustomerReport, error)
	GetInvoicesByCustomer(ctx context.Context, customerID snowflake.ID) ([]invoicedomain.Invoice, error)
	GetInvoice(ctx context.Context, invoiceNo string) (invoicedomain.Invoice, error)

	// PlanVoid builds the deletion plan for an invoice without executing it.
	PlanVoid(ctx context.Context, invoiceNo string) (*DeletionPlan, error)
	VoidInvoice(ctx context.Context, invoiceNo string) (*DeletionPlan, error)

	RenderInvoicePDF(ctx context.Context, invoiceNo string) (io.Reader, error)
}

var (
	ErrInvalidInvoiceType  = errors.New("invalid_invoice_type")
	ErrInvalidRequest      = errors.New("invalid_request")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrCustomerMismatch    = errors.New("loan_belongs_to_another_customer")
	ErrItemNotFound        = errors.New("item_not_found")
	ErrItemNotOwned        = errors.New("item_belongs_to_another_customer")
	ErrItemAlreadyPledged  = errors.New("item_already_pledged")
	ErrItemValueUnknown    = errors.New("item_value_unknown")
	ErrLoanExceedsValue    = errors.New("loan_exceeds_item_value")
	ErrSettlementShortfall = errors.New("settlement_below_outstanding")
	ErrVoidNotAllowed      = errors.New("invoice_void_not_allowed")
)
