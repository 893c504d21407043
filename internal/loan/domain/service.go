package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OpenRequest struct {
	TransactionID snowflake.ID
	CustomerID    snowflake.ID
	LoanPeriodID  snowflake.ID
	StartDate     time.Time
	TotalAmount   decimal.Decimal
}

type RecordInstallmentRequest struct {
	TransactionID snowflake.ID
	// InstallmentNumber zero takes the next free number.
	InstallmentNumber int
	Amount            decimal.Decimal
	PaymentDate       time.Time
}

type Service interface {
	// Open creates the loan for an issuance transaction. EndDate is StartDate
	// plus the loan period in months.
	Open(ctx context.Context, db *gorm.DB, req OpenRequest) (*Loan, error)
	// LockByInitialInvoiceNo resolves the loan behind an initial pawn invoice
	// and takes a row lock on it for the rest of db's transaction.
	LockByInitialInvoiceNo(ctx context.Context, db *gorm.DB, initialInvoiceNo string) (*Loan, error)
	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*Loan, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Loan, error)
	ListByTransactionIDs(ctx context.Context, db *gorm.DB, transactionIDs []snowflake.ID) ([]Loan, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	RecordInstallment(ctx context.Context, db *gorm.DB, loan *Loan, req RecordInstallmentRequest) (*Installment, error)
	ListInstallments(ctx context.Context, db *gorm.DB, loanIDs ...snowflake.ID) ([]Installment, error)
	FindInstallmentByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*Installment, error)
	SoftDeleteInstallments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)

	// SettleLoan marks the loan behind the initial invoice settled. It reports
	// false when no such loan exists and never touches items.
	SettleLoan(ctx context.Context, db *gorm.DB, initialInvoiceNo string) (bool, error)
	// UpdateInitialLoan recomputes AmountPaid from the installments and
	// OutstandingAmount from the issuance total. It returns nil when no loan exists.
	UpdateInitialLoan(ctx context.Context, db *gorm.DB, initialInvoiceNo string, amountJustPaid decimal.Decimal) (*Loan, error)
	// RecalculateBalance applies the same recompute to an already resolved loan.
	RecalculateBalance(ctx context.Context, db *gorm.DB, loan *Loan) error

	ProcessInstallments(ctx context.Context, initialInvoiceNo string) (*LoanInfo, error)
	Schedule(ctx context.Context, initialInvoiceNo string) ([]ScheduleEntry, error)
}

var (
	ErrLoanNotFound             = errors.New("loan_not_found")
	ErrLoanPeriodNotFound       = errors.New("loan_period_not_found")
	ErrInvalidLoanPeriod        = errors.New("invalid_loan_period")
	ErrZeroLoanDuration         = errors.New("zero_loan_duration")
	ErrInvoiceNotFound          = errors.New("invoice_not_found")
	ErrNotInitialInvoice        = errors.New("not_initial_pawn_invoice")
	ErrTransactionNotFound      = errors.New("transaction_not_found")
	ErrLoanSettled              = errors.New("loan_settled")
	ErrDuplicateInstallment     = errors.New("duplicate_installment")
	ErrInvalidInstallmentNumber = errors.New("invalid_installment_number")
	ErrInvalidAmount            = errors.New("invalid_amount")
	ErrOverpayment              = errors.New("installment_exceeds_outstanding")
)

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LoanDays counts calendar days between the loan's start and end dates.
func LoanDays(start, end time.Time) int {
	return int(DateOnly(end).Sub(DateOnly(start)).Hours() / 24)
}

// DueDate is the loan start moved forward by n months. A start day past the
// end of the target month is clamped to that month's last day.
func DueDate(start time.Time, n int) time.Time {
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(n), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}
