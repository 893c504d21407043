package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Loan is the pawn contract opened by a LOAN_ISSUANCE transaction.
type Loan struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	TransactionID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_loans_transaction" json:"transaction_id"`
	CustomerID        snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	LoanPeriodID      snowflake.ID    `gorm:"not null" json:"loan_period_id"`
	StartDate         time.Time       `gorm:"not null" json:"start_date"`
	EndDate           time.Time       `gorm:"not null" json:"end_date"`
	AmountPaid        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount_paid"`
	OutstandingAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"outstanding_amount"`
	IsSettled         bool            `gorm:"not null;default:false" json:"is_settled"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// Installment is one payment against a loan. Numbers are unique per loan.
type Installment struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	LoanID            snowflake.ID    `gorm:"not null;uniqueIndex:ux_installments_loan_number,priority:1" json:"loan_id"`
	TransactionID     snowflake.ID    `gorm:"not null;uniqueIndex:ux_installments_transaction" json:"transaction_id"`
	InstallmentNumber int             `gorm:"not null;uniqueIndex:ux_installments_loan_number,priority:2" json:"installment_number"`
	AmountPaid        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_paid"`
	DueDate           time.Time       `gorm:"not null" json:"due_date"`
	PaymentDate       time.Time       `gorm:"not null" json:"payment_date"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Installment) TableName() string { return "installments" }

// LoanInfo is the interest breakdown of a loan.
type LoanInfo struct {
	InitialInvoiceNo    string          `json:"initial_invoice_no"`
	Principal           decimal.Decimal `json:"principal"`
	InterestRate        decimal.Decimal `json:"interest_rate"`
	InterestAmount      decimal.Decimal `json:"interest_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	Period              int             `json:"period"`
	TotalLoanDays       int             `json:"total_loan_days"`
	DailyInterest       decimal.Decimal `json:"daily_interest"`
	StartDate           time.Time       `json:"start_date"`
	EndDate             time.Time       `json:"end_date"`
	LastInstallmentDate time.Time       `json:"last_installment_date"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	OutstandingAmount   decimal.Decimal `json:"outstanding_amount"`
	IsSettled           bool            `json:"is_settled"`
}

type ScheduleEntry struct {
	InstallmentNumber int              `json:"installment_number"`
	DueDate           time.Time        `json:"due_date"`
	Paid              bool             `json:"paid"`
	AmountPaid        *decimal.Decimal `json:"amount_paid,omitempty"`
	PaymentDate       *time.Time       `json:"payment_date,omitempty"`
}
