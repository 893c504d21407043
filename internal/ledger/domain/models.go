package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeLoanIssuance       LedgerSourceType = "loan_issuance"       // principal handed out, interest booked
	SourceTypeInstallmentPayment LedgerSourceType = "installment_payment" // cash received against a loan
	SourceTypeLoanClosure        LedgerSourceType = "loan_closure"        // final redemption payment
	SourceTypeReversal           LedgerSourceType = "reversal"            // voided invoice
)

type LedgerAccountCode string

const (
	// Assets
	AccountCodeCash                LedgerAccountCode = "cash"
	AccountCodePawnLoansReceivable LedgerAccountCode = "pawn_loans_receivable"

	// Revenue
	AccountCodeInterestIncome LedgerAccountCode = "interest_income"
)

// DefaultAccounts is the chart of accounts every pawn workflow posts to.
var DefaultAccounts = []LedgerAccount{
	{Code: AccountCodeCash, Name: "Cash"},
	{Code: AccountCodePawnLoansReceivable, Name: "Pawn loans receivable"},
	{Code: AccountCodeInterestIncome, Name: "Interest income"},
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Code      LedgerAccountCode `gorm:"type:varchar(64);not null;uniqueIndex:ux_ledger_accounts_code" json:"code"`
	Name      string            `gorm:"type:varchar(128);not null" json:"name"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	SourceType LedgerSourceType `gorm:"type:varchar(32);not null;uniqueIndex:ux_ledger_entries_source,priority:1" json:"source_type"`
	SourceID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:2" json:"source_id"`
	OccurredAt time.Time        `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey" json:"id"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index" json:"ledger_entry_id"`
	AccountID     snowflake.ID         `gorm:"not null;index" json:"account_id"`
	Direction     LedgerEntryDirection `gorm:"type:varchar(8);not null" json:"direction"`
	Amount        decimal.Decimal      `gorm:"type:decimal(18,4);not null" json:"amount"`
	CreatedAt     time.Time            `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }
