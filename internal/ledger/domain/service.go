package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingLine is one leg of an entry, addressed by account code.
type PostingLine struct {
	Account   LedgerAccountCode
	Direction LedgerEntryDirection
	Amount    decimal.Decimal
}

type AccountBalance struct {
	Code    LedgerAccountCode `json:"code"`
	Name    string            `json:"name"`
	Debit   decimal.Decimal   `json:"debit"`
	Credit  decimal.Decimal   `json:"credit"`
	Balance decimal.Decimal   `json:"balance"`
}

type Service interface {
	EnsureAccounts(ctx context.Context, db *gorm.DB) error
	// CreateEntry posts a balanced entry inside db. A second entry for the
	// same source is ignored and reported as false.
	CreateEntry(ctx context.Context, db *gorm.DB, sourceType LedgerSourceType, sourceID snowflake.ID, occurredAt time.Time, lines []PostingLine) (bool, error)
	// Reverse posts the mirror of the entry recorded for the source.
	Reverse(ctx context.Context, db *gorm.DB, sourceType LedgerSourceType, sourceID snowflake.ID, occurredAt time.Time) (bool, error)
	Balances(ctx context.Context) ([]AccountBalance, error)
}

var (
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
	ErrAccountNotFound      = errors.New("ledger_account_not_found")
)

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(lines []PostingLine) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		switch line.Direction {
		case LedgerEntryDirectionDebit:
			debit = debit.Add(line.Amount)
		case LedgerEntryDirectionCredit:
			credit = credit.Add(line.Amount)
		default:
			return ErrInvalidLineDirection
		}
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry
	}
	return nil
}

// IssuanceLines books a loan: the receivable covers principal plus interest.
func IssuanceLines(principal, interest decimal.Decimal) []PostingLine {
	lines := []PostingLine{
		{Account: AccountCodePawnLoansReceivable, Direction: LedgerEntryDirectionDebit, Amount: principal.Add(interest)},
		{Account: AccountCodeCash, Direction: LedgerEntryDirectionCredit, Amount: principal},
	}
	if interest.IsPositive() {
		lines = append(lines, PostingLine{Account: AccountCodeInterestIncome, Direction: LedgerEntryDirectionCredit, Amount: interest})
	}
	return lines
}

// RepaymentLines books cash received against the receivable.
func RepaymentLines(amount decimal.Decimal) []PostingLine {
	return []PostingLine{
		{Account: AccountCodeCash, Direction: LedgerEntryDirectionDebit, Amount: amount},
		{Account: AccountCodePawnLoansReceivable, Direction: LedgerEntryDirectionCredit, Amount: amount},
	}
}
