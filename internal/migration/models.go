package migration

import (
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	itemdomain "github.com/smallbiznis/pawnshop/internal/item/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
)

// Models lists every persisted type in dependency order. Dialects without
// embedded SQL migrations are brought up with AutoMigrate over this list.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&referencedomain.Karat{},
		&referencedomain.LoanPeriod{},
		&referencedomain.Pricing{},
		&itemdomain.Item{},
		&transactiondomain.Transaction{},
		&transactiondomain.TransactionItem{},
		&invoicedomain.InvoiceSequence{},
		&invoicedomain.Invoice{},
		&loandomain.Loan{},
		&loandomain.Installment{},
		&ledgerdomain.LedgerAccount{},
		&ledgerdomain.LedgerEntry{},
		&ledgerdomain.LedgerEntryLine{},
		&auditdomain.AuditLog{},
	}
}
