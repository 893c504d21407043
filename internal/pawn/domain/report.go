package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	itemdomain "github.com/smallbiznis/pawnshop/internal/item/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
)

// CustomerReport aggregates every loan a customer holds.
type CustomerReport struct {
	Customer          customerdomain.Customer `json:"customer"`
	Loans             []LoanReport            `json:"loans"`
	TotalLoanedAmount decimal.Decimal         `json:"total_loaned_amount"`
	TotalAmountPaid   decimal.Decimal         `json:"total_amount_paid"`
	TotalOutstanding  decimal.Decimal         `json:"total_outstanding"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

type LoanReport struct {
	Loan             loandomain.Loan               `json:"loan"`
	InitialInvoiceNo string                        `json:"initial_invoice_no,omitempty"`
	Transaction      transactiondomain.Transaction `json:"transaction"`
	Items            []itemdomain.Item             `json:"items"`
	Installments     []InstallmentReport           `json:"installments"`
}

type InstallmentReport struct {
	Installment loandomain.Installment         `json:"installment"`
	Transaction *transactiondomain.Transaction `json:"transaction,omitempty"`
}

// ProcessResult identifies the invoice a workflow issued.
type ProcessResult struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	InvoiceNo string       `json:"invoice_no"`
}
