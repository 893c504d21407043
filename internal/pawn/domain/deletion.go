package domain

import (
	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
)

type DetachKind string

// Detach steps run in this order when a plan executes.
const (
	DetachNestedInvoices   DetachKind = "nested_invoices"
	DetachInstallments     DetachKind = "installments"
	DetachLoan             DetachKind = "loan"
	DetachTransactionItems DetachKind = "transaction_items"
	DetachItems            DetachKind = "items"
	DetachTransactions     DetachKind = "transactions"
	DetachInvoice          DetachKind = "invoice"
	// DetachLoanBalance recomputes a surviving loan after one of its
	// installments was removed.
	DetachLoanBalance DetachKind = "loan_balance"
)

type DetachStep struct {
	Kind DetachKind     `json:"kind"`
	IDs  []snowflake.ID `json:"ids"`
}

// DeletionPlan is the ordered list of soft deletes that voids one invoice.
type DeletionPlan struct {
	InvoiceNo        string           `json:"invoice_no"`
	InitialInvoiceNo string           `json:"initial_invoice_no"`
	Steps            []DetachStep     `json:"steps"`
	Reversals        []LedgerReversal `json:"ledger_reversals"`
}

// LedgerReversal names a posted entry that is mirrored when the plan runs.
type LedgerReversal struct {
	SourceType ledgerdomain.LedgerSourceType `json:"source_type"`
	SourceID   snowflake.ID                  `json:"source_id"`
}

// Add appends a step unless ids is empty.
func (p *DeletionPlan) Add(kind DetachKind, ids ...snowflake.ID) {
	if len(ids) == 0 {
		return
	}
	p.Steps = append(p.Steps, DetachStep{Kind: kind, IDs: ids})
}

// Kinds lists the step kinds in execution order.
func (p *DeletionPlan) Kinds() []DetachKind {
	out := make([]DetachKind, 0, len(p.Steps))
	for _, step := range p.Steps {
		out = append(out, step.Kind)
	}
	return out
}
