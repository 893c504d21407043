package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	"github.com/smallbiznis/pawnshop/internal/lock"
	obslogger "github.com/smallbiznis/pawnshop/internal/observability/logger"
	"github.com/smallbiznis/pawnshop/internal/observability/metrics"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) PlanVoid(ctx context.Context, invoiceNo string) (*pawndomain.DeletionPlan, error) {
	invoice, err := s.findInvoice(ctx, s.db, invoiceNo)
	if err != nil {
		return nil, err
	}
	return s.buildPlan(ctx, s.db, invoice)
}

func (s *Service) VoidInvoice(ctx context.Context, invoiceNo string) (plan *pawndomain.DeletionPlan, err error) {
	started := time.Now()
	defer func() {
		reason := ""
		if err != nil {
			reason = classify(err)
		}
		s.workflow.Observe(metrics.WorkflowVoidInvoice, started, reason)
	}()

	invoice, err := s.findInvoice(ctx, s.db, invoiceNo)
	if err != nil {
		return nil, err
	}
	release, err := s.acquire(ctx, lock.LoanKey(chainRoot(invoice)))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock; the chain may have changed while waiting.
		current, err := s.findInvoice(ctx, tx, invoiceNo)
		if err != nil {
			return err
		}
		plan, err = s.buildPlan(ctx, tx, current)
		if err != nil {
			return err
		}
		if err := s.executePlan(ctx, tx, plan); err != nil {
			return err
		}

		invoiceID := current.ID.String()
		return s.audit(ctx, tx, "invoice.void", "invoice", &invoiceID, map[string]any{
			"invoice_no":   current.InvoiceNo,
			"invoice_type": current.InvoiceTypeID.String(),
			"steps":        len(plan.Steps),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceVoided(ctx, invoice.InvoiceTypeID.String())
	obslogger.WithInvoice(obslogger.WithContext(ctx, s.log), invoiceNo, plan.InitialInvoiceNo).
		Info("invoice voided", zap.Any("steps", plan.Kinds()))
	return plan, nil
}

func (s *Service) findInvoice(ctx context.Context, db *gorm.DB, invoiceNo string) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceSvc.FindByInvoiceNo(ctx, db, invoiceNo)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) buildPlan(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) (*pawndomain.DeletionPlan, error) {
	plan := &pawndomain.DeletionPlan{
		InvoiceNo:        invoice.InvoiceNo,
		InitialInvoiceNo: chainRoot(invoice),
	}

	switch invoice.InvoiceTypeID {
	case invoicedomain.InvoiceTypeInitialPawn:
		return plan, s.planInitial(ctx, db, invoice, plan)
	case invoicedomain.InvoiceTypeInstallmentPayment:
		return plan, s.planInstallment(ctx, db, invoice, plan)
	default:
		return nil, fmt.Errorf("%w: settlement invoices are voided with their initial invoice", pawndomain.ErrVoidNotAllowed)
	}
}

func (s *Service) planInitial(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, plan *pawndomain.DeletionPlan) error {
	nested, err := s.invoiceSvc.ListByInitialInvoiceNo(ctx, db, invoice.InvoiceNo)
	if err != nil {
		return err
	}
	nestedIDs := make([]snowflake.ID, 0, len(nested))
	trxIDs := make([]snowflake.ID, 0, len(nested)+1)
	for _, child := range nested {
		nestedIDs = append(nestedIDs, child.ID)
		trxIDs = append(trxIDs, child.TransactionID)
		plan.Reversals = append(plan.Reversals, pawndomain.LedgerReversal{
			SourceType: ledgerSource(child.InvoiceTypeID),
			SourceID:   child.TransactionID,
		})
	}
	plan.Add(pawndomain.DetachNestedInvoices, nestedIDs...)

	loan, err := s.loanSvc.FindByTransactionID(ctx, db, invoice.TransactionID)
	if err != nil {
		return err
	}
	if loan != nil {
		installments, err := s.loanSvc.ListInstallments(ctx, db, loan.ID)
		if err != nil {
			return err
		}
		installmentIDs := make([]snowflake.ID, 0, len(installments))
		for _, installment := range installments {
			installmentIDs = append(installmentIDs, installment.ID)
		}
		plan.Add(pawndomain.DetachInstallments, installmentIDs...)
		plan.Add(pawndomain.DetachLoan, loan.ID)
	}

	itemIDs, err := s.transactionSvc.ItemIDs(ctx, db, invoice.TransactionID)
	if err != nil {
		return err
	}
	if len(itemIDs) > 0 {
		plan.Add(pawndomain.DetachTransactionItems, invoice.TransactionID)
	}

	// Items that also back another live transaction stay in place.
	orphaned := make([]snowflake.ID, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		linked, err := s.transactionSvc.TransactionIDsByItem(ctx, db, itemID)
		if err != nil {
			return err
		}
		shared := false
		for _, trxID := range linked {
			if trxID != invoice.TransactionID {
				shared = true
				break
			}
		}
		if !shared {
			orphaned = append(orphaned, itemID)
		}
	}
	plan.Add(pawndomain.DetachItems, orphaned...)

	trxIDs = append(trxIDs, invoice.TransactionID)
	plan.Add(pawndomain.DetachTransactions, trxIDs...)
	plan.Add(pawndomain.DetachInvoice, invoice.ID)
	plan.Reversals = append(plan.Reversals, pawndomain.LedgerReversal{
		SourceType: ledgerdomain.SourceTypeLoanIssuance,
		SourceID:   invoice.TransactionID,
	})
	return nil
}

func (s *Service) planInstallment(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, plan *pawndomain.DeletionPlan) error {
	installment, err := s.loanSvc.FindInstallmentByTransactionID(ctx, db, invoice.TransactionID)
	if err != nil {
		return err
	}
	if installment != nil {
		loan, err := s.loanSvc.LockByInitialInvoiceNo(ctx, db, plan.InitialInvoiceNo)
		if err != nil {
			return err
		}
		if loan.IsSettled {
			return fmt.Errorf("%w: loan %s is settled", pawndomain.ErrVoidNotAllowed, plan.InitialInvoiceNo)
		}
		plan.Add(pawndomain.DetachInstallments, installment.ID)
	}
	plan.Add(pawndomain.DetachTransactions, invoice.TransactionID)
	plan.Add(pawndomain.DetachInvoice, invoice.ID)
	if installment != nil {
		plan.Add(pawndomain.DetachLoanBalance, installment.LoanID)
	}
	plan.Reversals = append(plan.Reversals, pawndomain.LedgerReversal{
		SourceType: ledgerdomain.SourceTypeInstallmentPayment,
		SourceID:   invoice.TransactionID,
	})
	return nil
}

func (s *Service) executePlan(ctx context.Context, tx *gorm.DB, plan *pawndomain.DeletionPlan) error {
	for _, step := range plan.Steps {
		if err := s.executeStep(ctx, tx, plan, step); err != nil {
			return fmt.Errorf("detach %s: %w", step.Kind, err)
		}
	}

	now := s.clock.Now()
	for _, reversal := range plan.Reversals {
		if _, err := s.ledgerSvc.Reverse(ctx, tx, reversal.SourceType, reversal.SourceID, now); err != nil {
			return fmt.Errorf("reverse %s %s: %w", reversal.SourceType, reversal.SourceID, err)
		}
	}
	return nil
}

func (s *Service) executeStep(ctx context.Context, tx *gorm.DB, plan *pawndomain.DeletionPlan, step pawndomain.DetachStep) error {
	switch step.Kind {
	case pawndomain.DetachNestedInvoices, pawndomain.DetachInvoice:
		_, err := s.invoiceSvc.Void(ctx, tx, step.IDs)
		return err
	case pawndomain.DetachInstallments:
		_, err := s.loanSvc.SoftDeleteInstallments(ctx, tx, step.IDs)
		return err
	case pawndomain.DetachLoan:
		for _, id := range step.IDs {
			if _, err := s.loanSvc.SoftDelete(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	case pawndomain.DetachTransactionItems:
		for _, id := range step.IDs {
			if _, err := s.transactionSvc.SoftDeleteItems(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	case pawndomain.DetachItems:
		_, err := s.itemSvc.SoftDelete(ctx, tx, step.IDs)
		return err
	case pawndomain.DetachTransactions:
		for _, id := range step.IDs {
			if _, err := s.transactionSvc.SoftDelete(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	case pawndomain.DetachLoanBalance:
		loan, err := s.loanSvc.LockByInitialInvoiceNo(ctx, tx, plan.InitialInvoiceNo)
		if err != nil {
			return err
		}
		return s.loanSvc.RecalculateBalance(ctx, tx, loan)
	default:
		return fmt.Errorf("unknown detach step %q", step.Kind)
	}
}

// chainRoot is the initial invoice number an invoice belongs to.
func chainRoot(invoice *invoicedomain.Invoice) string {
	if invoice.InitialInvoiceNo != nil && *invoice.InitialInvoiceNo != "" {
		return *invoice.InitialInvoiceNo
	}
	return invoice.InvoiceNo
}

func ledgerSource(t invoicedomain.InvoiceType) ledgerdomain.LedgerSourceType {
	switch t {
	case invoicedomain.InvoiceTypeInstallmentPayment:
		return ledgerdomain.SourceTypeInstallmentPayment
	case invoicedomain.InvoiceTypeSettlement:
		return ledgerdomain.SourceTypeLoanClosure
	default:
		return ledgerdomain.SourceTypeLoanIssuance
	}
}
