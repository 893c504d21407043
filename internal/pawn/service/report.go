package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
	"go.uber.org/zap"
)

func (s *Service) ProcessSingleReport(ctx context.Context, customerID snowflake.ID) (*pawndomain.CustomerReport, error) {
	customer, err := s.customerSvc.FindByID(ctx, nil, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, nil
	}

	loans, err := s.loanSvc.ListByCustomer(ctx, nil, customer.ID)
	if err != nil {
		return nil, err
	}

	loanIDs := make([]snowflake.ID, 0, len(loans))
	trxIDs := make([]snowflake.ID, 0, len(loans))
	for _, loan := range loans {
		loanIDs = append(loanIDs, loan.ID)
		trxIDs = append(trxIDs, loan.TransactionID)
	}

	installments, err := s.loanSvc.ListInstallments(ctx, nil, loanIDs...)
	if err != nil {
		return nil, err
	}
	for _, installment := range installments {
		trxIDs = append(trxIDs, installment.TransactionID)
	}

	transactions, err := s.transactionSvc.FindByIDs(ctx, nil, trxIDs)
	if err != nil {
		return nil, err
	}

	byLoan := make(map[snowflake.ID][]pawndomain.InstallmentReport, len(loans))
	for _, installment := range installments {
		entry := pawndomain.InstallmentReport{Installment: installment}
		if trx, ok := transactions[installment.TransactionID]; ok {
			entry.Transaction = &trx
		}
		byLoan[installment.LoanID] = append(byLoan[installment.LoanID], entry)
	}

	report := &pawndomain.CustomerReport{
		Customer:          *customer,
		Loans:             make([]pawndomain.LoanReport, 0, len(loans)),
		TotalLoanedAmount: decimal.Zero,
		TotalAmountPaid:   decimal.Zero,
		GeneratedAt:       s.clock.Now(),
	}

	for _, loan := range loans {
		trx, ok := transactions[loan.TransactionID]
		if !ok {
			s.log.Warn("loan transaction missing from report",
				zap.String("loan_id", loan.ID.String()),
				zap.String("transaction_id", loan.TransactionID.String()),
			)
			trx = transactiondomain.Transaction{ID: loan.TransactionID}
		}

		itemIDs, err := s.transactionSvc.ItemIDs(ctx, nil, loan.TransactionID)
		if err != nil {
			return nil, err
		}
		items, err := s.itemSvc.FindByIDs(ctx, nil, itemIDs)
		if err != nil {
			return nil, err
		}

		entry := pawndomain.LoanReport{
			Loan:         loan,
			Transaction:  trx,
			Items:        items,
			Installments: byLoan[loan.ID],
		}
		if entry.Installments == nil {
			entry.Installments = []pawndomain.InstallmentReport{}
		}
		invoice, err := s.invoiceSvc.FindByTransactionID(ctx, nil, loan.TransactionID)
		if err != nil {
			return nil, err
		}
		if invoice != nil {
			entry.InitialInvoiceNo = invoice.InvoiceNo
		}

		report.TotalLoanedAmount = report.TotalLoanedAmount.Add(trx.TotalAmount)
		for _, installment := range entry.Installments {
			report.TotalAmountPaid = report.TotalAmountPaid.Add(installment.Installment.AmountPaid)
		}
		report.Loans = append(report.Loans, entry)
	}

	report.TotalOutstanding = report.TotalLoanedAmount.Sub(report.TotalAmountPaid)
	sort.SliceStable(report.Loans, func(i, j int) bool {
		return report.Loans[i].Loan.StartDate.After(report.Loans[j].Loan.StartDate)
	})
	return report, nil
}
