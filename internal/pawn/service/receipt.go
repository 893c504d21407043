package service

import (
	"context"
	"fmt"
	"io"

	"github.com/smallbiznis/pawnshop/internal/audit/masking"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	"github.com/smallbiznis/pawnshop/internal/providers/pdf"
)

const receiptDateLayout = "2006-01-02"

func (s *Service) RenderInvoicePDF(ctx context.Context, invoiceNo string) (io.Reader, error) {
	invoice, err := s.findInvoice(ctx, s.db, invoiceNo)
	if err != nil {
		return nil, err
	}
	customer, err := s.customerSvc.FindByID(ctx, nil, invoice.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, pawndomain.ErrCustomerNotFound
	}
	trx, err := s.transactionSvc.FindByID(ctx, nil, invoice.TransactionID)
	if err != nil {
		return nil, err
	}
	if trx == nil {
		return nil, fmt.Errorf("transaction %s: %w", invoice.TransactionID, invoicedomain.ErrNotFound)
	}

	data := pdf.ReceiptData{
		Title:           receiptTitle(invoice.InvoiceTypeID),
		InvoiceNumber:   invoice.InvoiceNo,
		IssueDate:       invoice.GeneratedAt.Format(receiptDateLayout),
		CustomerName:    customer.Name,
		CustomerNIC:     masking.MaskIdentifier(customer.NIC),
		CustomerAddress: customer.Address,
		Subtotal:        trx.SubTotal.StringFixed(2),
		Total:           trx.TotalAmount.StringFixed(2),
	}
	if invoice.InitialInvoiceNo != nil {
		data.InitialInvoiceNo = *invoice.InitialInvoiceNo
	}

	switch invoice.InvoiceTypeID {
	case invoicedomain.InvoiceTypeInitialPawn:
		data.Interest = trx.InterestAmount.StringFixed(2)
		itemIDs, err := s.transactionSvc.ItemIDs(ctx, nil, trx.ID)
		if err != nil {
			return nil, err
		}
		items, err := s.itemSvc.FindByIDs(ctx, nil, itemIDs)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			data.Lines = append(data.Lines, pdf.ReceiptLine{
				Description: item.Name,
				Weight:      item.Weight.StringFixed(2),
				Amount:      item.Value.StringFixed(2),
			})
		}
		loan, err := s.loanSvc.FindByTransactionID(ctx, nil, trx.ID)
		if err != nil {
			return nil, err
		}
		if loan != nil {
			data.Notes = append(data.Notes,
				fmt.Sprintf("Interest rate %s%%. Redeem by %s.", trx.InterestRate.String(), loan.EndDate.Format(receiptDateLayout)),
			)
		}
	default:
		data.Lines = append(data.Lines, pdf.ReceiptLine{
			Description: receiptTitle(invoice.InvoiceTypeID),
			Amount:      trx.TotalAmount.StringFixed(2),
		})
		info, err := s.loanSvc.ProcessInstallments(ctx, data.InitialInvoiceNo)
		if err != nil {
			return nil, err
		}
		data.Notes = append(data.Notes, fmt.Sprintf("Outstanding balance %s.", info.OutstandingAmount.StringFixed(2)))
	}

	return s.pdf.GenerateReceipt(ctx, data)
}

func receiptTitle(t invoicedomain.InvoiceType) string {
	switch t {
	case invoicedomain.InvoiceTypeInstallmentPayment:
		return "Installment receipt"
	case invoicedomain.InvoiceTypeSettlement:
		return "Redemption receipt"
	default:
		return "Pawn ticket"
	}
}
