package pdf

import (
	"context"
	"io"

	"github.com/smallbiznis/pawnshop/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// Provider renders printable pawn receipts.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type ReceiptData struct {
	Title            string
	InvoiceNumber    string
	InitialInvoiceNo string
	IssueDate        string

	CustomerName    string
	CustomerNIC     string
	CustomerAddress string

	Lines []ReceiptLine

	Subtotal string
	Interest string
	Total    string
	// Notes are printed under the totals, one per row.
	Notes []string
}

type ReceiptLine struct {
	Description string
	Weight      string
	Amount      string
}

type PDFProvider struct {
	shopName    string
	shopAddress string
}

func New(cfg config.Config) Provider {
	return &PDFProvider{
		shopName:    cfg.ShopName,
		shopAddress: cfg.ShopAddress,
	}
}
