package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/pawnshop/internal/invoice/format"
	"github.com/smallbiznis/pawnshop/internal/invoice/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (invoicedomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "invoice.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}, &invoicedomain.InvoiceSequence{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)),
		Cfg:   config.Config{},
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func TestIssueAllocatesIncreasingNumbers(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 5; i++ {
		var inv *invoicedomain.Invoice
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			inv, err = svc.Issue(ctx, tx, invoicedomain.IssueRequest{
				Type:          invoicedomain.InvoiceTypeInitialPawn,
				TransactionID: node.Generate(),
				CustomerID:    node.Generate(),
			})
			return err
		})
		require.NoError(t, err)
		suffix, ok := invoiceformat.SequenceSuffix(inv.InvoiceNo)
		require.True(t, ok)
		assert.Greater(t, suffix, prev)
		prev = suffix
	}
	assert.EqualValues(t, 5, prev)
}

func TestIssueRequiresInitialNumberForFollowUps(t *testing.T) {
	svc, _, node := newTestService(t)

	_, err := svc.Issue(context.Background(), nil, invoicedomain.IssueRequest{
		Type:          invoicedomain.InvoiceTypeInstallmentPayment,
		TransactionID: node.Generate(),
	})
	assert.ErrorIs(t, err, invoicedomain.ErrMissingInitialNo)

	_, err = svc.Issue(context.Background(), nil, invoicedomain.IssueRequest{Type: 99})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidType)
}

func TestVoidedNumbersAreNotReused(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, nil, invoicedomain.IssueRequest{Type: invoicedomain.InvoiceTypeInitialPawn, TransactionID: node.Generate(), CustomerID: node.Generate()})
	require.NoError(t, err)

	n, err := svc.Void(ctx, nil, []snowflake.ID{first.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	found, err := svc.FindByInvoiceNo(ctx, nil, first.InvoiceNo)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = svc.GetByInvoiceNo(ctx, first.InvoiceNo)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	second, err := svc.Issue(ctx, nil, invoicedomain.IssueRequest{Type: invoicedomain.InvoiceTypeInitialPawn, TransactionID: node.Generate(), CustomerID: node.Generate()})
	require.NoError(t, err)
	assert.Greater(t, second.Sequence, first.Sequence)
	assert.NotEqual(t, first.InvoiceNo, second.InvoiceNo)

	last, err := svc.FindLast(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)
}

func TestListByInitialInvoiceNo(t *testing.T) {
	svc, _, node := newTestService(t)
	ctx := context.Background()
	customerID := node.Generate()

	initial, err := svc.Issue(ctx, nil, invoicedomain.IssueRequest{Type: invoicedomain.InvoiceTypeInitialPawn, TransactionID: node.Generate(), CustomerID: customerID})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := svc.Issue(ctx, nil, invoicedomain.IssueRequest{
			Type:             invoicedomain.InvoiceTypeInstallmentPayment,
			TransactionID:    node.Generate(),
			CustomerID:       customerID,
			InitialInvoiceNo: &initial.InvoiceNo,
		})
		require.NoError(t, err)
	}

	chain, err := svc.ListByInitialInvoiceNo(ctx, nil, initial.InvoiceNo)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	all, err := svc.ListByCustomer(ctx, nil, customerID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, invoicedomain.InvoiceTypeSettlement.String(), "settlement")
}
