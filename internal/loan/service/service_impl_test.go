package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/pawnshop/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/pawnshop/internal/invoice/service"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	"github.com/smallbiznis/pawnshop/internal/loan/repository"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	referencerepo "github.com/smallbiznis/pawnshop/internal/reference/repository"
	referencesvc "github.com/smallbiznis/pawnshop/internal/reference/service"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
	transactionrepo "github.com/smallbiznis/pawnshop/internal/transaction/repository"
	transactionsvc "github.com/smallbiznis/pawnshop/internal/transaction/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testStart = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	svc        loandomain.Service
	invoices   invoicedomain.Service
	trxs       transactiondomain.Service
	customerID snowflake.ID
}

func newFixture(t *testing.T, policy config.PawnPolicy) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "loan.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&referencedomain.LoanPeriod{},
		&transactiondomain.Transaction{},
		&transactiondomain.TransactionItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceSequence{},
		&loandomain.Loan{},
		&loandomain.Installment{},
	))

	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(testStart)
	log := zap.NewNop()

	refs := referencesvc.New(referencesvc.Params{DB: db, Log: log, Clock: clk, Repo: referencerepo.Provide()})
	trxs := transactionsvc.New(transactionsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: transactionrepo.Provide()})
	invoices := invoicesvc.NewService(invoicesvc.ServiceParam{DB: db, Log: log, GenID: node, Clock: clk, Repo: invoicerepo.Provide()})

	svc := New(Params{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          clk,
		Policy:         config.NewStaticPolicyHolder(policy),
		Repo:           repository.Provide(),
		InvoiceSvc:     invoices,
		TransactionSvc: trxs,
		ReferenceSvc:   refs,
	})
	return &fixture{db: db, node: node, clock: clk, svc: svc, invoices: invoices, trxs: trxs, customerID: node.Generate()}
}

func (f *fixture) period(t *testing.T, months int) referencedomain.LoanPeriod {
	t.Helper()
	p := referencedomain.LoanPeriod{
		ID:        f.node.Generate(),
		Name:      f.node.Generate().String(),
		Period:    months,
		CreatedAt: testStart,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

// pawn records an issuance of 1000 at 10% and opens its loan.
func (f *fixture) pawn(t *testing.T, period referencedomain.LoanPeriod) (*invoicedomain.Invoice, *loandomain.Loan) {
	t.Helper()
	ctx := context.Background()
	var inv *invoicedomain.Invoice
	var loan *loandomain.Loan
	err := f.db.Transaction(func(tx *gorm.DB) error {
		trx, err := f.trxs.Record(ctx, tx, transactiondomain.RecordRequest{
			CustomerID:   f.customerID,
			Type:         transactiondomain.TransactionTypeLoanIssuance,
			SubTotal:     decimal.NewFromInt(1000),
			InterestRate: decimal.NewFromInt(10),
		})
		if err != nil {
			return err
		}
		inv, err = f.invoices.Issue(ctx, tx, invoicedomain.IssueRequest{
			Type:          invoicedomain.InvoiceTypeInitialPawn,
			TransactionID: trx.ID,
			CustomerID:    f.customerID,
		})
		if err != nil {
			return err
		}
		loan, err = f.svc.Open(ctx, tx, loandomain.OpenRequest{
			TransactionID: trx.ID,
			CustomerID:    f.customerID,
			LoanPeriodID:  period.ID,
			StartDate:     testStart,
			TotalAmount:   trx.TotalAmount,
		})
		return err
	})
	require.NoError(t, err)
	return inv, loan
}

func (f *fixture) pay(t *testing.T, invoiceNo string, number int, amount int64) (*loandomain.Installment, error) {
	t.Helper()
	ctx := context.Background()
	var installment *loandomain.Installment
	err := f.db.Transaction(func(tx *gorm.DB) error {
		loan, err := f.svc.LockByInitialInvoiceNo(ctx, tx, invoiceNo)
		if err != nil {
			return err
		}
		trx, err := f.trxs.Record(ctx, tx, transactiondomain.RecordRequest{
			CustomerID: f.customerID,
			Type:       transactiondomain.TransactionTypeInstallmentPayment,
			SubTotal:   decimal.NewFromInt(amount),
		})
		if err != nil {
			return err
		}
		installment, err = f.svc.RecordInstallment(ctx, tx, loan, loandomain.RecordInstallmentRequest{
			TransactionID:     trx.ID,
			InstallmentNumber: number,
			Amount:            decimal.NewFromInt(amount),
		})
		if err != nil {
			return err
		}
		_, err = f.svc.UpdateInitialLoan(ctx, tx, invoiceNo, decimal.NewFromInt(amount))
		return err
	})
	return installment, err
}

func TestOpenDerivesEndDateAndOutstanding(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	_, loan := f.pawn(t, f.period(t, 3))

	assert.Equal(t, time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC), loan.EndDate)
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(1100)))
	assert.True(t, loan.AmountPaid.IsZero())
	assert.False(t, loan.IsSettled)
}

func TestOpenRejectsUnknownOrEmptyPeriod(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	ctx := context.Background()

	_, err := f.svc.Open(ctx, nil, loandomain.OpenRequest{LoanPeriodID: f.node.Generate()})
	assert.ErrorIs(t, err, loandomain.ErrLoanPeriodNotFound)

	zero := f.period(t, 0)
	_, err = f.svc.Open(ctx, nil, loandomain.OpenRequest{LoanPeriodID: zero.ID})
	assert.ErrorIs(t, err, loandomain.ErrInvalidLoanPeriod)
}

func TestProcessInstallmentsBreakdown(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	inv, _ := f.pawn(t, f.period(t, 3))

	info, err := f.svc.ProcessInstallments(context.Background(), inv.InvoiceNo)
	require.NoError(t, err)

	// Jan 15 -> Apr 15 2024 spans 91 days.
	assert.Equal(t, 91, info.TotalLoanDays)
	assert.True(t, info.InterestAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, info.DailyInterest.Equal(decimal.RequireFromString("1.0989")), info.DailyInterest.String())
	assert.WithinDuration(t, inv.GeneratedAt, info.LastInstallmentDate, 0)
	assert.Equal(t, 3, info.Period)
}

func TestProcessInstallmentsGuards(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	ctx := context.Background()

	_, err := f.svc.ProcessInstallments(ctx, "PWN-20240101-999999")
	assert.ErrorIs(t, err, loandomain.ErrInvoiceNotFound)

	period := f.period(t, 3)
	inv, loan := f.pawn(t, period)

	require.NoError(t, f.db.Model(&referencedomain.LoanPeriod{}).Where("id = ?", period.ID).Update("period", 0).Error)
	_, err = f.svc.ProcessInstallments(ctx, inv.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrInvalidLoanPeriod)

	require.NoError(t, f.db.Model(&referencedomain.LoanPeriod{}).Where("id = ?", period.ID).Update("period", 3).Error)
	require.NoError(t, f.db.Model(&loandomain.Loan{}).Where("id = ?", loan.ID).Update("end_date", loan.StartDate).Error)
	_, err = f.svc.ProcessInstallments(ctx, inv.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrZeroLoanDuration)
}

func TestInstallmentsKeepBalanceInvariant(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	inv, _ := f.pawn(t, f.period(t, 3))

	first, err := f.pay(t, inv.InvoiceNo, 0, 300)
	require.NoError(t, err)
	assert.Equal(t, 1, first.InstallmentNumber)

	f.clock.Advance(24 * time.Hour)
	second, err := f.pay(t, inv.InvoiceNo, 0, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, second.InstallmentNumber)

	loan, err := f.svc.LockByInitialInvoiceNo(context.Background(), nil, inv.InvoiceNo)
	require.NoError(t, err)
	assert.True(t, loan.AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(600)))
	assert.True(t, loan.AmountPaid.Add(loan.OutstandingAmount).Equal(decimal.NewFromInt(1100)))

	info, err := f.svc.ProcessInstallments(context.Background(), inv.InvoiceNo)
	require.NoError(t, err)
	assert.WithinDuration(t, second.PaymentDate, info.LastInstallmentDate, 0)
}

func TestRecordInstallmentGuards(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	inv, _ := f.pawn(t, f.period(t, 3))

	_, err := f.pay(t, inv.InvoiceNo, 2, 100)
	require.NoError(t, err)

	_, err = f.pay(t, inv.InvoiceNo, 2, 100)
	assert.ErrorIs(t, err, loandomain.ErrDuplicateInstallment)

	_, err = f.pay(t, inv.InvoiceNo, -1, 100)
	assert.ErrorIs(t, err, loandomain.ErrInvalidInstallmentNumber)

	_, err = f.pay(t, inv.InvoiceNo, 0, 0)
	assert.ErrorIs(t, err, loandomain.ErrInvalidAmount)

	_, err = f.pay(t, inv.InvoiceNo, 0, 5000)
	assert.ErrorIs(t, err, loandomain.ErrOverpayment)
}

func TestOverpaymentAllowedByPolicy(t *testing.T) {
	policy := config.DefaultPawnPolicy()
	policy.AllowOverpayment = true
	f := newFixture(t, policy)
	inv, _ := f.pawn(t, f.period(t, 3))

	_, err := f.pay(t, inv.InvoiceNo, 0, 1500)
	require.NoError(t, err)

	loan, err := f.svc.LockByInitialInvoiceNo(context.Background(), nil, inv.InvoiceNo)
	require.NoError(t, err)
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(-400)))
}

func TestSettleLoan(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	ctx := context.Background()
	inv, _ := f.pawn(t, f.period(t, 3))

	ok, err := f.svc.SettleLoan(ctx, nil, "PWN-20240101-999999")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.SettleLoan(ctx, nil, inv.InvoiceNo)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.SettleLoan(ctx, nil, inv.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrLoanSettled)
	assert.False(t, ok)

	_, err = f.pay(t, inv.InvoiceNo, 0, 10)
	assert.ErrorIs(t, err, loandomain.ErrLoanSettled)
}

func TestSchedule(t *testing.T) {
	f := newFixture(t, config.DefaultPawnPolicy())
	inv, _ := f.pawn(t, f.period(t, 3))

	_, err := f.pay(t, inv.InvoiceNo, 2, 100)
	require.NoError(t, err)

	entries, err := f.svc.Schedule(context.Background(), inv.InvoiceNo)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.False(t, entries[0].Paid)
	assert.WithinDuration(t, time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC), entries[0].DueDate, 0)
	assert.True(t, entries[1].Paid)
	require.NotNil(t, entries[1].AmountPaid)
	assert.True(t, entries[1].AmountPaid.Equal(decimal.NewFromInt(100)))
	assert.False(t, entries[2].Paid)
}
