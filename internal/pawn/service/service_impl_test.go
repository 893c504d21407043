package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	auditrepo "github.com/smallbiznis/pawnshop/internal/audit/repository"
	auditsvc "github.com/smallbiznis/pawnshop/internal/audit/service"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	customerrepo "github.com/smallbiznis/pawnshop/internal/customer/repository"
	customersvc "github.com/smallbiznis/pawnshop/internal/customer/service"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/pawnshop/internal/invoice/format"
	invoicerepo "github.com/smallbiznis/pawnshop/internal/invoice/repository"
	invoicesvc "github.com/smallbiznis/pawnshop/internal/invoice/service"
	itemdomain "github.com/smallbiznis/pawnshop/internal/item/domain"
	itemrepo "github.com/smallbiznis/pawnshop/internal/item/repository"
	itemsvc "github.com/smallbiznis/pawnshop/internal/item/service"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	ledgersvc "github.com/smallbiznis/pawnshop/internal/ledger/service"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	loanrepo "github.com/smallbiznis/pawnshop/internal/loan/repository"
	loansvc "github.com/smallbiznis/pawnshop/internal/loan/service"
	"github.com/smallbiznis/pawnshop/internal/lock"
	"github.com/smallbiznis/pawnshop/internal/migration"
	obslogger "github.com/smallbiznis/pawnshop/internal/observability/logger"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	"github.com/smallbiznis/pawnshop/internal/providers/pdf"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	referencerepo "github.com/smallbiznis/pawnshop/internal/reference/repository"
	referencesvc "github.com/smallbiznis/pawnshop/internal/reference/service"
	"github.com/smallbiznis/pawnshop/internal/seed"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
	transactionrepo "github.com/smallbiznis/pawnshop/internal/transaction/repository"
	transactionsvc "github.com/smallbiznis/pawnshop/internal/transaction/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

const testNIC = "912345678V"

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	svc    pawndomain.Service
	loans  loandomain.Service
	ledger ledgerdomain.Service
	locker lock.Locker
	period referencedomain.LoanPeriod
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pawn.db")), &gorm.Config{
		Logger: obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, migration.Migrate(db))
	require.NoError(t, seed.EnsureReferenceData(context.Background(), db))

	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()
	policy := config.NewStaticPolicyHolder(config.DefaultPawnPolicy())

	audits := auditsvc.NewService(auditsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide()})
	refs := referencesvc.New(referencesvc.Params{DB: db, Log: log, Clock: clk, Repo: referencerepo.Provide()})
	customers := customersvc.New(customersvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: customerrepo.Provide(), AuditSvc: audits})
	items := itemsvc.New(itemsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: itemrepo.Provide()})
	trxs := transactionsvc.New(transactionsvc.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: transactionrepo.Provide()})
	invoices := invoicesvc.NewService(invoicesvc.ServiceParam{DB: db, Log: log, GenID: node, Clock: clk, Repo: invoicerepo.Provide()})
	ledger := ledgersvc.NewService(ledgersvc.Params{DB: db, Log: log, GenID: node, Clock: clk, AuditSvc: audits})
	loans := loansvc.New(loansvc.Params{
		DB:             db,
		Log:            log,
		GenID:          node,
		Clock:          clk,
		Policy:         policy,
		Repo:           loanrepo.Provide(),
		InvoiceSvc:     invoices,
		TransactionSvc: trxs,
		ReferenceSvc:   refs,
	})

	locker := lock.NewLocalLocker()
	svc := New(Params{
		DB:             db,
		Log:            log,
		Clock:          clk,
		Locker:         locker,
		Policy:         policy,
		CustomerSvc:    customers,
		ItemSvc:        items,
		TransactionSvc: trxs,
		InvoiceSvc:     invoices,
		LoanSvc:        loans,
		ReferenceSvc:   refs,
		LedgerSvc:      ledger,
		AuditSvc:       audits,
		PDF:            pdf.New(config.Config{ShopName: "Gold Point"}),
	})

	period := referencedomain.LoanPeriod{
		ID:                  node.Generate(),
		Name:                "quarter",
		Period:              3,
		DefaultInterestRate: decimal.NewFromInt(2),
		CreatedAt:           testNow,
	}
	require.NoError(t, db.Create(&period).Error)

	return &fixture{db: db, node: node, clock: clk, svc: svc, loans: loans, ledger: ledger, locker: locker, period: period}
}

func customerInput(nic string) customerdomain.CreateCustomerRequest {
	return customerdomain.CreateCustomerRequest{NIC: nic, Name: "Nimal Perera", Phone: "0771234567"}
}

func (f *fixture) pawn(t *testing.T, nic string, value int64) pawndomain.ProcessResult {
	t.Helper()
	rate := decimal.NewFromInt(2)
	res, err := f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
		Customer:     customerInput(nic),
		LoanPeriodID: f.period.ID,
		InterestRate: &rate,
		Items:        []pawndomain.ItemInput{{Name: "22K chain", Value: decimal.NewFromInt(value)}},
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) payment(nic, initialNo string, amount int64) (pawndomain.ProcessResult, error) {
	return f.svc.ProcessInvoice(context.Background(), pawndomain.InstallmentPaymentRequest{
		Customer:         customerInput(nic),
		InitialInvoiceNo: initialNo,
		Amount:           decimal.NewFromInt(amount),
	})
}

func (f *fixture) settle(nic, initialNo string) (pawndomain.ProcessResult, error) {
	return f.svc.ProcessInvoice(context.Background(), pawndomain.SettlementRequest{
		Customer:         customerInput(nic),
		InitialInvoiceNo: initialNo,
	})
}

func (f *fixture) loanFor(t *testing.T, initialNo string) loandomain.Loan {
	t.Helper()
	loan, err := f.loans.LockByInitialInvoiceNo(context.Background(), nil, initialNo)
	require.NoError(t, err)
	return *loan
}

func (f *fixture) itemsOf(t *testing.T, loan loandomain.Loan) []itemdomain.Item {
	t.Helper()
	var items []itemdomain.Item
	require.NoError(t, f.db.
		Joins("JOIN transaction_items ti ON ti.item_id = items.id AND ti.deleted_at IS NULL").
		Where("ti.transaction_id = ?", loan.TransactionID).
		Find(&items).Error)
	return items
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func TestScenarioInitialPawn(t *testing.T) {
	f := newFixture(t)
	res := f.pawn(t, testNIC, 10000)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", res.InvoiceID).Error)
	assert.Equal(t, invoicedomain.InvoiceTypeInitialPawn, invoice.InvoiceTypeID)
	assert.Equal(t, res.InvoiceNo, invoice.InvoiceNo)
	assert.Nil(t, invoice.InitialInvoiceNo)

	loan := f.loanFor(t, res.InvoiceNo)
	assert.True(t, loan.EndDate.Equal(loan.StartDate.AddDate(0, 3, 0)))
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(10200)), loan.OutstandingAmount.String())

	items := f.itemsOf(t, loan)
	require.Len(t, items, 1)
	assert.Equal(t, itemdomain.ItemStatusInStock, items[0].Status)
	assert.Equal(t, loan.CustomerID, items[0].CustomerID)

	balances, err := f.ledger.Balances(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, balances)
}

func TestScenarioInstallment(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	res, err := f.payment(testNIC, initial.InvoiceNo, 500)
	require.NoError(t, err)

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.AmountPaid.Equal(decimal.NewFromInt(500)))
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(9700)))

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", res.InvoiceID).Error)
	assert.Equal(t, invoicedomain.InvoiceTypeInstallmentPayment, invoice.InvoiceTypeID)
	require.NotNil(t, invoice.InitialInvoiceNo)
	assert.Equal(t, initial.InvoiceNo, *invoice.InitialInvoiceNo)
}

func TestScenarioSettlement(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	res, err := f.settle(testNIC, initial.InvoiceNo)
	require.NoError(t, err)

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.IsSettled)
	require.NotNil(t, loan.SettledAt)

	for _, item := range f.itemsOf(t, loan) {
		assert.Equal(t, itemdomain.ItemStatusRedeemed, item.Status)
	}

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", res.InvoiceID).Error)
	assert.Equal(t, invoicedomain.InvoiceTypeSettlement, invoice.InvoiceTypeID)

	var closure transactiondomain.Transaction
	require.NoError(t, f.db.First(&closure, "id = ?", invoice.TransactionID).Error)
	assert.Equal(t, transactiondomain.TransactionTypeLoanClosure, closure.Type)
	assert.True(t, closure.SubTotal.Equal(decimal.NewFromInt(10200)))

	_, err = f.settle(testNIC, initial.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrLoanSettled)
}

func TestScenarioZeroPeriodLoan(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	require.NoError(t, f.db.Model(&referencedomain.LoanPeriod{}).Where("id = ?", f.period.ID).Update("period", 0).Error)

	info, err := f.svc.ProcessInstallments(context.Background(), initial.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrInvalidLoanPeriod)
	assert.Nil(t, info)
}

func TestScenarioUnknownInvoiceType(t *testing.T) {
	f := newFixture(t)

	_, err := pawndomain.DecodeInvoiceRequest(pawndomain.InvoiceRequestDTO{
		InvoiceTypeID: 99,
		Customer:      customerInput(testNIC),
	})
	assert.ErrorIs(t, err, pawndomain.ErrInvalidInvoiceType)

	_, err = f.svc.ProcessInvoice(context.Background(), nil)
	assert.ErrorIs(t, err, pawndomain.ErrInvalidRequest)

	assert.Zero(t, f.count(t, &customerdomain.Customer{}))
	assert.Zero(t, f.count(t, &transactiondomain.Transaction{}))
	assert.Zero(t, f.count(t, &invoicedomain.Invoice{}))
}

func TestProcessInvoiceIsAtomic(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("invoice store unavailable")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_invoices", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "invoices" {
			_ = tx.AddError(boom)
		}
	}))

	rate := decimal.NewFromInt(2)
	_, err := f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
		Customer:     customerInput(testNIC),
		LoanPeriodID: f.period.ID,
		InterestRate: &rate,
		Items:        []pawndomain.ItemInput{{Name: "ring", Value: decimal.NewFromInt(5000)}},
	})
	require.ErrorIs(t, err, boom)

	assert.Zero(t, f.count(t, &customerdomain.Customer{}))
	assert.Zero(t, f.count(t, &transactiondomain.Transaction{}))
	assert.Zero(t, f.count(t, &transactiondomain.TransactionItem{}))
	assert.Zero(t, f.count(t, &itemdomain.Item{}))
	assert.Zero(t, f.count(t, &loandomain.Loan{}))
	assert.Zero(t, f.count(t, &invoicedomain.Invoice{}))
	assert.Zero(t, f.count(t, &ledgerdomain.LedgerEntry{}))
	assert.Zero(t, f.count(t, &auditdomain.AuditLog{}))
}

func TestInvoiceNumbersAreUniqueAndIncreasing(t *testing.T) {
	f := newFixture(t)

	seen := map[string]struct{}{}
	var prev int64
	for i := 0; i < 6; i++ {
		var res pawndomain.ProcessResult
		if i%2 == 0 {
			res = f.pawn(t, testNIC, 1000)
		} else {
			var err error
			res, err = f.payment(testNIC, f.firstInitial(t), 10)
			require.NoError(t, err)
		}
		_, dup := seen[res.InvoiceNo]
		assert.False(t, dup, res.InvoiceNo)
		seen[res.InvoiceNo] = struct{}{}

		suffix, ok := invoiceformat.SequenceSuffix(res.InvoiceNo)
		require.True(t, ok, res.InvoiceNo)
		assert.Greater(t, suffix, prev)
		prev = suffix
	}
}

func (f *fixture) firstInitial(t *testing.T) string {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.
		Where("invoice_type_id = ?", invoicedomain.InvoiceTypeInitialPawn).
		Order("sequence asc").
		First(&invoice).Error)
	return invoice.InvoiceNo
}

func TestOutstandingTracksInstallments(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)
	total := decimal.NewFromInt(10200)

	paid := decimal.Zero
	for _, amount := range []int64{250, 1000, 1, 4000} {
		f.clock.Advance(24 * time.Hour)
		_, err := f.payment(testNIC, initial.InvoiceNo, amount)
		require.NoError(t, err)
		paid = paid.Add(decimal.NewFromInt(amount))

		loan := f.loanFor(t, initial.InvoiceNo)
		assert.True(t, loan.AmountPaid.Equal(paid))
		assert.True(t, loan.OutstandingAmount.Equal(total.Sub(paid)), loan.OutstandingAmount.String())
	}

	_, err := f.payment(testNIC, initial.InvoiceNo, 10000)
	assert.ErrorIs(t, err, loandomain.ErrOverpayment)
	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.OutstandingAmount.Equal(total.Sub(paid)))
}

func TestConcurrentInstallmentsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payment(testNIC, initial.InvoiceNo, 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.AmountPaid.Equal(decimal.NewFromInt(500)), loan.AmountPaid.String())

	installments, err := f.loans.ListInstallments(context.Background(), nil, loan.ID)
	require.NoError(t, err)
	numbers := map[int]struct{}{}
	for _, installment := range installments {
		numbers[installment.InstallmentNumber] = struct{}{}
	}
	assert.Len(t, numbers, workers)
}

func TestSettlementGatesRedemption(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	_, err := f.settle(testNIC, "PWN-20990101-999999")
	require.ErrorIs(t, err, loandomain.ErrLoanNotFound)

	var closures int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).
		Where("transaction_type = ?", transactiondomain.TransactionTypeLoanClosure).
		Count(&closures).Error)
	assert.Zero(t, closures)

	loan := f.loanFor(t, initial.InvoiceNo)
	for _, item := range f.itemsOf(t, loan) {
		assert.Equal(t, itemdomain.ItemStatusInStock, item.Status)
	}

	// A follow-up invoice number is not a pawn ticket.
	payment, err := f.payment(testNIC, initial.InvoiceNo, 100)
	require.NoError(t, err)
	_, err = f.settle(testNIC, payment.InvoiceNo)
	assert.ErrorIs(t, err, loandomain.ErrLoanNotFound)
}

func TestCustomerResolutionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first := f.pawn(t, testNIC, 1000)
	second := f.pawn(t, " 912345678v ", 1000)

	var a, b invoicedomain.Invoice
	require.NoError(t, f.db.First(&a, "id = ?", first.InvoiceID).Error)
	require.NoError(t, f.db.First(&b, "id = ?", second.InvoiceID).Error)
	assert.Equal(t, a.CustomerID, b.CustomerID)
	assert.EqualValues(t, 1, f.count(t, &customerdomain.Customer{}))
}

func TestInstallmentRequiresOwningCustomer(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 1000)

	_, err := f.payment("200012345678", initial.InvoiceNo, 100)
	assert.ErrorIs(t, err, pawndomain.ErrCustomerMismatch)
}

func TestRepawnExistingItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initial := f.pawn(t, testNIC, 8000)
	item := f.itemsOf(t, f.loanFor(t, initial.InvoiceNo))[0]

	repawn := func(nic string, id snowflake.ID) (pawndomain.ProcessResult, error) {
		return f.svc.ProcessInvoice(ctx, pawndomain.InitialPawnRequest{
			Customer:     customerInput(nic),
			LoanPeriodID: f.period.ID,
			Items:        []pawndomain.ItemInput{{ID: id}},
		})
	}

	_, err := repawn(testNIC, item.ID)
	assert.ErrorIs(t, err, pawndomain.ErrItemAlreadyPledged)
	_, err = repawn("200012345678", item.ID)
	assert.ErrorIs(t, err, pawndomain.ErrItemNotOwned)
	_, err = repawn(testNIC, f.node.Generate())
	assert.ErrorIs(t, err, pawndomain.ErrItemNotFound)

	_, err = f.settle(testNIC, initial.InvoiceNo)
	require.NoError(t, err)
	res, err := repawn(testNIC, item.ID)
	require.NoError(t, err)

	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", res.InvoiceID).Error)
	var trx transactiondomain.Transaction
	require.NoError(t, f.db.First(&trx, "id = ?", invoice.TransactionID).Error)
	// Period default rate applies when the request carries none.
	assert.True(t, trx.InterestRate.Equal(decimal.NewFromInt(2)))
	assert.True(t, trx.SubTotal.Equal(decimal.NewFromInt(8000)))
}

func TestRepawnWaitsForItemLock(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 8000)
	item := f.itemsOf(t, f.loanFor(t, initial.InvoiceNo))[0]
	_, err := f.settle(testNIC, initial.InvoiceNo)
	require.NoError(t, err)

	release, err := f.locker.Acquire(context.Background(), lock.ItemKey(item.ID.String()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.svc.ProcessInvoice(ctx, pawndomain.InitialPawnRequest{
		Customer:     customerInput(testNIC),
		LoanPeriodID: f.period.ID,
		Items:        []pawndomain.ItemInput{{ID: item.ID}},
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	release()

	// Two tellers re-pledging the same item: one loan wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
				Customer:     customerInput(testNIC),
				LoanPeriodID: f.period.ID,
				Items:        []pawndomain.ItemInput{{ID: item.ID}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, pawndomain.ErrItemAlreadyPledged)
	}
	assert.Equal(t, 1, succeeded)
}

func TestLockKeysForRequests(t *testing.T) {
	a, b := snowflake.ID(7), snowflake.ID(3)
	keys := lockKeys(pawndomain.InitialPawnRequest{Items: []pawndomain.ItemInput{{ID: a}, {Name: "new"}, {ID: b}, {ID: a}}})
	assert.Equal(t, []string{lock.ItemKey("3"), lock.ItemKey("7")}, keys)

	assert.Empty(t, lockKeys(pawndomain.InitialPawnRequest{Items: []pawndomain.ItemInput{{Name: "new"}}}))
	assert.Equal(t, []string{lock.LoanKey("PWN-1")}, lockKeys(pawndomain.InstallmentPaymentRequest{InitialInvoiceNo: "PWN-1"}))
	assert.Equal(t, []string{lock.LoanKey("PWN-1")}, lockKeys(pawndomain.SettlementRequest{InitialInvoiceNo: "PWN-1"}))
}

func TestLoanToValueLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
		Customer:     customerInput(testNIC),
		LoanPeriodID: f.period.ID,
		LoanAmount:   decimal.NewFromInt(5001),
		Items:        []pawndomain.ItemInput{{Name: "bangle", Value: decimal.NewFromInt(5000)}},
	})
	assert.ErrorIs(t, err, pawndomain.ErrLoanExceedsValue)

	_, err = f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
		Customer:     customerInput(testNIC),
		LoanPeriodID: f.node.Generate(),
		Items:        []pawndomain.ItemInput{{Name: "bangle", Value: decimal.NewFromInt(5000)}},
	})
	assert.ErrorIs(t, err, loandomain.ErrLoanPeriodNotFound)
	assert.Zero(t, f.count(t, &customerdomain.Customer{}))
}

func TestItemValueEstimatedFromKarat(t *testing.T) {
	f := newFixture(t)

	var karat referencedomain.Karat
	require.NoError(t, f.db.First(&karat, "code = ?", "22K").Error)

	res, err := f.svc.ProcessInvoice(context.Background(), pawndomain.InitialPawnRequest{
		Customer:     customerInput(testNIC),
		LoanPeriodID: f.period.ID,
		Items:        []pawndomain.ItemInput{{Name: "necklace", KaratID: &karat.ID, Weight: decimal.NewFromInt(2)}},
	})
	require.NoError(t, err)

	items := f.itemsOf(t, f.loanFor(t, res.InvoiceNo))
	require.Len(t, items, 1)
	assert.True(t, items[0].Value.Equal(decimal.RequireFromString("44900")), items[0].Value.String())
}

func TestVoidInitialInvoiceCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initial := f.pawn(t, testNIC, 10000)
	_, err := f.payment(testNIC, initial.InvoiceNo, 500)
	require.NoError(t, err)

	plan, err := f.svc.PlanVoid(ctx, initial.InvoiceNo)
	require.NoError(t, err)
	assert.Equal(t, []pawndomain.DetachKind{
		pawndomain.DetachNestedInvoices,
		pawndomain.DetachInstallments,
		pawndomain.DetachLoan,
		pawndomain.DetachTransactionItems,
		pawndomain.DetachItems,
		pawndomain.DetachTransactions,
		pawndomain.DetachInvoice,
	}, plan.Kinds())
	assert.Len(t, plan.Reversals, 2)

	executed, err := f.svc.VoidInvoice(ctx, initial.InvoiceNo)
	require.NoError(t, err)
	assert.Equal(t, plan.Kinds(), executed.Kinds())

	_, err = f.svc.GetInvoice(ctx, initial.InvoiceNo)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
	assert.Zero(t, f.count(t, &loandomain.Loan{}))
	assert.Zero(t, f.count(t, &loandomain.Installment{}))
	assert.Zero(t, f.count(t, &itemdomain.Item{}))
	assert.Zero(t, f.count(t, &transactiondomain.Transaction{}))

	var voided invoicedomain.Invoice
	require.NoError(t, f.db.Unscoped().First(&voided, "invoice_no = ?", initial.InvoiceNo).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusVoid, voided.Status)

	var reversals int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).
		Where("source_type = ?", ledgerdomain.SourceTypeReversal).
		Count(&reversals).Error)
	assert.EqualValues(t, 2, reversals)

	balances, err := f.ledger.Balances(ctx)
	require.NoError(t, err)
	for _, balance := range balances {
		assert.True(t, balance.Balance.IsZero(), "%s: %s", balance.Code, balance.Balance)
	}

	// Numbers stay burnt after a void.
	next := f.pawn(t, testNIC, 1000)
	assert.NotEqual(t, initial.InvoiceNo, next.InvoiceNo)
}

func TestVoidInstallmentRecomputesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initial := f.pawn(t, testNIC, 10000)
	first, err := f.payment(testNIC, initial.InvoiceNo, 300)
	require.NoError(t, err)
	_, err = f.payment(testNIC, initial.InvoiceNo, 200)
	require.NoError(t, err)

	plan, err := f.svc.VoidInvoice(ctx, first.InvoiceNo)
	require.NoError(t, err)
	assert.Equal(t, []pawndomain.DetachKind{
		pawndomain.DetachInstallments,
		pawndomain.DetachTransactions,
		pawndomain.DetachInvoice,
		pawndomain.DetachLoanBalance,
	}, plan.Kinds())

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.AmountPaid.Equal(decimal.NewFromInt(200)))
	assert.True(t, loan.OutstandingAmount.Equal(decimal.NewFromInt(10000)))

	// The voided installment number is not reused.
	next, err := f.payment(testNIC, initial.InvoiceNo, 50)
	require.NoError(t, err)
	var installment loandomain.Installment
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", next.InvoiceID).Error)
	require.NoError(t, f.db.First(&installment, "transaction_id = ?", invoice.TransactionID).Error)
	assert.Equal(t, 3, installment.InstallmentNumber)
}

func TestVoidSettlementInvoiceIsRejected(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)
	settlement, err := f.settle(testNIC, initial.InvoiceNo)
	require.NoError(t, err)

	_, err = f.svc.VoidInvoice(context.Background(), settlement.InvoiceNo)
	assert.ErrorIs(t, err, pawndomain.ErrVoidNotAllowed)

	_, err = f.svc.VoidInvoice(context.Background(), "PWN-20990101-000404")
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)
}

func TestProcessSingleReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.svc.ProcessSingleReport(ctx, f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, report)

	older := f.pawn(t, testNIC, 1000)
	f.clock.Advance(48 * time.Hour)
	newer := f.pawn(t, testNIC, 2000)
	_, err = f.payment(testNIC, older.InvoiceNo, 100)
	require.NoError(t, err)

	customerID := f.loanFor(t, older.InvoiceNo).CustomerID
	report, err = f.svc.ProcessSingleReport(ctx, customerID)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, report.Loans, 2)

	assert.Equal(t, newer.InvoiceNo, report.Loans[0].InitialInvoiceNo)
	assert.Equal(t, older.InvoiceNo, report.Loans[1].InitialInvoiceNo)
	assert.Len(t, report.Loans[1].Installments, 1)
	require.NotNil(t, report.Loans[1].Installments[0].Transaction)
	assert.Len(t, report.Loans[0].Items, 1)

	assert.True(t, report.TotalLoanedAmount.Equal(decimal.NewFromInt(3060)), report.TotalLoanedAmount.String())
	assert.True(t, report.TotalAmountPaid.Equal(decimal.NewFromInt(100)))
	assert.True(t, report.TotalOutstanding.Equal(decimal.NewFromInt(2960)))

	invoices, err := f.svc.GetInvoicesByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, invoices, 3)
}

func TestInstallmentScheduleAndInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initial := f.pawn(t, testNIC, 10000)
	_, err := f.payment(testNIC, initial.InvoiceNo, 500)
	require.NoError(t, err)

	schedule, err := f.svc.InstallmentSchedule(ctx, initial.InvoiceNo)
	require.NoError(t, err)
	require.Len(t, schedule, 3)
	assert.True(t, schedule[0].Paid)
	assert.False(t, schedule[1].Paid)

	info, err := f.svc.ProcessInstallments(ctx, initial.InvoiceNo)
	require.NoError(t, err)
	assert.True(t, info.InterestAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, info.OutstandingAmount.Equal(decimal.NewFromInt(9700)))
	assert.Equal(t, 91, info.TotalLoanDays)
}

func TestRenderInvoicePDF(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)
	payment, err := f.payment(testNIC, initial.InvoiceNo, 500)
	require.NoError(t, err)

	for _, no := range []string{initial.InvoiceNo, payment.InvoiceNo} {
		r, err := f.svc.RenderInvoicePDF(context.Background(), no)
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", string(body[:4]))
	}
}

func (f *fixture) settleFor(nic, initialNo string, amount int64) (pawndomain.ProcessResult, error) {
	return f.svc.ProcessInvoice(context.Background(), pawndomain.SettlementRequest{
		Customer:         customerInput(nic),
		InitialInvoiceNo: initialNo,
		Amount:           decimal.NewFromInt(amount),
	})
}

func (f *fixture) balanceOf(t *testing.T, code ledgerdomain.LedgerAccountCode) decimal.Decimal {
	t.Helper()
	balances, err := f.ledger.Balances(context.Background())
	require.NoError(t, err)
	for _, balance := range balances {
		if balance.Code == code {
			return balance.Balance
		}
	}
	return decimal.Zero
}

func TestSettlementBelowOutstandingIsRejected(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	_, err := f.settleFor(testNIC, initial.InvoiceNo, 1)
	require.ErrorIs(t, err, pawndomain.ErrSettlementShortfall)

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.False(t, loan.IsSettled)
	assert.Nil(t, loan.SettledAt)
	for _, item := range f.itemsOf(t, loan) {
		assert.Equal(t, itemdomain.ItemStatusInStock, item.Status)
	}

	var closures int64
	require.NoError(t, f.db.Model(&transactiondomain.Transaction{}).
		Where("transaction_type = ?", transactiondomain.TransactionTypeLoanClosure).
		Count(&closures).Error)
	assert.Zero(t, closures)

	receivable := f.balanceOf(t, ledgerdomain.AccountCodePawnLoansReceivable)
	assert.True(t, receivable.Equal(decimal.NewFromInt(10200)), receivable.String())
	cash := f.balanceOf(t, ledgerdomain.AccountCodeCash)
	assert.True(t, cash.Equal(decimal.NewFromInt(-10000)), cash.String())
}

func TestSettlementForOutstandingClearsReceivable(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)
	_, err := f.payment(testNIC, initial.InvoiceNo, 700)
	require.NoError(t, err)

	_, err = f.settleFor(testNIC, initial.InvoiceNo, 9499)
	require.ErrorIs(t, err, pawndomain.ErrSettlementShortfall)

	_, err = f.settleFor(testNIC, initial.InvoiceNo, 9500)
	require.NoError(t, err)

	loan := f.loanFor(t, initial.InvoiceNo)
	assert.True(t, loan.IsSettled)
	assert.True(t, f.balanceOf(t, ledgerdomain.AccountCodePawnLoansReceivable).IsZero())
}

func TestSettlementAboveOutstandingFollowsPolicy(t *testing.T) {
	f := newFixture(t)
	initial := f.pawn(t, testNIC, 10000)

	_, err := f.settleFor(testNIC, initial.InvoiceNo, 10201)
	require.ErrorIs(t, err, loandomain.ErrOverpayment)
	assert.False(t, f.loanFor(t, initial.InvoiceNo).IsSettled)
}

func TestCheckSettlementAmount(t *testing.T) {
	outstanding := decimal.NewFromInt(500)
	strict := config.DefaultPawnPolicy()
	lenient := strict
	lenient.AllowOverpayment = true

	assert.NoError(t, checkSettlementAmount(outstanding, outstanding, strict))
	assert.ErrorIs(t, checkSettlementAmount(decimal.NewFromInt(499), outstanding, lenient), pawndomain.ErrSettlementShortfall)
	assert.ErrorIs(t, checkSettlementAmount(decimal.NewFromInt(501), outstanding, strict), loandomain.ErrOverpayment)
	assert.NoError(t, checkSettlementAmount(decimal.NewFromInt(501), outstanding, lenient))
	assert.ErrorIs(t, checkSettlementAmount(decimal.NewFromInt(-1), outstanding, lenient), pawndomain.ErrInvalidAmount)
	assert.NoError(t, checkSettlementAmount(decimal.Zero, decimal.Zero, strict))
}
