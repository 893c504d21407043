package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
	pkgdb "github.com/smallbiznis/pawnshop/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Policy         *config.PolicyHolder `optional:"true"`
	Repo           loandomain.Repository
	InvoiceSvc     invoicedomain.Service
	TransactionSvc transactiondomain.Service
	ReferenceSvc   referencedomain.Service
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	policy         *config.PolicyHolder
	repo           loandomain.Repository
	invoiceSvc     invoicedomain.Service
	transactionSvc transactiondomain.Service
	referenceSvc   referencedomain.Service
}

func New(p Params) loandomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("loan.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		policy:         p.Policy,
		repo:           p.Repo,
		invoiceSvc:     p.InvoiceSvc,
		transactionSvc: p.TransactionSvc,
		referenceSvc:   p.ReferenceSvc,
	}
}

func (s *Service) Open(ctx context.Context, db *gorm.DB, req loandomain.OpenRequest) (*loandomain.Loan, error) {
	conn := s.conn(db)

	period, err := s.referenceSvc.GetLoanPeriod(ctx, conn, req.LoanPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, loandomain.ErrLoanPeriodNotFound
	}
	if period.Period <= 0 {
		return nil, loandomain.ErrInvalidLoanPeriod
	}

	now := s.clock.Now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}
	start = start.UTC()

	loan := loandomain.Loan{
		ID:                s.genID.Generate(),
		TransactionID:     req.TransactionID,
		CustomerID:        req.CustomerID,
		LoanPeriodID:      period.ID,
		StartDate:         start,
		EndDate:           loandomain.DueDate(start, period.Period),
		AmountPaid:        decimal.Zero,
		OutstandingAmount: req.TotalAmount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertLoan(ctx, conn, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

func (s *Service) LockByInitialInvoiceNo(ctx context.Context, db *gorm.DB, initialInvoiceNo string) (*loandomain.Loan, error) {
	_, loan, err := s.resolve(ctx, s.conn(db), initialInvoiceNo, true)
	return loan, err
}

func (s *Service) FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*loandomain.Loan, error) {
	return s.repo.FindLoanByTransactionID(ctx, s.conn(db), transactionID, false)
}

func (s *Service) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]loandomain.Loan, error) {
	loans, err := s.repo.ListLoansByCustomer(ctx, s.conn(db), customerID)
	if err != nil {
		return nil, err
	}
	return deref(loans), nil
}

func (s *Service) ListByTransactionIDs(ctx context.Context, db *gorm.DB, transactionIDs []snowflake.ID) ([]loandomain.Loan, error) {
	loans, err := s.repo.ListLoansByTransactionIDs(ctx, s.conn(db), transactionIDs)
	if err != nil {
		return nil, err
	}
	return deref(loans), nil
}

func (s *Service) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	return s.repo.SoftDeleteLoan(ctx, s.conn(db), id)
}

func (s *Service) RecordInstallment(ctx context.Context, db *gorm.DB, loan *loandomain.Loan, req loandomain.RecordInstallmentRequest) (*loandomain.Installment, error) {
	if loan == nil {
		return nil, loandomain.ErrLoanNotFound
	}
	if loan.IsSettled {
		return nil, loandomain.ErrLoanSettled
	}
	if !req.Amount.IsPositive() {
		return nil, loandomain.ErrInvalidAmount
	}
	if req.InstallmentNumber < 0 {
		return nil, loandomain.ErrInvalidInstallmentNumber
	}
	if req.Amount.GreaterThan(loan.OutstandingAmount) && !s.currentPolicy().AllowOverpayment {
		return nil, loandomain.ErrOverpayment
	}

	conn := s.conn(db)
	number := req.InstallmentNumber
	if number == 0 {
		max, err := s.repo.MaxInstallmentNumber(ctx, conn, loan.ID)
		if err != nil {
			return nil, err
		}
		number = max + 1
	} else {
		taken, err := s.repo.InstallmentNumberTaken(ctx, conn, loan.ID, number)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, loandomain.ErrDuplicateInstallment
		}
	}

	now := s.clock.Now()
	paidAt := req.PaymentDate
	if paidAt.IsZero() {
		paidAt = now
	}

	installment := loandomain.Installment{
		ID:                s.genID.Generate(),
		LoanID:            loan.ID,
		TransactionID:     req.TransactionID,
		InstallmentNumber: number,
		AmountPaid:        req.Amount,
		DueDate:           loandomain.DueDate(loan.StartDate, number),
		PaymentDate:       paidAt.UTC(),
		CreatedAt:         now,
	}
	if err := s.repo.InsertInstallment(ctx, conn, &installment); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, loandomain.ErrDuplicateInstallment
		}
		return nil, err
	}
	return &installment, nil
}

func (s *Service) ListInstallments(ctx context.Context, db *gorm.DB, loanIDs ...snowflake.ID) ([]loandomain.Installment, error) {
	items, err := s.repo.ListInstallments(ctx, s.conn(db), loanIDs)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) FindInstallmentByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*loandomain.Installment, error) {
	return s.repo.FindInstallmentByTransactionID(ctx, s.conn(db), transactionID)
}

func (s *Service) SoftDeleteInstallments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	return s.repo.SoftDeleteInstallments(ctx, s.conn(db), ids)
}

func (s *Service) SettleLoan(ctx context.Context, db *gorm.DB, initialInvoiceNo string) (bool, error) {
	conn := s.conn(db)
	_, loan, err := s.resolve(ctx, conn, initialInvoiceNo, true)
	if err != nil {
		if isResolutionMiss(err) {
			s.log.Info("settlement target not found",
				zap.String("invoice_no", initialInvoiceNo),
				zap.Error(err),
			)
			return false, nil
		}
		return false, err
	}
	if loan.IsSettled {
		return false, loandomain.ErrLoanSettled
	}

	now := s.clock.Now()
	loan.IsSettled = true
	loan.SettledAt = &now
	loan.UpdatedAt = now
	if err := s.repo.SaveLoan(ctx, conn, loan); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) UpdateInitialLoan(ctx context.Context, db *gorm.DB, initialInvoiceNo string, amountJustPaid decimal.Decimal) (*loandomain.Loan, error) {
	conn := s.conn(db)
	_, loan, err := s.resolve(ctx, conn, initialInvoiceNo, true)
	if err != nil {
		if isResolutionMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.RecalculateBalance(ctx, conn, loan); err != nil {
		return nil, err
	}
	s.log.Debug("loan balance updated",
		zap.String("invoice_no", initialInvoiceNo),
		zap.String("amount_just_paid", amountJustPaid.String()),
		zap.String("outstanding", loan.OutstandingAmount.String()),
	)
	return loan, nil
}

func (s *Service) RecalculateBalance(ctx context.Context, db *gorm.DB, loan *loandomain.Loan) error {
	if loan == nil {
		return loandomain.ErrLoanNotFound
	}
	conn := s.conn(db)

	trx, err := s.transactionSvc.FindByID(ctx, conn, loan.TransactionID)
	if err != nil {
		return err
	}
	if trx == nil {
		return loandomain.ErrTransactionNotFound
	}

	installments, err := s.repo.ListInstallments(ctx, conn, []snowflake.ID{loan.ID})
	if err != nil {
		return err
	}
	paid := decimal.Zero
	for _, installment := range installments {
		paid = paid.Add(installment.AmountPaid)
	}

	loan.AmountPaid = paid
	loan.OutstandingAmount = trx.TotalAmount.Sub(paid)
	loan.UpdatedAt = s.clock.Now()
	return s.repo.SaveLoan(ctx, conn, loan)
}

func (s *Service) ProcessInstallments(ctx context.Context, initialInvoiceNo string) (*loandomain.LoanInfo, error) {
	invoice, loan, err := s.resolve(ctx, s.db, initialInvoiceNo, false)
	if err != nil {
		return nil, err
	}

	trx, err := s.transactionSvc.FindByID(ctx, s.db, loan.TransactionID)
	if err != nil {
		return nil, err
	}
	if trx == nil {
		return nil, loandomain.ErrTransactionNotFound
	}

	period, err := s.referenceSvc.GetLoanPeriod(ctx, s.db, loan.LoanPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, loandomain.ErrLoanPeriodNotFound
	}
	if period.Period <= 0 {
		return nil, loandomain.ErrInvalidLoanPeriod
	}

	days := loandomain.LoanDays(loan.StartDate, loan.EndDate)
	if days <= 0 {
		return nil, loandomain.ErrZeroLoanDuration
	}

	interest := transactiondomain.Interest(trx.SubTotal, trx.InterestRate)

	installments, err := s.repo.ListInstallments(ctx, s.db, []snowflake.ID{loan.ID})
	if err != nil {
		return nil, err
	}
	last := invoice.GeneratedAt
	if len(installments) > 0 {
		last = installments[0].PaymentDate
		for _, installment := range installments[1:] {
			if installment.PaymentDate.After(last) {
				last = installment.PaymentDate
			}
		}
	}

	return &loandomain.LoanInfo{
		InitialInvoiceNo:    invoice.InvoiceNo,
		Principal:           trx.SubTotal,
		InterestRate:        trx.InterestRate,
		InterestAmount:      interest,
		TotalAmount:         trx.TotalAmount,
		Period:              period.Period,
		TotalLoanDays:       days,
		DailyInterest:       interest.Div(decimal.NewFromInt(int64(days))).Round(4),
		StartDate:           loan.StartDate,
		EndDate:             loan.EndDate,
		LastInstallmentDate: last,
		AmountPaid:          loan.AmountPaid,
		OutstandingAmount:   loan.OutstandingAmount,
		IsSettled:           loan.IsSettled,
	}, nil
}

func (s *Service) Schedule(ctx context.Context, initialInvoiceNo string) ([]loandomain.ScheduleEntry, error) {
	_, loan, err := s.resolve(ctx, s.db, initialInvoiceNo, false)
	if err != nil {
		return nil, err
	}
	period, err := s.referenceSvc.GetLoanPeriod(ctx, s.db, loan.LoanPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, loandomain.ErrLoanPeriodNotFound
	}
	if period.Period <= 0 {
		return nil, loandomain.ErrInvalidLoanPeriod
	}

	installments, err := s.repo.ListInstallments(ctx, s.db, []snowflake.ID{loan.ID})
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*loandomain.Installment, len(installments))
	for _, installment := range installments {
		byNumber[installment.InstallmentNumber] = installment
	}

	entries := make([]loandomain.ScheduleEntry, 0, period.Period)
	for n := 1; n <= period.Period; n++ {
		entry := loandomain.ScheduleEntry{
			InstallmentNumber: n,
			DueDate:           loandomain.DueDate(loan.StartDate, n),
		}
		if paid, ok := byNumber[n]; ok {
			amount := paid.AmountPaid
			date := paid.PaymentDate
			entry.Paid = true
			entry.AmountPaid = &amount
			entry.PaymentDate = &date
			delete(byNumber, n)
		}
		entries = append(entries, entry)
	}

	// Installments numbered past the contract period are still listed.
	extra := make([]int, 0, len(byNumber))
	for n := range byNumber {
		extra = append(extra, n)
	}
	sort.Ints(extra)
	for _, n := range extra {
		paid := byNumber[n]
		amount := paid.AmountPaid
		date := paid.PaymentDate
		entries = append(entries, loandomain.ScheduleEntry{
			InstallmentNumber: n,
			DueDate:           paid.DueDate,
			Paid:              true,
			AmountPaid:        &amount,
			PaymentDate:       &date,
		})
	}
	return entries, nil
}

// resolve walks initial invoice -> issuance transaction -> loan.
func (s *Service) resolve(ctx context.Context, db *gorm.DB, initialInvoiceNo string, forUpdate bool) (*invoicedomain.Invoice, *loandomain.Loan, error) {
	invoice, err := s.invoiceSvc.FindByInvoiceNo(ctx, db, initialInvoiceNo)
	if err != nil {
		return nil, nil, err
	}
	if invoice == nil {
		return nil, nil, loandomain.ErrInvoiceNotFound
	}
	if invoice.InvoiceTypeID != invoicedomain.InvoiceTypeInitialPawn {
		return nil, nil, fmt.Errorf("%w: %s", loandomain.ErrNotInitialInvoice, invoice.InvoiceNo)
	}

	loan, err := s.repo.FindLoanByTransactionID(ctx, db, invoice.TransactionID, forUpdate)
	if err != nil {
		return nil, nil, err
	}
	if loan == nil {
		return nil, nil, loandomain.ErrLoanNotFound
	}
	return invoice, loan, nil
}

func (s *Service) currentPolicy() config.PawnPolicy {
	return s.policy.Get()
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

func isResolutionMiss(err error) bool {
	return errors.Is(err, loandomain.ErrInvoiceNotFound) ||
		errors.Is(err, loandomain.ErrNotInitialInvoice) ||
		errors.Is(err, loandomain.ErrLoanNotFound) ||
		errors.Is(err, invoicedomain.ErrInvalidInvoiceNo)
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
