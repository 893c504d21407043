package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	itemdomain "github.com/smallbiznis/pawnshop/internal/item/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	"github.com/smallbiznis/pawnshop/internal/lock"
	obslogger "github.com/smallbiznis/pawnshop/internal/observability/logger"
	"github.com/smallbiznis/pawnshop/internal/observability/metrics"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	"github.com/smallbiznis/pawnshop/internal/providers/pdf"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	transactiondomain "github.com/smallbiznis/pawnshop/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Locker         lock.Locker
	Policy         *config.PolicyHolder `optional:"true"`
	CustomerSvc    customerdomain.Service
	ItemSvc        itemdomain.Service
	TransactionSvc transactiondomain.Service
	InvoiceSvc     invoicedomain.Service
	LoanSvc        loandomain.Service
	ReferenceSvc   referencedomain.Service
	LedgerSvc      ledgerdomain.Service
	AuditSvc       auditdomain.Service      `optional:"true"`
	PDF            pdf.Provider             `optional:"true"`
	Metrics        *metrics.Metrics         `optional:"true"`
	Workflow       *metrics.WorkflowMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	locker         lock.Locker
	policy         *config.PolicyHolder
	customerSvc    customerdomain.Service
	itemSvc        itemdomain.Service
	transactionSvc transactiondomain.Service
	invoiceSvc     invoicedomain.Service
	loanSvc        loandomain.Service
	referenceSvc   referencedomain.Service
	ledgerSvc      ledgerdomain.Service
	auditSvc       auditdomain.Service
	pdf            pdf.Provider
	metrics        *metrics.Metrics
	workflow       *metrics.WorkflowMetrics
}

func New(p Params) pawndomain.Service {
	locker := p.Locker
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New(config.Config{})
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("pawn.service"),
		clock:          p.Clock,
		locker:         locker,
		policy:         p.Policy,
		customerSvc:    p.CustomerSvc,
		itemSvc:        p.ItemSvc,
		transactionSvc: p.TransactionSvc,
		invoiceSvc:     p.InvoiceSvc,
		loanSvc:        p.LoanSvc,
		referenceSvc:   p.ReferenceSvc,
		ledgerSvc:      p.LedgerSvc,
		auditSvc:       p.AuditSvc,
		pdf:            renderer,
		metrics:        p.Metrics,
		workflow:       p.Workflow,
	}
}

func (s *Service) ProcessInvoice(ctx context.Context, req pawndomain.InvoiceRequest) (result pawndomain.ProcessResult, err error) {
	if req == nil {
		return result, pawndomain.ErrInvalidRequest
	}
	invoiceType := req.InvoiceType()
	if !invoiceType.Valid() {
		return result, pawndomain.ErrInvalidInvoiceType
	}

	workflow := workflowName(invoiceType)
	started := time.Now()
	defer func() {
		outcome := "success"
		reason := ""
		if err != nil {
			outcome = "failure"
			reason = classify(err)
		}
		s.workflow.Observe(workflow, started, reason)
		s.metrics.RecordInvoiceProcessed(ctx, invoiceType.String(), outcome)
	}()

	// Loan-scoped workflows serialize on the initial invoice number before
	// the transaction opens so a waiting caller never holds a connection.
	// Re-pledged items lock on their id for the same reason.
	for _, key := range lockKeys(req) {
		release, err := s.acquire(ctx, key)
		if err != nil {
			return result, err
		}
		defer release()
	}

	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, created, err := s.customerSvc.Resolve(ctx, tx, req.CustomerInput())
		if err != nil {
			return err
		}
		if created {
			s.log.Info("customer created during invoice processing",
				zap.String("customer_id", customer.ID.String()),
				zap.String("invoice_type", invoiceType.String()),
			)
		}

		switch r := req.(type) {
		case pawndomain.InitialPawnRequest:
			invoice, err = s.processInitialPawn(ctx, tx, customer, r)
		case pawndomain.InstallmentPaymentRequest:
			invoice, err = s.processInstallment(ctx, tx, customer, r)
		case pawndomain.SettlementRequest:
			invoice, err = s.processSettlement(ctx, tx, customer, r)
		default:
			err = pawndomain.ErrInvalidInvoiceType
		}
		if err != nil {
			return err
		}

		invoiceID := invoice.ID.String()
		return s.audit(ctx, tx, "invoice.issue", "invoice", &invoiceID, map[string]any{
			"invoice_no":   invoice.InvoiceNo,
			"invoice_type": invoiceType.String(),
			"customer_id":  customer.ID.String(),
			"nic":          customer.NIC,
		})
	})
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("invoice processing rolled back",
			zap.String("invoice_type", invoiceType.String()),
			zap.Error(err),
		)
		return result, err
	}

	obslogger.WithInvoice(obslogger.WithContext(ctx, s.log), invoice.InvoiceNo, chainRoot(invoice)).
		Info("invoice processed", zap.String("invoice_type", invoiceType.String()))
	return pawndomain.ProcessResult{InvoiceID: invoice.ID, InvoiceNo: invoice.InvoiceNo}, nil
}

func (s *Service) processInitialPawn(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, req pawndomain.InitialPawnRequest) (*invoicedomain.Invoice, error) {
	period, err := s.referenceSvc.GetLoanPeriod(ctx, tx, req.LoanPeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, loandomain.ErrLoanPeriodNotFound
	}
	if period.Period <= 0 {
		return nil, loandomain.ErrInvalidLoanPeriod
	}

	policy := s.policy.Get()

	pledged, err := s.prepareItems(ctx, tx, customer, req.Items)
	if err != nil {
		return nil, err
	}
	totalValue := decimal.Zero
	for _, item := range pledged {
		totalValue = totalValue.Add(item.value)
	}
	allowance := totalValue.
		Mul(decimal.NewFromFloat(policy.MaxLoanToValuePercent)).
		Div(decimal.NewFromInt(100)).
		Round(2)

	amount := req.LoanAmount
	if amount.IsZero() {
		amount = allowance
	}
	if !amount.IsPositive() {
		return nil, pawndomain.ErrInvalidAmount
	}
	if amount.GreaterThan(allowance) {
		return nil, fmt.Errorf("%w: requested %s, allowed %s", pawndomain.ErrLoanExceedsValue, amount, allowance)
	}

	rate := decimal.NewFromFloat(policy.DefaultInterestRate)
	if period.DefaultInterestRate.IsPositive() {
		rate = period.DefaultInterestRate
	}
	if req.InterestRate != nil {
		rate = *req.InterestRate
	}

	trx, err := s.transactionSvc.Record(ctx, tx, transactiondomain.RecordRequest{
		CustomerID:      customer.ID,
		Type:            transactiondomain.TransactionTypeLoanIssuance,
		SubTotal:        amount,
		InterestRate:    rate,
		TransactionDate: req.Date,
	})
	if err != nil {
		return nil, err
	}

	itemIDs := make([]snowflake.ID, 0, len(pledged))
	for _, p := range pledged {
		if p.existing != nil {
			itemIDs = append(itemIDs, p.existing.ID)
			continue
		}
		item, err := s.itemSvc.Create(ctx, tx, itemdomain.CreateItemRequest{
			CustomerID:  customer.ID,
			Name:        p.input.Name,
			Description: p.input.Description,
			KaratID:     p.input.KaratID,
			Weight:      p.input.Weight,
			Value:       p.value,
		})
		if err != nil {
			return nil, err
		}
		itemIDs = append(itemIDs, item.ID)
	}
	if _, err := s.transactionSvc.LinkItems(ctx, tx, trx.ID, itemIDs); err != nil {
		return nil, err
	}

	if _, err := s.loanSvc.Open(ctx, tx, loandomain.OpenRequest{
		TransactionID: trx.ID,
		CustomerID:    customer.ID,
		LoanPeriodID:  period.ID,
		StartDate:     trx.TransactionDate,
		TotalAmount:   trx.TotalAmount,
	}); err != nil {
		return nil, err
	}

	invoice, err := s.invoiceSvc.Issue(ctx, tx, invoicedomain.IssueRequest{
		Type:          invoicedomain.InvoiceTypeInitialPawn,
		TransactionID: trx.ID,
		CustomerID:    customer.ID,
		IssuedAt:      trx.TransactionDate,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledgerSvc.CreateEntry(ctx, tx,
		ledgerdomain.SourceTypeLoanIssuance,
		trx.ID,
		trx.TransactionDate,
		ledgerdomain.IssuanceLines(trx.SubTotal, trx.InterestAmount),
	); err != nil {
		return nil, err
	}
	return invoice, nil
}

type pledgedItem struct {
	input    pawndomain.ItemInput
	existing *itemdomain.Item
	value    decimal.Decimal
}

// prepareItems resolves re-pawned items and values new ones. A re-pawned item
// must belong to the customer and must not back a loan that is still open.
func (s *Service) prepareItems(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, inputs []pawndomain.ItemInput) ([]pledgedItem, error) {
	if len(inputs) == 0 {
		return nil, pawndomain.ErrInvalidRequest
	}
	out := make([]pledgedItem, 0, len(inputs))
	seen := make(map[snowflake.ID]struct{}, len(inputs))
	for _, input := range inputs {
		if input.ID == 0 {
			value := input.Value
			if value.IsZero() && input.KaratID != nil && input.Weight.IsPositive() {
				estimate, err := s.referenceSvc.EstimateValue(ctx, tx, referencedomain.EstimateRequest{
					KaratID: *input.KaratID,
					Weight:  input.Weight,
				})
				if err != nil {
					return nil, err
				}
				value = estimate.Value
			}
			if !value.IsPositive() {
				return nil, fmt.Errorf("%w: %s", pawndomain.ErrItemValueUnknown, input.Name)
			}
			out = append(out, pledgedItem{input: input, value: value})
			continue
		}

		if _, dup := seen[input.ID]; dup {
			return nil, pawndomain.ErrInvalidRequest
		}
		seen[input.ID] = struct{}{}

		item, err := s.itemSvc.FindByID(ctx, tx, input.ID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("%w: %s", pawndomain.ErrItemNotFound, input.ID)
		}
		if item.CustomerID != customer.ID {
			return nil, fmt.Errorf("%w: %s", pawndomain.ErrItemNotOwned, input.ID)
		}
		open, err := s.itemBacksOpenLoan(ctx, tx, item.ID)
		if err != nil {
			return nil, err
		}
		if open {
			return nil, fmt.Errorf("%w: %s", pawndomain.ErrItemAlreadyPledged, input.ID)
		}
		out = append(out, pledgedItem{input: input, existing: item, value: item.Value})
	}
	return out, nil
}

func (s *Service) itemBacksOpenLoan(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) (bool, error) {
	trxIDs, err := s.transactionSvc.TransactionIDsByItem(ctx, tx, itemID)
	if err != nil || len(trxIDs) == 0 {
		return false, err
	}
	loans, err := s.loanSvc.ListByTransactionIDs(ctx, tx, trxIDs)
	if err != nil {
		return false, err
	}
	for _, loan := range loans {
		if !loan.IsSettled {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) processInstallment(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, req pawndomain.InstallmentPaymentRequest) (*invoicedomain.Invoice, error) {
	loan, err := s.loanSvc.LockByInitialInvoiceNo(ctx, tx, req.InitialInvoiceNo)
	if err != nil {
		return nil, err
	}
	if loan.CustomerID != customer.ID {
		return nil, pawndomain.ErrCustomerMismatch
	}

	trx, err := s.transactionSvc.Record(ctx, tx, transactiondomain.RecordRequest{
		CustomerID:      customer.ID,
		Type:            transactiondomain.TransactionTypeInstallmentPayment,
		SubTotal:        req.Amount,
		TransactionDate: req.Date,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.loanSvc.RecordInstallment(ctx, tx, loan, loandomain.RecordInstallmentRequest{
		TransactionID:     trx.ID,
		InstallmentNumber: req.InstallmentNumber,
		Amount:            trx.TotalAmount,
		PaymentDate:       trx.TransactionDate,
	}); err != nil {
		return nil, err
	}
	updated, err := s.loanSvc.UpdateInitialLoan(ctx, tx, req.InitialInvoiceNo, trx.TotalAmount)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, loandomain.ErrLoanNotFound
	}

	invoice, err := s.invoiceSvc.Issue(ctx, tx, invoicedomain.IssueRequest{
		Type:             invoicedomain.InvoiceTypeInstallmentPayment,
		TransactionID:    trx.ID,
		CustomerID:       customer.ID,
		InitialInvoiceNo: &req.InitialInvoiceNo,
		IssuedAt:         trx.TransactionDate,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.ledgerSvc.CreateEntry(ctx, tx,
		ledgerdomain.SourceTypeInstallmentPayment,
		trx.ID,
		trx.TransactionDate,
		ledgerdomain.RepaymentLines(trx.TotalAmount),
	); err != nil {
		return nil, err
	}

	s.metrics.RecordInstallmentPosted(ctx)
	return invoice, nil
}

func (s *Service) processSettlement(ctx context.Context, tx *gorm.DB, customer *customerdomain.Customer, req pawndomain.SettlementRequest) (*invoicedomain.Invoice, error) {
	loan, err := s.loanSvc.LockByInitialInvoiceNo(ctx, tx, req.InitialInvoiceNo)
	if err != nil {
		if isLoanMiss(err) {
			return nil, loandomain.ErrLoanNotFound
		}
		return nil, err
	}
	if loan.CustomerID != customer.ID {
		return nil, pawndomain.ErrCustomerMismatch
	}
	if loan.IsSettled {
		return nil, loandomain.ErrLoanSettled
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = loan.OutstandingAmount
	}
	if err := checkSettlementAmount(amount, loan.OutstandingAmount, s.policy.Get()); err != nil {
		return nil, err
	}

	trx, err := s.transactionSvc.Record(ctx, tx, transactiondomain.RecordRequest{
		CustomerID:      customer.ID,
		Type:            transactiondomain.TransactionTypeLoanClosure,
		SubTotal:        amount,
		TransactionDate: req.Date,
	})
	if err != nil {
		return nil, err
	}

	settled, err := s.loanSvc.SettleLoan(ctx, tx, req.InitialInvoiceNo)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, loandomain.ErrLoanNotFound
	}

	itemIDs, err := s.transactionSvc.ItemIDs(ctx, tx, loan.TransactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.itemSvc.MarkRedeemed(ctx, tx, itemIDs); err != nil {
		return nil, err
	}

	invoice, err := s.invoiceSvc.Issue(ctx, tx, invoicedomain.IssueRequest{
		Type:             invoicedomain.InvoiceTypeSettlement,
		TransactionID:    trx.ID,
		CustomerID:       customer.ID,
		InitialInvoiceNo: &req.InitialInvoiceNo,
		IssuedAt:         trx.TransactionDate,
	})
	if err != nil {
		return nil, err
	}

	if trx.TotalAmount.IsPositive() {
		if _, err := s.ledgerSvc.CreateEntry(ctx, tx,
			ledgerdomain.SourceTypeLoanClosure,
			trx.ID,
			trx.TransactionDate,
			ledgerdomain.RepaymentLines(trx.TotalAmount),
		); err != nil {
			return nil, err
		}
	}

	s.metrics.RecordLoanSettled(ctx)
	return invoice, nil
}

// checkSettlementAmount requires the closing payment to clear the receivable.
// Paying more is accepted only when the policy allows overpayment.
func checkSettlementAmount(amount, outstanding decimal.Decimal, policy config.PawnPolicy) error {
	if amount.IsNegative() {
		return pawndomain.ErrInvalidAmount
	}
	if amount.LessThan(outstanding) {
		return fmt.Errorf("%w: paid %s, outstanding %s", pawndomain.ErrSettlementShortfall, amount, outstanding)
	}
	if amount.GreaterThan(outstanding) && !policy.AllowOverpayment {
		return fmt.Errorf("%w: paid %s, outstanding %s", loandomain.ErrOverpayment, amount, outstanding)
	}
	return nil
}

func (s *Service) ProcessInstallments(ctx context.Context, initialInvoiceNo string) (*loandomain.LoanInfo, error) {
	return s.loanSvc.ProcessInstallments(ctx, initialInvoiceNo)
}

func (s *Service) InstallmentSchedule(ctx context.Context, initialInvoiceNo string) ([]loandomain.ScheduleEntry, error) {
	return s.loanSvc.Schedule(ctx, initialInvoiceNo)
}

func (s *Service) GetInvoicesByCustomer(ctx context.Context, customerID snowflake.ID) ([]invoicedomain.Invoice, error) {
	return s.invoiceSvc.ListByCustomer(ctx, nil, customerID)
}

func (s *Service) GetInvoice(ctx context.Context, invoiceNo string) (invoicedomain.Invoice, error) {
	return s.invoiceSvc.GetByInvoiceNo(ctx, invoiceNo)
}

// lockKeys lists the locks a request needs, sorted so that two requests
// sharing items always acquire them in the same order.
func lockKeys(req pawndomain.InvoiceRequest) []string {
	switch r := req.(type) {
	case pawndomain.InstallmentPaymentRequest:
		return []string{lock.LoanKey(r.InitialInvoiceNo)}
	case pawndomain.SettlementRequest:
		return []string{lock.LoanKey(r.InitialInvoiceNo)}
	case pawndomain.InitialPawnRequest:
		keys := make([]string, 0, len(r.Items))
		for _, item := range r.Items {
			if item.ID != 0 {
				keys = append(keys, lock.ItemKey(item.ID.String()))
			}
		}
		slices.Sort(keys)
		return slices.Compact(keys)
	}
	return nil
}

func (s *Service) acquire(ctx context.Context, key string) (func(), error) {
	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, key)
	s.workflow.ObserveLockWait(metrics.LockResourceLoan, time.Since(waitStart))
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action, targetType string, targetID *string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.AuditLog(ctx, tx, action, targetType, targetID, metadata)
}

func workflowName(t invoicedomain.InvoiceType) string {
	switch t {
	case invoicedomain.InvoiceTypeInstallmentPayment:
		return metrics.WorkflowInstallmentPayment
	case invoicedomain.InvoiceTypeSettlement:
		return metrics.WorkflowSettlement
	default:
		return metrics.WorkflowInitialPawn
	}
}

func classify(err error) string {
	reason := metrics.ClassifyWorkflowError(err)
	if reason == metrics.WorkflowReasonUnknown && isBusinessRule(err) {
		return metrics.WorkflowReasonBusinessRule
	}
	return reason
}

func isBusinessRule(err error) bool {
	for _, target := range []error{
		pawndomain.ErrInvalidRequest,
		pawndomain.ErrInvalidAmount,
		pawndomain.ErrCustomerMismatch,
		pawndomain.ErrItemNotFound,
		pawndomain.ErrItemNotOwned,
		pawndomain.ErrItemAlreadyPledged,
		pawndomain.ErrItemValueUnknown,
		pawndomain.ErrLoanExceedsValue,
		pawndomain.ErrSettlementShortfall,
		pawndomain.ErrVoidNotAllowed,
		loandomain.ErrLoanNotFound,
		loandomain.ErrLoanSettled,
		loandomain.ErrLoanPeriodNotFound,
		loandomain.ErrInvalidLoanPeriod,
		loandomain.ErrInvoiceNotFound,
		loandomain.ErrNotInitialInvoice,
		loandomain.ErrDuplicateInstallment,
		loandomain.ErrInvalidInstallmentNumber,
		loandomain.ErrInvalidAmount,
		loandomain.ErrOverpayment,
		customerdomain.ErrInvalidNIC,
		customerdomain.ErrInvalidName,
		customerdomain.ErrNICUnavailable,
		lock.ErrLockTimeout,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isLoanMiss(err error) bool {
	return errors.Is(err, loandomain.ErrLoanNotFound) ||
		errors.Is(err, loandomain.ErrInvoiceNotFound) ||
		errors.Is(err, loandomain.ErrNotInitialInvoice) ||
		errors.Is(err, invoicedomain.ErrInvalidInvoiceNo)
}
