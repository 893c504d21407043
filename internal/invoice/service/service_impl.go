package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/config"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/pawnshop/internal/invoice/format"
	"github.com/smallbiznis/pawnshop/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Repo    invoicedomain.Repository
	Metrics *metrics.WorkflowMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	template string
	repo     invoicedomain.Repository
	metrics  *metrics.WorkflowMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	template := strings.TrimSpace(p.Cfg.InvoiceNumberTemplate)
	if template == "" {
		template = invoiceformat.DefaultInvoiceNumberTemplate
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		template: template,
		repo:     p.Repo,
		metrics:  p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, db *gorm.DB, req invoicedomain.IssueRequest) (*invoicedomain.Invoice, error) {
	if !req.Type.Valid() {
		return nil, invoicedomain.ErrInvalidType
	}
	var initialNo *string
	if req.InitialInvoiceNo != nil {
		trimmed := strings.TrimSpace(*req.InitialInvoiceNo)
		if trimmed != "" {
			initialNo = &trimmed
		}
	}
	if req.Type != invoicedomain.InvoiceTypeInitialPawn && initialNo == nil {
		return nil, invoicedomain.ErrMissingInitialNo
	}

	conn := s.conn(db)
	now := s.clock.Now()
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	started := time.Now()
	seq, err := s.repo.NextSequence(ctx, conn, invoicedomain.DefaultSequenceName, now)
	s.metrics.ObserveLockWait(metrics.LockResourceInvoiceSequence, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("allocate invoice sequence: %w", err)
	}

	last, err := s.repo.FindLast(ctx, conn.Unscoped())
	if err != nil {
		return nil, err
	}
	if last != nil && seq <= last.Sequence {
		s.log.Error("invoice sequence behind issued invoices",
			zap.Int64("sequence", seq),
			zap.Int64("last_sequence", last.Sequence),
		)
		return nil, invoicedomain.ErrSequenceMisconfigured
	}

	number, err := invoiceformat.FormatInvoiceNumber(s.template, issuedAt.UTC(), seq)
	if err != nil {
		return nil, err
	}

	invoice := invoicedomain.Invoice{
		ID:               s.genID.Generate(),
		InvoiceNo:        number,
		Sequence:         seq,
		InvoiceTypeID:    req.Type,
		TransactionID:    req.TransactionID,
		CustomerID:       req.CustomerID,
		InitialInvoiceNo: initialNo,
		Status:           invoicedomain.InvoiceStatusIssued,
		GeneratedAt:      issuedAt.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, conn, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Service) FindByInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) (*invoicedomain.Invoice, error) {
	invoiceNo = strings.TrimSpace(invoiceNo)
	if invoiceNo == "" {
		return nil, invoicedomain.ErrInvalidInvoiceNo
	}
	return s.repo.FindOne(ctx, s.conn(db), &invoicedomain.Invoice{InvoiceNo: invoiceNo})
}

func (s *Service) FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*invoicedomain.Invoice, error) {
	return s.repo.FindOne(ctx, s.conn(db), &invoicedomain.Invoice{TransactionID: transactionID})
}

// FindLast returns the most recently numbered invoice, voided ones included.
func (s *Service) FindLast(ctx context.Context, db *gorm.DB) (*invoicedomain.Invoice, error) {
	return s.repo.FindLast(ctx, s.conn(db).Unscoped())
}

func (s *Service) GetByInvoiceNo(ctx context.Context, invoiceNo string) (invoicedomain.Invoice, error) {
	invoice, err := s.FindByInvoiceNo(ctx, nil, invoiceNo)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if invoice == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	return *invoice, nil
}

func (s *Service) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]invoicedomain.Invoice, error) {
	items, err := s.repo.ListByCustomer(ctx, s.conn(db), customerID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) ListByInitialInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) ([]invoicedomain.Invoice, error) {
	items, err := s.repo.ListByInitialInvoiceNo(ctx, s.conn(db), invoiceNo)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) Void(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	return s.repo.MarkVoid(ctx, s.conn(db), ids, s.clock.Now())
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

func deref(items []*invoicedomain.Invoice) []invoicedomain.Invoice {
	out := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
