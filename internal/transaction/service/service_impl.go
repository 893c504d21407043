package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("transaction.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, db *gorm.DB, req domain.RecordRequest) (*domain.Transaction, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	if req.SubTotal.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	if req.InterestRate.IsNegative() {
		return nil, domain.ErrInvalidRate
	}

	now := s.clock.Now()
	date := req.TransactionDate
	if date.IsZero() {
		date = now
	}

	interest := domain.Interest(req.SubTotal, req.InterestRate)
	trx := domain.Transaction{
		ID:              s.genID.Generate(),
		CustomerID:      req.CustomerID,
		Type:            req.Type,
		SubTotal:        req.SubTotal,
		InterestRate:    req.InterestRate,
		InterestAmount:  interest,
		TotalAmount:     req.SubTotal.Add(interest),
		TransactionDate: date.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, s.conn(db), &trx); err != nil {
		return nil, err
	}
	return &trx, nil
}

func (s *Service) LinkItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, itemIDs []snowflake.ID) ([]domain.TransactionItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	now := s.clock.Now()
	links := make([]*domain.TransactionItem, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		links = append(links, &domain.TransactionItem{
			ID:            s.genID.Generate(),
			TransactionID: transactionID,
			ItemID:        itemID,
			CreatedAt:     now,
		})
	}
	if err := s.repo.InsertItems(ctx, s.conn(db), links); err != nil {
		return nil, err
	}

	out := make([]domain.TransactionItem, 0, len(links))
	for _, link := range links {
		out = append(out, *link)
	}
	return out, nil
}

func (s *Service) ItemIDs(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]snowflake.ID, error) {
	links, err := s.repo.ListItems(ctx, s.conn(db), transactionID)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(links))
	for _, link := range links {
		if link == nil {
			continue
		}
		ids = append(ids, link.ItemID)
	}
	return ids, nil
}

func (s *Service) TransactionIDsByItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]snowflake.ID, error) {
	links, err := s.repo.ListByItem(ctx, s.conn(db), itemID)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(links))
	for _, link := range links {
		if link == nil {
			continue
		}
		ids = append(ids, link.TransactionID)
	}
	return ids, nil
}

func (s *Service) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	return s.repo.FindByID(ctx, s.conn(db), id)
}

func (s *Service) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Transaction, error) {
	items, err := s.repo.FindByIDs(ctx, s.conn(db), ids)
	if err != nil {
		return nil, err
	}
	out := make(map[snowflake.ID]domain.Transaction, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out[item.ID] = *item
	}
	return out, nil
}

func (s *Service) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	return s.repo.SoftDelete(ctx, s.conn(db), id)
}

func (s *Service) SoftDeleteItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (int64, error) {
	return s.repo.SoftDeleteItems(ctx, s.conn(db), transactionID)
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}
