package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/item/domain"
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
		log:   p.Log.Named("item.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Create stores a new IN_STOCK item for the customer.
func (s *Service) Create(ctx context.Context, db *gorm.DB, req domain.CreateItemRequest) (*domain.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Value.IsNegative() {
		return nil, domain.ErrInvalidValue
	}
	if req.Weight.IsNegative() {
		return nil, domain.ErrInvalidWeight
	}

	now := s.clock.Now()
	item := domain.Item{
		ID:          s.genID.Generate(),
		CustomerID:  req.CustomerID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		KaratID:     req.KaratID,
		Weight:      req.Weight,
		Value:       req.Value,
		Status:      domain.ItemStatusInStock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.conn(db), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	return s.repo.FindByID(ctx, s.conn(db), id)
}

func (s *Service) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Item, error) {
	items, err := s.repo.FindByIDs(ctx, s.conn(db), ids)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID snowflake.ID) ([]domain.Item, error) {
	items, err := s.repo.ListByCustomer(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) MarkRedeemed(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	return s.repo.UpdateStatus(ctx, s.conn(db), ids, domain.ItemStatusRedeemed, s.clock.Now())
}

func (s *Service) SoftDelete(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	return s.repo.SoftDelete(ctx, s.conn(db), ids)
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

func deref(items []*domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}
