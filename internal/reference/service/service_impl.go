package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reference.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ListKarats(ctx context.Context) ([]domain.Karat, error) {
	items, err := s.repo.ListKarats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) ListLoanPeriods(ctx context.Context) ([]domain.LoanPeriod, error) {
	items, err := s.repo.ListLoanPeriods(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) ListPricings(ctx context.Context, karatID *snowflake.ID) ([]domain.Pricing, error) {
	items, err := s.repo.ListPricings(ctx, s.db, karatID)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetLoanPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LoanPeriod, error) {
	return s.repo.FindLoanPeriod(ctx, s.conn(db), id)
}

// EstimateValue prices a weight of gold at the karat's current rate.
func (s *Service) EstimateValue(ctx context.Context, db *gorm.DB, req domain.EstimateRequest) (domain.Estimate, error) {
	if !req.Weight.IsPositive() {
		return domain.Estimate{}, domain.ErrInvalidWeight
	}

	conn := s.conn(db)
	karat, err := s.repo.FindKarat(ctx, conn, req.KaratID)
	if err != nil {
		return domain.Estimate{}, err
	}
	if karat == nil {
		return domain.Estimate{}, domain.ErrKaratNotFound
	}

	pricing, err := s.repo.CurrentPricing(ctx, conn, karat.ID, s.clock.Now())
	if err != nil {
		return domain.Estimate{}, err
	}
	if pricing == nil {
		return domain.Estimate{}, domain.ErrPricingNotFound
	}

	return domain.Estimate{
		KaratID:      karat.ID,
		Weight:       req.Weight,
		PricePerGram: pricing.PricePerGram,
		Value:        req.Weight.Mul(pricing.PricePerGram).Round(2),
	}, nil
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
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
