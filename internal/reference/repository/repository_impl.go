package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/reference/domain"
	"github.com/smallbiznis/pawnshop/pkg/db/option"
	"github.com/smallbiznis/pawnshop/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListKarats(ctx context.Context, db *gorm.DB) ([]*domain.Karat, error) {
	return repository.ProvideStore[domain.Karat](db).Find(ctx, nil, option.WithOrder("code asc"))
}

func (r *repo) FindKarat(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Karat, error) {
	return repository.ProvideStore[domain.Karat](db).FindOne(ctx, &domain.Karat{ID: id})
}

func (r *repo) ListLoanPeriods(ctx context.Context, db *gorm.DB) ([]*domain.LoanPeriod, error) {
	return repository.ProvideStore[domain.LoanPeriod](db).Find(ctx, nil, option.WithOrder("period asc"))
}

func (r *repo) FindLoanPeriod(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LoanPeriod, error) {
	return repository.ProvideStore[domain.LoanPeriod](db).FindOne(ctx, &domain.LoanPeriod{ID: id})
}

func (r *repo) ListPricings(ctx context.Context, db *gorm.DB, karatID *snowflake.ID) ([]*domain.Pricing, error) {
	var filter *domain.Pricing
	if karatID != nil {
		filter = &domain.Pricing{KaratID: *karatID}
	}
	return repository.ProvideStore[domain.Pricing](db).Find(ctx, filter, option.WithOrder("effective_from desc"))
}

func (r *repo) CurrentPricing(ctx context.Context, db *gorm.DB, karatID snowflake.ID, at time.Time) (*domain.Pricing, error) {
	return repository.ProvideStore[domain.Pricing](db).FindOne(ctx,
		&domain.Pricing{KaratID: karatID},
		option.WithWhere("effective_from <= ?", at),
		option.WithOrder("effective_from desc"),
	)
}
