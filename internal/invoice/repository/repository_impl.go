package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/invoice/domain"
	"github.com/smallbiznis/pawnshop/pkg/db/option"
	"github.com/smallbiznis/pawnshop/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return repository.ProvideStore[domain.Invoice](db).Create(ctx, invoice)
}

func (r *repo) FindOne(ctx context.Context, db *gorm.DB, filter *domain.Invoice) (*domain.Invoice, error) {
	return repository.ProvideStore[domain.Invoice](db).FindOne(ctx, filter)
}

func (r *repo) FindLast(ctx context.Context, db *gorm.DB) (*domain.Invoice, error) {
	return repository.ProvideStore[domain.Invoice](db).FindOne(ctx, nil, option.WithOrder("sequence desc"))
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*domain.Invoice, error) {
	return repository.ProvideStore[domain.Invoice](db).Find(ctx,
		&domain.Invoice{CustomerID: customerID},
		option.WithOrder("sequence desc"),
	)
}

func (r *repo) ListByInitialInvoiceNo(ctx context.Context, db *gorm.DB, invoiceNo string) ([]*domain.Invoice, error) {
	return repository.ProvideStore[domain.Invoice](db).Find(ctx, nil,
		option.WithWhere("initial_invoice_no = ?", invoiceNo),
		option.WithOrder("sequence asc"),
	)
}

func (r *repo) MarkVoid(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"status":     domain.InvoiceStatusVoid,
			"updated_at": at,
			"deleted_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, name string, at time.Time) (int64, error) {
	var seq domain.InvoiceSequence
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = domain.InvoiceSequence{Name: name, NextNumber: 1, UpdatedAt: at}
		err = db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&seq).Error
		if err != nil {
			return 0, err
		}
		err = db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).
			First(&seq).Error
	}
	if err != nil {
		return 0, err
	}

	value := seq.NextNumber
	res := db.WithContext(ctx).
		Model(&domain.InvoiceSequence{}).
		Where("name = ? AND next_number = ?", name, value).
		Updates(map[string]any{"next_number": value + 1, "updated_at": at})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, domain.ErrSequenceMisconfigured
	}
	return value, nil
}
