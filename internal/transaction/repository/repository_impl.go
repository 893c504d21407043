package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/transaction/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, trx *domain.Transaction) error {
	return db.WithContext(ctx).Create(trx).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, links []*domain.TransactionItem) error {
	if len(links) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(links).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var trx domain.Transaction
	if err := db.WithContext(ctx).Where("id = ?", id).First(&trx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trx, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) ([]*domain.TransactionItem, error) {
	var links []*domain.TransactionItem
	err := db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id asc").
		Find(&links).Error
	return links, err
}

func (r *repo) ListByItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]*domain.TransactionItem, error) {
	var links []*domain.TransactionItem
	err := db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id asc").
		Find(&links).Error
	return links, err
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Transaction{})
	return res.RowsAffected, res.Error
}

func (r *repo) SoftDeleteItems(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Where("transaction_id = ?", transactionID).Delete(&domain.TransactionItem{})
	return res.RowsAffected, res.Error
}
