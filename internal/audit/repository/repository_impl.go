package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns audit entries newest first, fetching one row past the limit so
// the caller can tell whether another page exists.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	opts := []option.QueryOption{
		eq("action", filter.Action),
		eq("target_type", filter.TargetType),
		eq("target_id", filter.TargetID),
		eq("actor_type", filter.ActorType),
	}
	if filter.StartAt != nil {
		opts = append(opts, option.WithWhere("created_at >= ?", filter.StartAt.UTC()))
	}
	if filter.EndAt != nil {
		opts = append(opts, option.WithWhere("created_at <= ?", filter.EndAt.UTC()))
	}
	if filter.Cursor != nil {
		opts = append(opts, option.WithCursor(*filter.Cursor))
	}
	opts = append(opts, option.WithOrder("created_at desc, id desc"))
	if filter.Limit > 0 {
		opts = append(opts, option.WithLimit(filter.Limit+1))
	}

	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// eq filters on column only when value is non-blank.
func eq(column, value string) option.QueryOption {
	return option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if value = strings.TrimSpace(value); value == "" {
			return db
		}
		return db.Where(column+" = ?", value)
	})
}
