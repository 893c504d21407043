package option

import (
	"strings"

	"github.com/smallbiznis/pawnshop/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func WithOrder(expr string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			return db
		}
		return db.Order(expr)
	})
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithWhere(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// ApplyPagination applies keyset pagination ordered by created_at desc, id desc.
// One extra row is fetched so callers can tell whether another page exists.
// An unreadable token restarts from the first page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor != nil {
			db = WithCursor(*cursor).Apply(db)
		}
		return db.Limit(page.Size() + 1)
	})
}

// WithCursor keeps rows strictly after cursor in created_at desc, id desc order.
func WithCursor(cursor pagination.Cursor) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	})
}
