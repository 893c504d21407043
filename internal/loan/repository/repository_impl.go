package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pawnshop/internal/loan/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertLoan(ctx context.Context, db *gorm.DB, loan *domain.Loan) error {
	return db.WithContext(ctx).Create(loan).Error
}

func (r *repo) SaveLoan(ctx context.Context, db *gorm.DB, loan *domain.Loan) error {
	return db.WithContext(ctx).
		Model(&domain.Loan{}).
		Where("id = ?", loan.ID).
		Updates(map[string]any{
			"amount_paid":        loan.AmountPaid,
			"outstanding_amount": loan.OutstandingAmount,
			"is_settled":         loan.IsSettled,
			"settled_at":         loan.SettledAt,
			"updated_at":         loan.UpdatedAt,
		}).Error
}

func (r *repo) FindLoanByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, forUpdate bool) (*domain.Loan, error) {
	stmt := db.WithContext(ctx)
	if forUpdate {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var loan domain.Loan
	if err := stmt.Where("transaction_id = ?", transactionID).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

func (r *repo) ListLoansByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("start_date desc, id desc").
		Find(&loans).Error
	return loans, err
}

func (r *repo) ListLoansByTransactionIDs(ctx context.Context, db *gorm.DB, transactionIDs []snowflake.ID) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	if len(transactionIDs) == 0 {
		return loans, nil
	}
	err := db.WithContext(ctx).Where("transaction_id IN ?", transactionIDs).Find(&loans).Error
	return loans, err
}

func (r *repo) SoftDeleteLoan(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Loan{})
	return res.RowsAffected, res.Error
}

func (r *repo) InsertInstallment(ctx context.Context, db *gorm.DB, installment *domain.Installment) error {
	return db.WithContext(ctx).Create(installment).Error
}

func (r *repo) ListInstallments(ctx context.Context, db *gorm.DB, loanIDs []snowflake.ID) ([]*domain.Installment, error) {
	var out []*domain.Installment
	if len(loanIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Where("loan_id IN ?", loanIDs).
		Order("loan_id asc, installment_number asc").
		Find(&out).Error
	return out, err
}

// InstallmentNumberTaken includes voided installments since the unique index does.
func (r *repo) InstallmentNumberTaken(ctx context.Context, db *gorm.DB, loanID snowflake.ID, number int) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Unscoped().
		Model(&domain.Installment{}).
		Where("loan_id = ? AND installment_number = ?", loanID, number).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) MaxInstallmentNumber(ctx context.Context, db *gorm.DB, loanID snowflake.ID) (int, error) {
	var max *int
	err := db.WithContext(ctx).
		Unscoped().
		Model(&domain.Installment{}).
		Where("loan_id = ?", loanID).
		Select("MAX(installment_number)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *repo) FindInstallmentByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*domain.Installment, error) {
	var installment domain.Installment
	if err := db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&installment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &installment, nil
}

func (r *repo) SoftDeleteInstallments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Installment{})
	return res.RowsAffected, res.Error
}
