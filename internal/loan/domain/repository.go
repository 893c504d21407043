package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertLoan(ctx context.Context, db *gorm.DB, loan *Loan) error
	SaveLoan(ctx context.Context, db *gorm.DB, loan *Loan) error
	FindLoanByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID, forUpdate bool) (*Loan, error)
	ListLoansByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]*Loan, error)
	ListLoansByTransactionIDs(ctx context.Context, db *gorm.DB, transactionIDs []snowflake.ID) ([]*Loan, error)
	SoftDeleteLoan(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	InsertInstallment(ctx context.Context, db *gorm.DB, installment *Installment) error
	ListInstallments(ctx context.Context, db *gorm.DB, loanIDs []snowflake.ID) ([]*Installment, error)
	InstallmentNumberTaken(ctx context.Context, db *gorm.DB, loanID snowflake.ID, number int) (bool, error)
	MaxInstallmentNumber(ctx context.Context, db *gorm.DB, loanID snowflake.ID) (int, error)
	FindInstallmentByTransactionID(ctx context.Context, db *gorm.DB, transactionID snowflake.ID) (*Installment, error)
	SoftDeleteInstallments(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
}
