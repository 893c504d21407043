package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var pricingEffectiveFrom = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type karatSeed struct {
	Code         string
	Purity       string
	PricePerGram string
}

type loanPeriodSeed struct {
	Name   string
	Period int
	Rate   string
}

var karats = []karatSeed{
	{"24K", "0.9999", "24500.0000"},
	{"22K", "0.9167", "22450.0000"},
	{"21K", "0.8750", "21430.0000"},
	{"18K", "0.7500", "18370.0000"},
}

var loanPeriods = []loanPeriodSeed{
	{"3 months", 3, "2.0000"},
	{"6 months", 6, "2.5000"},
	{"12 months", 12, "3.0000"},
}

// EnsureReferenceData seeds karats, loan periods, opening gold prices, the
// ledger chart of accounts and the invoice sequence row. Safe to rerun.
func EnsureReferenceData(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureKarats(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureLoanPeriods(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureLedgerAccounts(ctx, tx, node); err != nil {
			return err
		}
		return ensureInvoiceSequenceTx(ctx, tx)
	})
}

// EnsureInvoiceSequence creates the invoice sequence row when missing.
func EnsureInvoiceSequence(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	return ensureInvoiceSequenceTx(ctx, db)
}

func ensureKarats(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	for _, k := range karats {
		karat := referencedomain.Karat{
			ID:        node.Generate(),
			Code:      k.Code,
			Purity:    decimal.RequireFromString(k.Purity),
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&karat).Error; err != nil {
			return err
		}

		var stored referencedomain.Karat
		if err := tx.WithContext(ctx).Where("code = ?", k.Code).First(&stored).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.WithContext(ctx).Model(&referencedomain.Pricing{}).Where("karat_id = ?", stored.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		pricing := referencedomain.Pricing{
			ID:            node.Generate(),
			KaratID:       stored.ID,
			PricePerGram:  decimal.RequireFromString(k.PricePerGram),
			EffectiveFrom: pricingEffectiveFrom,
			CreatedAt:     now,
		}
		if err := tx.WithContext(ctx).Create(&pricing).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureLoanPeriods(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	for _, p := range loanPeriods {
		period := referencedomain.LoanPeriod{
			ID:                  node.Generate(),
			Name:                p.Name,
			Period:              p.Period,
			DefaultInterestRate: decimal.RequireFromString(p.Rate),
			CreatedAt:           now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
			Create(&period).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureLedgerAccounts(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	for _, a := range ledgerdomain.DefaultAccounts {
		account := ledgerdomain.LedgerAccount{
			ID:        node.Generate(),
			Code:      a.Code,
			Name:      a.Name,
			CreatedAt: now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
			Create(&account).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureInvoiceSequenceTx(ctx context.Context, tx *gorm.DB) error {
	seq := invoicedomain.InvoiceSequence{
		Name:       invoicedomain.DefaultSequenceName,
		NextNumber: 1,
		UpdatedAt:  time.Now().UTC(),
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&seq).Error
}
