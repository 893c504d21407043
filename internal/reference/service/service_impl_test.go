package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pawnshop/internal/clock"
	"github.com/smallbiznis/pawnshop/internal/reference/domain"
	"github.com/smallbiznis/pawnshop/internal/reference/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reference.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Karat{}, &domain.LoanPeriod{}, &domain.Pricing{}))
	return db
}

func TestEstimateValueUsesLatestEffectivePrice(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(now)

	karat := domain.Karat{ID: node.Generate(), Code: "22K", Purity: decimal.RequireFromString("0.9167"), CreatedAt: now}
	require.NoError(t, db.Create(&karat).Error)
	require.NoError(t, db.Create(&[]domain.Pricing{
		{ID: node.Generate(), KaratID: karat.ID, PricePerGram: decimal.NewFromInt(100), EffectiveFrom: now.AddDate(0, -2, 0), CreatedAt: now},
		{ID: node.Generate(), KaratID: karat.ID, PricePerGram: decimal.NewFromInt(120), EffectiveFrom: now.AddDate(0, -1, 0), CreatedAt: now},
		{ID: node.Generate(), KaratID: karat.ID, PricePerGram: decimal.NewFromInt(500), EffectiveFrom: now.AddDate(0, 1, 0), CreatedAt: now},
	}).Error)

	svc := New(Params{DB: db, Log: zap.NewNop(), Clock: clk, Repo: repository.Provide()})

	est, err := svc.EstimateValue(context.Background(), nil, domain.EstimateRequest{
		KaratID: karat.ID,
		Weight:  decimal.RequireFromString("2.5"),
	})
	require.NoError(t, err)
	assert.True(t, est.PricePerGram.Equal(decimal.NewFromInt(120)))
	assert.True(t, est.Value.Equal(decimal.NewFromInt(300)))
}

func TestEstimateValueErrors(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Now().UTC())
	svc := New(Params{DB: db, Log: zap.NewNop(), Clock: clk, Repo: repository.Provide()})
	ctx := context.Background()

	_, err := svc.EstimateValue(ctx, nil, domain.EstimateRequest{KaratID: node.Generate(), Weight: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidWeight)

	_, err = svc.EstimateValue(ctx, nil, domain.EstimateRequest{KaratID: node.Generate(), Weight: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrKaratNotFound)

	karat := domain.Karat{ID: node.Generate(), Code: "18K", Purity: decimal.RequireFromString("0.75"), CreatedAt: clk.Now()}
	require.NoError(t, db.Create(&karat).Error)
	_, err = svc.EstimateValue(ctx, nil, domain.EstimateRequest{KaratID: karat.ID, Weight: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrPricingNotFound)
}

func TestGetLoanPeriodReturnsNilWhenMissing(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	svc := New(Params{DB: db, Log: zap.NewNop(), Clock: clock.New(), Repo: repository.Provide()})

	period, err := svc.GetLoanPeriod(context.Background(), nil, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, period)

	lp := domain.LoanPeriod{ID: node.Generate(), Name: "3 months", Period: 3, DefaultInterestRate: decimal.NewFromInt(3), CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(&lp).Error)

	period, err = svc.GetLoanPeriod(context.Background(), nil, lp.ID)
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.Equal(t, 3, period.Period)

	periods, err := svc.ListLoanPeriods(context.Background())
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}
