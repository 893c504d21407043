package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	"github.com/smallbiznis/pawnshop/internal/audit/repository"
	"github.com/smallbiznis/pawnshop/internal/clock"
	obscontext "github.com/smallbiznis/pawnshop/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "audit.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))

	return NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: repository.Provide()}), db, clk
}

func TestAuditLogCapturesActorAndMasksIdentifiers(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := obscontext.WithActorID(obscontext.WithRequestID(context.Background(), "req-1"), "teller-7")

	target := "42"
	require.NoError(t, svc.AuditLog(ctx, nil, "customer.create", "customer", &target, map[string]any{"nic": "123456789V"}))

	var entry auditdomain.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "teller", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "teller-7", *entry.ActorID)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Equal(t, "****789V", entry.Metadata["nic"])
}

func TestAuditLogRollsBackWithTransaction(t *testing.T) {
	svc, db, _ := newTestService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.AuditLog(context.Background(), tx, "invoice.issue", "invoice", nil, nil); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListPaginates(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, nil, "loan.settle", "loan", nil, nil))
		clk.Advance(time.Minute)
	}

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	page, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page.AuditLogs, 2)
	assert.True(t, page.HasMore)
	require.NotEmpty(t, page.NextPageToken)

	req.PageToken = page.NextPageToken
	page, err = svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, page.AuditLogs, 1)
	assert.False(t, page.HasMore)

	req.PageToken = "not a token"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	assert.ErrorIs(t, svc.AuditLog(ctx, nil, " ", "loan", nil, nil), auditdomain.ErrInvalidAction)
}
