package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT * FROM loans", want: "SELECT"},
		{sql: "  insert into invoices (id) values (1)", want: "INSERT"},
		{sql: "WITH x AS (SELECT 1) UPDATE loans SET is_settled = true", want: "SELECT"},
		{sql: "UPDATE invoice_sequences SET next_value = 2", want: "UPDATE"},
		{sql: "", want: "UNKNOWN"},
		{sql: "VACUUM", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, operationFromSQL(tc.sql), tc.sql)
	}
}

func TestTableFromSQL(t *testing.T) {
	assert.Equal(t, "loans", tableFromSQL(`SELECT * FROM "loans" WHERE id = $1`))
	assert.Equal(t, "invoices", tableFromSQL("INSERT INTO `invoices` (id) VALUES (1)"))
	assert.Equal(t, "loan_balances", tableFromSQL("UPDATE loan_balances SET outstanding_amount = 0"))
	assert.Equal(t, "", tableFromSQL("VACUUM"))
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger(DefaultGormLoggerConfig())
	query := func() (string, int64) { return `SELECT * FROM "customers" WHERE nic = ?`, 0 }

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())

	l.Trace(context.Background(), time.Now(), query, errors.New("disk full"))
	entries := logs.TakeAll()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "customers", entries[0].ContextMap()["table"])
	}
}
