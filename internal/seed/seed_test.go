package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/pawnshop/internal/ledger/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestEnsureReferenceDataIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&referencedomain.Karat{},
		&referencedomain.LoanPeriod{},
		&referencedomain.Pricing{},
		&ledgerdomain.LedgerAccount{},
		&invoicedomain.InvoiceSequence{},
	))

	ctx := context.Background()
	require.NoError(t, EnsureReferenceData(ctx, db))
	require.NoError(t, EnsureReferenceData(ctx, db))

	counts := map[any]int64{
		&referencedomain.Karat{}:         int64(len(karats)),
		&referencedomain.Pricing{}:       int64(len(karats)),
		&referencedomain.LoanPeriod{}:    int64(len(loanPeriods)),
		&ledgerdomain.LedgerAccount{}:    int64(len(ledgerdomain.DefaultAccounts)),
		&invoicedomain.InvoiceSequence{}: 1,
	}
	for model, want := range counts {
		var got int64
		require.NoError(t, db.Model(model).Count(&got).Error)
		assert.Equal(t, want, got, "%T", model)
	}

	var seq invoicedomain.InvoiceSequence
	require.NoError(t, db.First(&seq, "name = ?", invoicedomain.DefaultSequenceName).Error)
	assert.EqualValues(t, 1, seq.NextNumber)
}
