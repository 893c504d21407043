package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("LOAN_LOCK_TTL_SECONDS", "")
	t.Setenv("INVOICE_NUMBER_TEMPLATE", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 15*time.Second, cfg.LoanLockTTL)
	assert.Equal(t, "PWN-{YYYY}{MM}{DD}-{SEQ6}", cfg.InvoiceNumberTemplate)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("LOAN_LOCK_TTL_SECONDS", "30")
	t.Setenv("REDIS_ADDR", " localhost:6379 ")
	t.Setenv("SEED_REFERENCE_DATA", "off")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 30*time.Second, cfg.LoanLockTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.False(t, cfg.SeedReferenceData)
}

func TestLoadClampsSamplingRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "4")
	assert.Equal(t, 0.1, Load().OTLPSamplingRatio)

	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")
	assert.Equal(t, 0.5, Load().OTLPSamplingRatio)
}

func TestPolicyHolderFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewPolicyHolder(Config{PolicyPath: filepath.Join(dir, "missing", "pawn.yml")})
	require.NoError(t, err)
	assert.Equal(t, DefaultPawnPolicy(), holder.Get())
}

func TestPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pawn.yml")
	body := "pawn:\n  maxLoanToValuePercent: 80\n  defaultInterestRate: 3.5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	holder, err := NewPolicyHolder(Config{PolicyPath: path})
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 80.0, policy.MaxLoanToValuePercent)
	assert.Equal(t, 3.5, policy.DefaultInterestRate)
}

func TestPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pawn.yml")
	require.NoError(t, os.WriteFile(path, []byte("pawn:\n  maxLoanToValuePercent: 150\n"), 0o600))

	_, err := NewPolicyHolder(Config{PolicyPath: path})
	assert.Error(t, err)
}
