package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("invoice_type", "initial_pawn"),
		attribute.String("customer_id", "456"),
		attribute.String("outcome", "success"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("invoice_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordInvoiceProcessed(ctx, "initial_pawn", "success")
	m.RecordInstallmentPosted(ctx)
	m.RecordLoanSettled(ctx)
	m.RecordInvoiceVoided(ctx, "settlement")
	m.RecordLedgerEntry(ctx, "loan_issuance")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "pawnshop"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordInvoiceProcessed(context.Background(), "installment_payment", "success")
}
