package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	"github.com/smallbiznis/pawnshop/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCustomer() customerdomain.CreateCustomerRequest {
	return customerdomain.CreateCustomerRequest{NIC: " 912345678v", Name: "Nimal Perera"}
}

func TestDecodeInitialPawn(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("LKT", 5*3600+1800))
	req, err := DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID: 1,
		Customer:      validCustomer(),
		LoanPeriodID:  snowflake.ID(42),
		Items:         []ItemDTO{{Name: "ring", Value: decimal.NewFromInt(5000)}},
		Date:          &date,
	})
	require.NoError(t, err)

	pawn, ok := req.(InitialPawnRequest)
	require.True(t, ok)
	assert.Equal(t, invoicedomain.InvoiceTypeInitialPawn, pawn.InvoiceType())
	assert.Equal(t, "912345678V", pawn.CustomerInput().NIC)
	assert.Equal(t, time.UTC, pawn.Date.Location())
	require.Len(t, pawn.Items, 1)
	assert.Equal(t, "ring", pawn.Items[0].Name)
}

func TestDecodeInitialPawnRejects(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	cases := []struct {
		name string
		dto  InvoiceRequestDTO
		want error
	}{
		{
			name: "no items",
			dto:  InvoiceRequestDTO{InvoiceTypeID: 1, Customer: validCustomer(), LoanPeriodID: 1},
			want: ErrInvalidRequest,
		},
		{
			name: "no period",
			dto:  InvoiceRequestDTO{InvoiceTypeID: 1, Customer: validCustomer(), Items: []ItemDTO{{Name: "x"}}},
			want: ErrInvalidRequest,
		},
		{
			name: "negative amount",
			dto: InvoiceRequestDTO{InvoiceTypeID: 1, Customer: validCustomer(), LoanPeriodID: 1,
				LoanAmount: negative, Items: []ItemDTO{{Name: "x"}}},
			want: ErrInvalidAmount,
		},
		{
			name: "negative rate",
			dto: InvoiceRequestDTO{InvoiceTypeID: 1, Customer: validCustomer(), LoanPeriodID: 1,
				InterestRate: &negative, Items: []ItemDTO{{Name: "x"}}},
			want: ErrInvalidRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInvoiceRequest(tc.dto)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeInitialPawnValidatesFields(t *testing.T) {
	_, err := DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID: 1,
		Customer:      customerdomain.CreateCustomerRequest{NIC: "12345", Name: "Nimal"},
		LoanPeriodID:  1,
		Items:         []ItemDTO{{Name: "ring"}},
	})
	var verr *validator.Error
	require.ErrorAs(t, err, &verr)

	_, err = DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID: 1,
		Customer:      validCustomer(),
		LoanPeriodID:  1,
		Items:         []ItemDTO{{Value: decimal.NewFromInt(10)}},
	})
	require.ErrorAs(t, err, &verr)
}

func TestDecodeInstallmentAndSettlement(t *testing.T) {
	req, err := DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID:    2,
		Customer:         validCustomer(),
		InitialInvoiceNo: "PWN-20240115-000001",
		Amount:           decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	payment, ok := req.(InstallmentPaymentRequest)
	require.True(t, ok)
	assert.Zero(t, payment.InstallmentNumber)

	_, err = DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID:    2,
		Customer:         validCustomer(),
		InitialInvoiceNo: "PWN-20240115-000001",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = DecodeInvoiceRequest(InvoiceRequestDTO{InvoiceTypeID: 2, Customer: validCustomer(), Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req, err = DecodeInvoiceRequest(InvoiceRequestDTO{
		InvoiceTypeID:    3,
		Customer:         validCustomer(),
		InitialInvoiceNo: "PWN-20240115-000001",
	})
	require.NoError(t, err)
	settlement, ok := req.(SettlementRequest)
	require.True(t, ok)
	assert.True(t, settlement.Amount.IsZero())
	assert.Equal(t, invoicedomain.InvoiceTypeSettlement, settlement.InvoiceType())
}

func TestDecodeUnknownType(t *testing.T) {
	for _, id := range []int{0, 4, 99} {
		_, err := DecodeInvoiceRequest(InvoiceRequestDTO{InvoiceTypeID: id, Customer: validCustomer()})
		assert.ErrorIs(t, err, ErrInvalidInvoiceType)
	}
}

func TestDeletionPlanSkipsEmptySteps(t *testing.T) {
	plan := &DeletionPlan{}
	plan.Add(DetachNestedInvoices)
	plan.Add(DetachInstallments, snowflake.ID(1), snowflake.ID(2))
	plan.Add(DetachInvoice, snowflake.ID(3))

	assert.Equal(t, []DetachKind{DetachInstallments, DetachInvoice}, plan.Kinds())
	assert.Len(t, plan.Steps[0].IDs, 2)
}
