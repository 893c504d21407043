package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	"github.com/smallbiznis/pawnshop/pkg/validator"
)

// InvoiceRequest is one of InitialPawnRequest, InstallmentPaymentRequest or
// SettlementRequest. The set is closed to this package.
type InvoiceRequest interface {
	InvoiceType() invoicedomain.InvoiceType
	CustomerInput() customerdomain.CreateCustomerRequest
	sealed()
}

// ItemInput describes a pledged item. A zero ID creates a new item; any other
// ID re-pawns an item the customer already owns.
type ItemInput struct {
	ID          snowflake.ID
	Name        string
	Description string
	KaratID     *snowflake.ID
	Weight      decimal.Decimal
	Value       decimal.Decimal
}

type InitialPawnRequest struct {
	Customer     customerdomain.CreateCustomerRequest
	LoanPeriodID snowflake.ID
	// LoanAmount zero lends the full loan-to-value allowance.
	LoanAmount decimal.Decimal
	// InterestRate nil falls back to the loan period default, then the policy default.
	InterestRate *decimal.Decimal
	Items        []ItemInput
	Date         time.Time
}

type InstallmentPaymentRequest struct {
	Customer         customerdomain.CreateCustomerRequest
	InitialInvoiceNo string
	// InstallmentNumber zero takes the next free number.
	InstallmentNumber int
	Amount            decimal.Decimal
	Date              time.Time
}

type SettlementRequest struct {
	Customer         customerdomain.CreateCustomerRequest
	InitialInvoiceNo string
	// Amount zero settles for the loan's outstanding balance.
	Amount decimal.Decimal
	Date   time.Time
}

func (InitialPawnRequest) InvoiceType() invoicedomain.InvoiceType {
	return invoicedomain.InvoiceTypeInitialPawn
}

func (InstallmentPaymentRequest) InvoiceType() invoicedomain.InvoiceType {
	return invoicedomain.InvoiceTypeInstallmentPayment
}

func (SettlementRequest) InvoiceType() invoicedomain.InvoiceType {
	return invoicedomain.InvoiceTypeSettlement
}

func (r InitialPawnRequest) CustomerInput() customerdomain.CreateCustomerRequest        { return r.Customer }
func (r InstallmentPaymentRequest) CustomerInput() customerdomain.CreateCustomerRequest { return r.Customer }
func (r SettlementRequest) CustomerInput() customerdomain.CreateCustomerRequest         { return r.Customer }

func (InitialPawnRequest) sealed()        {}
func (InstallmentPaymentRequest) sealed() {}
func (SettlementRequest) sealed()         {}

type ItemDTO struct {
	ID          snowflake.ID    `json:"id"`
	Name        string          `json:"name" validate:"required_without=ID,max=255"`
	Description string          `json:"description" validate:"max=1024"`
	KaratID     *snowflake.ID   `json:"karat_id"`
	Weight      decimal.Decimal `json:"weight" validate:"dgte0"`
	Value       decimal.Decimal `json:"value" validate:"dgte0"`
}

// InvoiceRequestDTO is the wire shape accepted by POST /api/invoices.
type InvoiceRequestDTO struct {
	InvoiceTypeID     int                                  `json:"invoice_type_id"`
	Customer          customerdomain.CreateCustomerRequest `json:"customer"`
	LoanPeriodID      snowflake.ID                         `json:"loan_period_id"`
	LoanAmount        decimal.Decimal                      `json:"loan_amount"`
	InterestRate      *decimal.Decimal                     `json:"interest_rate"`
	Items             []ItemDTO                            `json:"items"`
	InitialInvoiceNo  string                               `json:"initial_invoice_no"`
	InstallmentNumber int                                  `json:"installment_number"`
	Amount            decimal.Decimal                      `json:"amount"`
	Date              *time.Time                           `json:"date"`
}

// DecodeInvoiceRequest picks the variant for dto.InvoiceTypeID and validates
// only the fields that variant carries.
func DecodeInvoiceRequest(dto InvoiceRequestDTO) (InvoiceRequest, error) {
	var date time.Time
	if dto.Date != nil {
		date = dto.Date.UTC()
	}
	dto.Customer.NIC = validator.NormalizeNIC(dto.Customer.NIC)

	switch invoicedomain.InvoiceType(dto.InvoiceTypeID) {
	case invoicedomain.InvoiceTypeInitialPawn:
		if dto.LoanPeriodID == 0 || len(dto.Items) == 0 {
			return nil, ErrInvalidRequest
		}
		if dto.LoanAmount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		if dto.InterestRate != nil && dto.InterestRate.IsNegative() {
			return nil, ErrInvalidRequest
		}
		req := InitialPawnRequest{
			Customer:     dto.Customer,
			LoanPeriodID: dto.LoanPeriodID,
			LoanAmount:   dto.LoanAmount,
			InterestRate: dto.InterestRate,
			Items:        make([]ItemInput, 0, len(dto.Items)),
			Date:         date,
		}
		for _, item := range dto.Items {
			if err := validator.Validate(item); err != nil {
				return nil, err
			}
			req.Items = append(req.Items, ItemInput(item))
		}
		if err := validator.Validate(req.Customer); err != nil {
			return nil, err
		}
		return req, nil
	case invoicedomain.InvoiceTypeInstallmentPayment:
		if dto.InitialInvoiceNo == "" || dto.InstallmentNumber < 0 {
			return nil, ErrInvalidRequest
		}
		if !dto.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		if err := validator.Validate(dto.Customer); err != nil {
			return nil, err
		}
		return InstallmentPaymentRequest{
			Customer:          dto.Customer,
			InitialInvoiceNo:  dto.InitialInvoiceNo,
			InstallmentNumber: dto.InstallmentNumber,
			Amount:            dto.Amount,
			Date:              date,
		}, nil
	case invoicedomain.InvoiceTypeSettlement:
		if dto.InitialInvoiceNo == "" {
			return nil, ErrInvalidRequest
		}
		if dto.Amount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		if err := validator.Validate(dto.Customer); err != nil {
			return nil, err
		}
		return SettlementRequest{
			Customer:         dto.Customer,
			InitialInvoiceNo: dto.InitialInvoiceNo,
			Amount:           dto.Amount,
			Date:             date,
		}, nil
	default:
		return nil, ErrInvalidInvoiceType
	}
}
