package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pawnshop/internal/audit/domain"
	customerdomain "github.com/smallbiznis/pawnshop/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/pawnshop/internal/invoice/domain"
	loandomain "github.com/smallbiznis/pawnshop/internal/loan/domain"
	"github.com/smallbiznis/pawnshop/internal/lock"
	pawndomain "github.com/smallbiznis/pawnshop/internal/pawn/domain"
	referencedomain "github.com/smallbiznis/pawnshop/internal/reference/domain"
	"github.com/smallbiznis/pawnshop/pkg/validator"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var fieldErr *validator.Error
	if errors.As(err, &fieldErr) {
		out := make([]ValidationError, 0, len(fieldErr.Fields))
		for _, f := range fieldErr.Fields {
			out = append(out, ValidationError{
				Field:   f.FailedField,
				Code:    f.Tag,
				Message: "invalid value",
			})
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  out,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: code,
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictCode(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog reports the response type and a stable code for access logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusInternalServerError {
		return payload.Type, "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Message
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationSentinels = []error{
	ErrInvalidRequest,
	errInvalidSnowflakeID,
	pawndomain.ErrInvalidInvoiceType,
	pawndomain.ErrInvalidRequest,
	pawndomain.ErrInvalidAmount,
	pawndomain.ErrItemValueUnknown,
	pawndomain.ErrLoanExceedsValue,
	pawndomain.ErrSettlementShortfall,
	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidNIC,
	customerdomain.ErrInvalidID,
	loandomain.ErrInvalidLoanPeriod,
	loandomain.ErrZeroLoanDuration,
	loandomain.ErrInvalidInstallmentNumber,
	loandomain.ErrInvalidAmount,
	loandomain.ErrOverpayment,
	loandomain.ErrNotInitialInvoice,
	invoicedomain.ErrInvalidInvoiceNo,
	referencedomain.ErrInvalidWeight,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
}

var notFoundSentinels = []error{
	ErrNotFound,
	customerdomain.ErrNotFound,
	pawndomain.ErrCustomerNotFound,
	pawndomain.ErrItemNotFound,
	loandomain.ErrLoanNotFound,
	loandomain.ErrLoanPeriodNotFound,
	loandomain.ErrInvoiceNotFound,
	loandomain.ErrTransactionNotFound,
	invoicedomain.ErrNotFound,
	referencedomain.ErrKaratNotFound,
	referencedomain.ErrPricingNotFound,
	gorm.ErrRecordNotFound,
}

var conflictSentinels = []error{
	ErrConflict,
	customerdomain.ErrAlreadyExists,
	customerdomain.ErrNICUnavailable,
	pawndomain.ErrCustomerMismatch,
	pawndomain.ErrItemNotOwned,
	pawndomain.ErrItemAlreadyPledged,
	pawndomain.ErrVoidNotAllowed,
	loandomain.ErrLoanSettled,
	loandomain.ErrDuplicateInstallment,
}

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func isValidationError(err error) bool {
	return matchAny(err, validationSentinels) != nil
}

func isNotFoundError(err error) bool {
	return matchAny(err, notFoundSentinels) != nil
}

func isConflictError(err error) bool {
	return matchAny(err, conflictSentinels) != nil
}

func conflictCode(err error) string {
	if target := matchAny(err, conflictSentinels); target != nil {
		return target.Error()
	}
	return "conflict"
}

func validationErrorCode(err error) string {
	if target := matchAny(err, validationSentinels); target != nil {
		return target.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return strings.ReplaceAll(code, "_", " ")
	}
}
