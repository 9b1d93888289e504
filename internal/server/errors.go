package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	alertdomain "github.com/sitelane/materialflow/internal/alert/domain"
	assignmentdomain "github.com/sitelane/materialflow/internal/assignment/domain"
	auditdomain "github.com/sitelane/materialflow/internal/audit/domain"
	"github.com/sitelane/materialflow/internal/document"
	inventorydomain "github.com/sitelane/materialflow/internal/inventory/domain"
	materialdomain "github.com/sitelane/materialflow/internal/material/domain"
	reallocationdomain "github.com/sitelane/materialflow/internal/reallocation/domain"
	stockadjustmentdomain "github.com/sitelane/materialflow/internal/stockadjustment/domain"
	usagedomain "github.com/sitelane/materialflow/internal/usage/domain"
	warehousedomain "github.com/sitelane/materialflow/internal/warehouse/domain"
	workorderdomain "github.com/sitelane/materialflow/internal/workorder/domain"
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
	ErrUnauthorized   = errors.New("unauthorized")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
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

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isPreconditionError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "precondition_failed",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// isValidationError covers malformed input: bad ids, bad quantities,
// unknown enum values. Reported immediately, nothing was attempted.
func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, materialdomain.ErrInvalidID),
		errors.Is(err, materialdomain.ErrInvalidCode),
		errors.Is(err, materialdomain.ErrInvalidType),
		errors.Is(err, materialdomain.ErrInvalidUnit),
		errors.Is(err, materialdomain.ErrInvalidCost),
		errors.Is(err, materialdomain.ErrInvalidThreshold),
		errors.Is(err, materialdomain.ErrInvalidPageToken),
		errors.Is(err, warehousedomain.ErrInvalidID),
		errors.Is(err, warehousedomain.ErrInvalidName),
		errors.Is(err, workorderdomain.ErrInvalidID),
		errors.Is(err, workorderdomain.ErrInvalidNumber),
		errors.Is(err, workorderdomain.ErrInvalidTitle),
		errors.Is(err, workorderdomain.ErrInvalidStatus),
		errors.Is(err, inventorydomain.ErrInvalidMaterialID),
		errors.Is(err, inventorydomain.ErrInvalidWarehouseID),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, assignmentdomain.ErrInvalidID),
		errors.Is(err, assignmentdomain.ErrInvalidQuantity),
		errors.Is(err, assignmentdomain.ErrInvalidStatus),
		errors.Is(err, assignmentdomain.ErrTypeMismatch),
		errors.Is(err, usagedomain.ErrInvalidQuantity),
		errors.Is(err, usagedomain.ErrInvalidAction),
		errors.Is(err, usagedomain.ErrActionTypeMismatch),
		errors.Is(err, reallocationdomain.ErrInvalidID),
		errors.Is(err, reallocationdomain.ErrInvalidQuantity),
		errors.Is(err, reallocationdomain.ErrSameWorkOrder),
		errors.Is(err, stockadjustmentdomain.ErrInvalidID),
		errors.Is(err, stockadjustmentdomain.ErrInvalidType),
		errors.Is(err, stockadjustmentdomain.ErrInvalidQuantity),
		errors.Is(err, stockadjustmentdomain.ErrMissingReason),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, alertdomain.ErrInvalidObservation),
		errors.Is(err, document.ErrInvalidFileName):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, materialdomain.ErrNotFound),
		errors.Is(err, warehousedomain.ErrNotFound),
		errors.Is(err, workorderdomain.ErrNotFound),
		errors.Is(err, inventorydomain.ErrNotFound),
		errors.Is(err, assignmentdomain.ErrNotFound),
		errors.Is(err, reallocationdomain.ErrNotFound),
		errors.Is(err, stockadjustmentdomain.ErrNotFound),
		errors.Is(err, document.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// isConflictError covers states the request cannot act on: duplicates,
// illegal transitions, closed targets, repeated idempotent operations.
func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, materialdomain.ErrCodeTaken),
		errors.Is(err, materialdomain.ErrInactive),
		errors.Is(err, warehousedomain.ErrNameTaken),
		errors.Is(err, warehousedomain.ErrInactive),
		errors.Is(err, workorderdomain.ErrNumberTaken),
		errors.Is(err, workorderdomain.ErrClosed),
		errors.Is(err, inventorydomain.ErrConcurrentUpdate),
		errors.Is(err, assignmentdomain.ErrInvalidTransition),
		errors.Is(err, assignmentdomain.ErrStatusNotReachable),
		errors.Is(err, assignmentdomain.ErrDetailCorrupt),
		errors.Is(err, usagedomain.ErrAssignmentNotOpen),
		errors.Is(err, usagedomain.ErrSiteIssueDuplicate),
		errors.Is(err, usagedomain.ErrSiteIssueTooLate),
		errors.Is(err, reallocationdomain.ErrInvalidStatus),
		errors.Is(err, reallocationdomain.ErrNoSourceAssignment),
		errors.Is(err, stockadjustmentdomain.ErrInvalidStatus),
		errors.Is(err, stockadjustmentdomain.ErrApprovalRequired),
		errors.Is(err, stockadjustmentdomain.ErrAlreadyApplied):
		return true
	default:
		return false
	}
}

// isPreconditionError covers conservation and availability violations plus
// missing prerequisite data. The caller adjusts and retries; quantities
// are never silently clamped.
func isPreconditionError(err error) bool {
	switch {
	case errors.Is(err, usagedomain.ErrOverconsumption),
		errors.Is(err, usagedomain.ErrSiteIssueRequired),
		errors.Is(err, usagedomain.ErrNothingRemaining),
		errors.Is(err, usagedomain.ErrDispositionTooEarly),
		errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, inventorydomain.ErrReservationTooHigh),
		errors.Is(err, inventorydomain.ErrReleaseTooHigh),
		errors.Is(err, reallocationdomain.ErrInsufficientQuantity),
		errors.Is(err, assignmentdomain.ErrMissingDeliveryInfo),
		errors.Is(err, assignmentdomain.ErrMissingReceiptInfo):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// classifyErrorForLog buckets errors for the request log.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case asValidationErrors(err) != nil, isValidationError(err):
		return "validation", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	case isPreconditionError(err):
		return "precondition", err.Error()
	case errors.Is(err, ErrRateLimited):
		return "rate_limited", err.Error()
	default:
		return "internal", err.Error()
	}
}
