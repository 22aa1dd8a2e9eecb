package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/agent-ledger/internal/bank"
	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeForbidden        ErrorCode = "forbidden"
	errCodePaymentRequired  ErrorCode = "payment_required"
	errCodeConflict         ErrorCode = "conflict"

	// Server errors (5xx)
	errCodeInternalError      ErrorCode = "internal_error"
	errCodeServiceUnavailable ErrorCode = "service_unavailable"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondNotFound sends a 404 Not Found response
func respondNotFound(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusNotFound, errCodeNotFound, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// respondLedgerError maps a ledger error to its HTTP status. Business-rule
// rejections surface as 409, payment shortfalls as 402, and a blocked
// settlement as 503 so clients know to retry.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, "Agent not found", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(c, http.StatusForbidden, errCodeForbidden, "Caller is not authorized", err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		respondWithError(c, http.StatusBadRequest, errCodeBadRequest, "Invalid request", err.Error())
	case errors.Is(err, domain.ErrInsufficientPayment),
		errors.Is(err, bank.ErrInsufficientFunds):
		respondWithError(c, http.StatusPaymentRequired, errCodePaymentRequired, "Payment required", err.Error())
	case errors.Is(err, domain.ErrNotRentable),
		errors.Is(err, domain.ErrNotForSale),
		errors.Is(err, domain.ErrSelfPurchase),
		errors.Is(err, domain.ErrNoRentalBalance),
		errors.Is(err, domain.ErrNoPrepaidBalance),
		errors.Is(err, domain.ErrNothingToWithdraw),
		errors.Is(err, domain.ErrDailyLimitExceeded):
		respondWithError(c, http.StatusConflict, errCodeConflict, "Operation rejected", err.Error())
	case errors.Is(err, domain.ErrReentrancyBlocked):
		respondWithError(c, http.StatusServiceUnavailable, errCodeServiceUnavailable, "Ledger is settling, retry", err.Error())
	default:
		respondInternalError(c, err, "Unexpected ledger error")
	}
}
