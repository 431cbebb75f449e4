package apperror

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried in AppError.Code. Callers that branch on a specific
// failure compare against these instead of re-typing the literal.
const (
	CodeValidation              = "WAL_001"
	CodeInsufficientBalance     = "WAL_002"
	CodeInsufficientCredits     = "WAL_003"
	CodeDuplicateInFlight       = "WAL_004"
	CodeMonthlyLimitExceeded    = "WAL_005"
	CodeLockedResource          = "WAL_006"
	CodeNotFound                = "WAL_007"
	CodeDuplicateIdempotencyKey = "WAL_008"
	CodeInvalidKind             = "WAL_009"
	CodeConcurrencyConflict     = "WAL_010"
	CodeWalletNotTransactable   = "WAL_011"
	CodeInvalidTransition       = "WAL_012"

	CodeInvalidAccessKey  = "SEC_001"
	CodeInvalidSignature  = "SEC_002"
	CodeTimestampExpired  = "SEC_003"
	CodeNonceUsed         = "SEC_004"
	CodeInvalidToken      = "SEC_005"
	CodeMissingCapability = "SEC_006"

	CodeRateLimitExceeded = "RATE_001"
	CodeInternal          = "SYS_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet & Ledger Business Logic (WAL) ----

// Validation returns a WAL_001 malformed-request error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ErrInsufficientBalance includes the current available balance so clients
// can render it without a second round trip.
func ErrInsufficientBalance(available int64) *AppError {
	return New(CodeInsufficientBalance,
		fmt.Sprintf("Insufficient balance: %d available", available),
		http.StatusPaymentRequired)
}

// ErrInsufficientCredits includes the current credits balance.
func ErrInsufficientCredits(available int64) *AppError {
	return New(CodeInsufficientCredits,
		fmt.Sprintf("Insufficient credits: %d available", available),
		http.StatusPaymentRequired)
}

func ErrDuplicateInFlightWithdrawal() *AppError {
	return New(CodeDuplicateInFlight, "A withdrawal is already in flight for this account", http.StatusConflict)
}

// ErrMonthlyLimitExceeded includes the date the counter resets.
func ErrMonthlyLimitExceeded(resetAt time.Time) *AppError {
	return New(CodeMonthlyLimitExceeded,
		fmt.Sprintf("Monthly withdrawal limit exceeded, resets at %s", resetAt.UTC().Format("2006-01-02")),
		http.StatusUnprocessableEntity)
}

func ErrLockedResource(resource string) *AppError {
	return New(CodeLockedResource,
		fmt.Sprintf("%s is locked and requires an administrative unlock", resource),
		http.StatusLocked)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateIdempotencyKey() *AppError {
	return New(CodeDuplicateIdempotencyKey, "Idempotency key already used", http.StatusConflict)
}

func ErrInvalidKind() *AppError {
	return New(CodeInvalidKind, "Record kind/status combination not allowed", http.StatusBadRequest)
}

// ErrConcurrencyConflict is surfaced after internal retries are exhausted;
// the caller may safely retry the request.
func ErrConcurrencyConflict() *AppError {
	return New(CodeConcurrencyConflict, "Wallet was modified concurrently, please retry", http.StatusServiceUnavailable)
}

func ErrWalletNotTransactable(status string) *AppError {
	return New(CodeWalletNotTransactable, fmt.Sprintf("Wallet is %s and cannot transact", status), http.StatusForbidden)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("Cannot transition record from %s to %s", from, to), http.StatusConflict)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New(CodeInvalidAccessKey, "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New(CodeTimestampExpired, "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New(CodeNonceUsed, "Nonce has already been used", http.StatusForbidden)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMissingCapability(capability string) *AppError {
	return New(CodeMissingCapability, fmt.Sprintf("Missing required capability: %s", capability), http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}
