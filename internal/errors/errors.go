package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode identifies a class of failure
type ErrorCode string

const (
	// Generic errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeRateLimit    ErrorCode = "RATE_LIMIT"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Market data errors
	ErrCodeDataUnavailable   ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeMarketDataInvalid ErrorCode = "MARKET_DATA_INVALID"
	ErrCodeMarketDataTimeout ErrorCode = "MARKET_DATA_TIMEOUT"

	// Computation errors
	ErrCodeComputation ErrorCode = "COMPUTATION_ERROR"

	// Persistence errors
	ErrCodePersistence   ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeDBConnection  ErrorCode = "DB_CONNECTION_ERROR"
	ErrCodeDBQuery       ErrorCode = "DB_QUERY_ERROR"
	ErrCodeDBTransaction ErrorCode = "DB_TRANSACTION_ERROR"

	// Temporal correctness
	ErrCodeLookaheadViolation ErrorCode = "LOOKAHEAD_VIOLATION"
)

// ErrorSeverity ranks how urgent a failure is
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// AppError is the application error carried across component boundaries
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  ErrorSeverity          `json:"severity"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to an HTTP status code
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeTimeout, ErrCodeMarketDataTimeout:
		return http.StatusRequestTimeout
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  getSeverityByCode(code),
		Timestamp: time.Now(),
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext attaches contextual information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails attaches a free-text detail string to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func getSeverityByCode(code ErrorCode) ErrorSeverity {
	switch code {
	case ErrCodeInternal, ErrCodeDBConnection:
		return SeverityCritical
	case ErrCodeDBQuery, ErrCodeDBTransaction, ErrCodePersistence, ErrCodeInvalidConfig:
		return SeverityHigh
	case ErrCodeDataUnavailable, ErrCodeMarketDataInvalid, ErrCodeLookaheadViolation:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// IsRetryable reports whether the operation may be retried
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout, ErrCodeDBConnection, ErrCodeMarketDataTimeout, ErrCodeRateLimit:
		return true
	default:
		return false
	}
}

// NewDataUnavailable reports a missing price or fundamentals series.
// Non-fatal by convention: callers skip the row and continue.
func NewDataUnavailable(ticker string, date time.Time, cause error) *AppError {
	return NewAppError(ErrCodeDataUnavailable,
		fmt.Sprintf("no market data for %s", ticker), cause).
		WithContext("ticker", ticker).
		WithContext("date", date.Format("2006-01-02"))
}

// NewInvalidConfig reports a malformed configuration. Fatal: raised to the
// caller before any work begins.
func NewInvalidConfig(field, message string) *AppError {
	return NewAppError(ErrCodeInvalidConfig,
		fmt.Sprintf("invalid configuration: %s", message), nil).
		WithContext("field", field)
}

// NewPersistence reports a failed write to the backing store
func NewPersistence(message string, cause error) *AppError {
	return NewAppError(ErrCodePersistence, message, cause)
}

// NewLookaheadViolation reports data timestamped after the decision date
func NewLookaheadViolation(ticker string, decisionDate, dataDate time.Time) *AppError {
	return NewAppError(ErrCodeLookaheadViolation,
		fmt.Sprintf("data for %s dated %s is after decision date %s",
			ticker, dataDate.Format("2006-01-02"), decisionDate.Format("2006-01-02")), nil).
		WithContext("ticker", ticker)
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Predefined common errors
var (
	ErrInternalServer = NewAppError(ErrCodeInternal, "Internal server error", nil)
	ErrInvalidInput   = NewAppError(ErrCodeInvalidInput, "Invalid input parameters", nil)
	ErrNotFound       = NewAppError(ErrCodeNotFound, "Resource not found", nil)
	ErrTimeout        = NewAppError(ErrCodeTimeout, "Request timeout", nil)
)
