package apperror

import (
	"fmt"
	"net/http"
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

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Invalid amount", http.StatusBadRequest)
}

func ErrWalletNotFound() *AppError {
	return New("LED_003", "Wallet not found", http.StatusNotFound)
}

// ---- Submissions (SUB) ----

func ErrOptionNotPurchasable(reason string) *AppError {
	return New("SUB_001", fmt.Sprintf("Option not purchasable: %s", reason), http.StatusBadRequest)
}

func ErrInvalidTransition(message string) *AppError {
	return New("SUB_002", message, http.StatusConflict)
}

func ErrSubmissionNotFound() *AppError {
	return New("SUB_003", "Submission not found", http.StatusNotFound)
}

func ErrNotFound(entity string) *AppError {
	return New("SUB_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Gateway (GW) ----

// ErrGatewayUnavailable covers transport failures and timeouts talking
// to the payment provider.
func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_001", "Payment gateway unavailable", http.StatusBadGateway, err)
}

// ErrGatewayRejected carries the provider's own error message verbatim
// for support diagnosis.
func ErrGatewayRejected(providerMessage string) *AppError {
	return New("GW_002", fmt.Sprintf("Payment gateway rejected order: %s", providerMessage), http.StatusBadGateway)
}

// ErrUnresolvableOrderReference is fatal for one reconciliation attempt:
// nothing was mutated and the order needs manual follow-up.
func ErrUnresolvableOrderReference(err error) *AppError {
	return Wrap("GW_003", "Order reference cannot be resolved", http.StatusUnprocessableEntity, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAdminRequired() *AppError {
	return New("AUTH_002", "Administrator privileges required", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request-validation error.
func Validation(message string) *AppError {
	return New("SYS_002", message, http.StatusBadRequest)
}
