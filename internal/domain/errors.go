package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
// Payment errors are translated to their HTTP equivalent.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	var payErr *PaymentError
	if errors.As(err, &payErr) {
		return &AppError{Code: payErr.Kind.HTTPStatus(), Message: payErr.Message, Err: payErr.Err}, true
	}
	return nil, false
}

// ErrorKind classifies failures of the payment confirmation flow.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindInitiation    ErrorKind = "initiation"
	KindTransientPoll ErrorKind = "transient_poll"
	KindPaymentFailed ErrorKind = "payment_failed"
	KindTimedOut      ErrorKind = "timed_out"
	KindStorage       ErrorKind = "storage"
	KindCancelled     ErrorKind = "cancelled"
)

// HTTPStatus maps a kind to the status code used when it is returned synchronously.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInitiation, KindTransientPoll:
		return http.StatusBadGateway
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	case KindTimedOut:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PaymentError is returned by every stage of the payment flow.
type PaymentError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string, err error) *PaymentError {
	return &PaymentError{Kind: KindValidation, Message: msg, Err: err}
}

func NewInitiationError(msg string, err error) *PaymentError {
	return &PaymentError{Kind: KindInitiation, Message: msg, Err: err}
}

func NewTransientPollError(err error) *PaymentError {
	return &PaymentError{Kind: KindTransientPoll, Message: "status check failed", Err: err}
}

func NewPaymentFailedError(reason string) *PaymentError {
	return &PaymentError{Kind: KindPaymentFailed, Message: reason}
}

func NewTimedOutError(attempts int) *PaymentError {
	return &PaymentError{Kind: KindTimedOut, Message: fmt.Sprintf("payment not confirmed after %d attempts", attempts)}
}

func NewStorageError(msg string, err error) *PaymentError {
	return &PaymentError{Kind: KindStorage, Message: msg, Err: err}
}

func NewCancelledError(err error) *PaymentError {
	return &PaymentError{Kind: KindCancelled, Message: "payment flow cancelled", Err: err}
}

// PaymentErrorKind returns the kind of the first PaymentError in the chain.
func PaymentErrorKind(err error) (ErrorKind, bool) {
	var payErr *PaymentError
	if errors.As(err, &payErr) {
		return payErr.Kind, true
	}
	return "", false
}

// IsPaymentError reports whether err carries a PaymentError of the given kind.
func IsPaymentError(err error, kind ErrorKind) bool {
	k, ok := PaymentErrorKind(err)
	return ok && k == kind
}
