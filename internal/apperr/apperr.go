package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindProvider
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(format string, args ...any) error { return New(KindValidation, format, args...) }
func Unauthorized(format string, args ...any) error {
	return New(KindUnauthorized, format, args...)
}
func Forbidden(format string, args ...any) error { return New(KindForbidden, format, args...) }
func NotFound(format string, args ...any) error  { return New(KindNotFound, format, args...) }
func Conflict(format string, args ...any) error  { return New(KindConflict, format, args...) }
func Provider(format string, args ...any) error  { return New(KindProvider, format, args...) }

// InsufficientStockError dipakai checkout kalau stok kurang; kind-nya Conflict.
type InsufficientStockError struct {
	ProductID string
	Need      int
	Avail     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: need %d, available %d", e.ProductID, e.Need, e.Avail)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return KindConflict
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message: pesan yang aman ditampilkan ke client. Internal error tidak dibocorkan.
func Message(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
