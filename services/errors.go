package services

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindForbidden
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// AppError is a failure the caller can act on. Anything that is not an
// AppError is treated as unexpected.
type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string { return e.Message }

func newError(kind ErrorKind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func ValidationError(format string, args ...interface{}) *AppError {
	return newError(KindValidation, format, args...)
}

func AuthenticationError(format string, args ...interface{}) *AppError {
	return newError(KindAuthentication, format, args...)
}

func AuthorizationError(format string, args ...interface{}) *AppError {
	return newError(KindAuthorization, format, args...)
}

func ForbiddenError(format string, args ...interface{}) *AppError {
	return newError(KindForbidden, format, args...)
}

func NotFoundError(format string, args ...interface{}) *AppError {
	return newError(KindNotFound, format, args...)
}

func ConflictError(format string, args ...interface{}) *AppError {
	return newError(KindConflict, format, args...)
}

// KindOf reports the kind of err, looking through wrapping.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	var failure *ImportFailure
	if stderrors.As(err, &failure) {
		return KindValidation
	}
	return KindUnexpected
}

// IsUniqueViolation detects duplicate-key errors from gorm's translated
// errors or a raw postgres 23505.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(format, args...)
	}
	return err
}
