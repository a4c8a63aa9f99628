package services

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", ValidationError("bad"), KindValidation},
		{"wrapped", errors.Wrap(NotFoundError("gone"), "load"), KindNotFound},
		{"fmt wrapped", fmt.Errorf("outer: %w", ConflictError("dup")), KindConflict},
		{"import failure", &ImportFailure{TotalRows: 2, ErrorCount: 1}, KindValidation},
		{"plain", errors.New("boom"), KindUnexpected},
		{"nil", nil, KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.Wrap(&pgconn.PgError{Code: "23505"}, "insert")))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestNotFoundOr(t *testing.T) {
	err := notFoundOr(gorm.ErrRecordNotFound, "Exam %s not found", "x")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "Exam x not found", err.Error())

	other := errors.New("db down")
	assert.Equal(t, other, notFoundOr(other, "ignored"))
}

func TestImportFailureMessage(t *testing.T) {
	err := &ImportFailure{TotalRows: 3, ErrorCount: 1}
	assert.Equal(t, "CSV validation failed: 1 of 3 rows have errors", err.Error())
}
