package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"domain passthrough", domain.ErrAlreadyAdjusted, domain.ErrAlreadyAdjusted},
		{"lock wait timeout", &driver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, domain.ErrContentionTimeout},
		{"deadlock", fmt.Errorf("exec: %w", &driver.MySQLError{Number: 1213, Message: "Deadlock found"}), domain.ErrContentionTimeout},
		{"duplicate entry", &driver.MySQLError{Number: 1062, Message: "Duplicate entry"}, domain.ErrDuplicateKey},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, domain.ErrDuplicateKey},
		{"context deadline", context.DeadlineExceeded, domain.ErrContentionTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), domain.ErrStorageFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestTranslateError_Retryable(t *testing.T) {
	assert.True(t, domain.IsRetryable(translateError(&driver.MySQLError{Number: 1205})))
	assert.True(t, domain.IsRetryable(translateError(errors.New("broken pipe"))))
	assert.False(t, domain.IsRetryable(translateError(domain.ErrAccountNotFound)))
}

func TestTranslateError_DuplicateIsNotAccountSpecific(t *testing.T) {
	err := translateError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'PRIMARY'"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrAccountAlreadyExists)
	assert.False(t, domain.IsRetryable(err))
}

func TestAccountError(t *testing.T) {
	dup := translateError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry 'F-001' for key 'account_number'"})
	assert.ErrorIs(t, accountError(dup), domain.ErrAccountAlreadyExists)

	storage := translateError(errors.New("broken pipe"))
	assert.ErrorIs(t, accountError(storage), domain.ErrStorageFailure)
	assert.NoError(t, accountError(nil))
}
