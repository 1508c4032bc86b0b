package mysql

import (
	"context"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/JoeShih716/snackbar-ledger/internal/app/core/domain"
)

// MySQL 錯誤碼
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
	errDuplicateEntry  uint16 = 1062
)

// translateError 將 gorm / driver 的錯誤轉成 domain 的錯誤分類
//
// 已經是 domain 錯誤的直接回傳，其餘未知錯誤一律視為 ErrStorageFailure。
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrContentionTimeout, err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}

	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errLockWaitTimeout, errDeadlock:
			return fmt.Errorf("%w: %v", domain.ErrContentionTimeout, err)
		case errDuplicateEntry:
			return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrUnknownReference) ||
		errors.Is(err, domain.ErrAlreadyAdjusted) ||
		errors.Is(err, domain.ErrContentionTimeout) ||
		errors.Is(err, domain.ErrStorageFailure)
}

// accountError accounts 表唯一的唯一鍵是帳號，衝突即代表帳號重複
func accountError(err error) error {
	if errors.Is(err, domain.ErrDuplicateKey) {
		return domain.ErrAccountAlreadyExists
	}
	return err
}
